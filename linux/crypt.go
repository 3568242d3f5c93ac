//go:build linux
// +build linux

package linux

import (
	"fmt"
	"io/ioutil"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"machinerun.io/blockstack"
)

const entropyAvailPath = "/proc/sys/kernel/random/entropy_avail"

// keyArgs returns the cryptsetup key arguments and the data to feed on stdin.
func keyArgs(passphrase, keyFile string) ([]string, string, error) {
	if keyFile != "" {
		return []string{"--key-file=" + keyFile}, "", nil
	}

	if passphrase == "" {
		return nil, "", &blockstack.OpError{Category: "crypto", Code: 1,
			Msg: "either passphrase or key file must be given"}
	}

	return []string{"--key-file=-"}, passphrase, nil
}

func readEntropy(fpath string) (uint, error) {
	content, err := ioutil.ReadFile(fpath)
	if err != nil {
		return 0, err
	}

	v, err := strconv.ParseUint(strings.TrimSpace(string(content)), 10, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to parse %s", fpath)
	}

	return uint(v), nil
}

// waitForEntropy polls the kernel entropy estimate until it reaches min or
// the timeout expires.
func waitForEntropy(fpath string, min uint, timeout time.Duration) error {
	const nap = 100 * time.Millisecond
	deadline := time.Now().Add(timeout)

	for {
		avail, err := readEntropy(fpath)
		if err != nil {
			return err
		}

		if avail >= min {
			return nil
		}

		if time.Now().After(deadline) {
			return &blockstack.OpError{Category: "crypto", Code: 1,
				Msg: fmt.Sprintf("only %d bits of entropy available after %v, need %d", avail, timeout, min)}
		}

		time.Sleep(nap)
	}
}

func (b *linuxBackend) CryptFormat(device string, opts blockstack.CryptFormatOpts) error {
	const entropyTimeout = time.Minute

	if opts.MinEntropy > 0 {
		if err := waitForEntropy(entropyAvailPath, opts.MinEntropy, entropyTimeout); err != nil {
			return err
		}
	}

	keys, input, err := keyArgs(opts.Passphrase, opts.KeyFile)
	if err != nil {
		return err
	}

	args := []string{"cryptsetup", "luksFormat", "--batch-mode"}

	if opts.Cipher != "" {
		args = append(args, "--cipher="+opts.Cipher)
	}

	if opts.KeyBits != 0 {
		args = append(args, fmt.Sprintf("--key-size=%d", opts.KeyBits))
	}

	args = append(append(args, keys...), device)

	return b.runStdin("crypto", input, args...)
}

func (b *linuxBackend) CryptOpen(device, name string, opts blockstack.CryptOpenOpts) error {
	keys, input, err := keyArgs(opts.Passphrase, opts.KeyFile)
	if err != nil {
		return err
	}

	args := []string{"cryptsetup", "open", "--type=luks"}

	if opts.ReadOnly {
		args = append(args, "--readonly")
	}

	args = append(append(args, keys...), device, name)

	return b.runStdin("crypto", input, args...)
}

// CryptClose takes the mapped path (/dev/mapper/name) and closes by name.
func (b *linuxBackend) CryptClose(mappedPath string) error {
	return b.run("crypto", "cryptsetup", "close", path.Base(mappedPath))
}
