// nolint:errcheck
package linux_test

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"math/rand"
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func runCommandWithOutputErrorRc(args ...string) ([]byte, []byte, int) {
	cmd := exec.Command(args[0], args[1:]...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	if err == nil {
		return stdout.Bytes(), stderr.Bytes(), 0
	}

	if exitError, ok := err.(*exec.ExitError); ok {
		if status, ok := exitError.Sys().(syscall.WaitStatus); ok {
			return stdout.Bytes(), stderr.Bytes(), status.ExitStatus()
		}
	}

	return stdout.Bytes(), stderr.Bytes(), 127
}

func runCommand(args ...string) error {
	out, err, rc := runCommandWithOutputErrorRc(args...)
	if rc == 0 {
		return nil
	}

	return fmt.Errorf("command returned %d:\n cmd: %v\n out: %s\n err: %s", rc, args, out, err)
}

// connectLoop - connect fname to a loop device.
//   return cleanup, devicePath, error
func connectLoop(fname string) (func() error, string, error) {
	var cmd = []string{"losetup", "--find", "--show", fname}

	stdout, stderr, rc := runCommandWithOutputErrorRc(cmd...)
	if rc != 0 {
		return func() error { return nil }, "",
			fmt.Errorf("%v failed %d: %s", cmd, rc, stderr)
	}

	// chomp the trailing '\n'
	devPath := string(stdout[0 : len(stdout)-1])

	cleanup := func() error {
		return runCommand("losetup", "--detach="+devPath)
	}

	return cleanup, devPath, waitForFileSize(devPath)
}

func waitForFileSize(devPath string) error {
	fp, err := os.OpenFile(devPath, os.O_RDWR, 0)
	if err != nil {
		return err
	}

	defer fp.Close()

	diskLen := int64(0)
	napLen := time.Millisecond * 10 //nolint: gomnd
	startTime := time.Now()
	endTime := startTime.Add(30 * time.Second) // nolint: gomnd

	for {
		if diskLen, err = fp.Seek(0, io.SeekEnd); err != nil {
			return err
		} else if diskLen != 0 {
			return nil
		}

		time.Sleep(napLen)

		if time.Now().After(endTime) {
			break
		}
	}

	return fmt.Errorf("gave up waiting after %v for non-zero length in %s",
		time.Since(startTime), devPath)
}

func getTempFile(size int64) string {
	fp, err := ioutil.TempFile("", "blockstack_test")
	if err != nil {
		panic(err)
	}

	name := fp.Name()
	fp.Close()

	if err := os.Truncate(name, size); err != nil {
		panic(err)
	}

	return name
}

func randStr(n int) string {
	var letters = []rune("abcdefghijklmnopqrstuvwxyz")

	b := make([]rune, n)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}

	return string(b)
}

func isRoot() error {
	uid := os.Geteuid()
	if uid == 0 {
		return nil
	}

	return fmt.Errorf("not root (euid=%d)", uid)
}

func writableCharDev(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: did not exist", path)
		}

		return fmt.Errorf("%s: %s", path, err)
	}

	if fi.Mode()&os.ModeCharDevice != os.ModeCharDevice {
		return fmt.Errorf("%s: not a character device", path)
	}

	if err := unix.Access(path, unix.W_OK); err != nil {
		return fmt.Errorf("%s: not writable", path)
	}

	return nil
}

func hasCommands(names ...string) error {
	for _, name := range names {
		if _, err := exec.LookPath(name); err != nil {
			return fmt.Errorf("%s: command not present", name)
		}
	}

	return nil
}

func canBuildStack() error {
	if err := isRoot(); err != nil {
		return err
	}

	for _, dev := range []string{"/dev/loop-control", "/dev/mapper/control"} {
		if err := writableCharDev(dev); err != nil {
			return err
		}
	}

	return hasCommands("losetup", "lvm", "cryptsetup", "mkswap", "mkfs.xfs", "wipefs", "blkid", "e2fsck")
}

func skipIfNoStack(t *testing.T) {
	if err := canBuildStack(); err != nil {
		t.Skip(err)
	}
}

func skipIfNoCommands(t *testing.T, names ...string) {
	if err := hasCommands(names...); err != nil {
		t.Skip(err)
	}
}

// nolint: gochecknoinits
func init() {
	rand.Seed(time.Now().UTC().UnixNano())
}
