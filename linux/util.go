//go:build linux
// +build linux

package linux

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"machinerun.io/blockstack"
)

const defaultErrorCode = 127

func getCommandErrorRCDefault(err error, rcError int) int {
	if err == nil {
		return 0
	}

	exitError, ok := err.(*exec.ExitError)
	if ok {
		if status, ok := exitError.Sys().(syscall.WaitStatus); ok {
			return status.ExitStatus()
		}
	}

	return rcError
}

func getCommandErrorRC(err error) int {
	return getCommandErrorRCDefault(err, defaultErrorCode)
}

// cmdError returns nil for rc 0, else an *blockstack.OpError in category
// carrying the command, its output and rc.
func cmdError(category string, args []string, out []byte, err []byte, rc int) error {
	if rc == 0 {
		return nil
	}

	return &blockstack.OpError{
		Category: category,
		Code:     rc,
		Msg:      cmdString(args, out, err, rc),
	}
}

func cmdString(args []string, out []byte, err []byte, rc int) string {
	return fmt.Sprintf(
		"command returned %d:\n cmd: %v\n out: %s\n err: %s",
		rc, args, strings.TrimSpace(string(out)), strings.TrimSpace(string(err)))
}

func runCommandWithOutputErrorRc(args ...string) ([]byte, []byte, int) {
	cmd := exec.Command(args[0], args[1:]...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	return stdout.Bytes(), stderr.Bytes(), getCommandErrorRC(err)
}

func runCommandWithOutputErrorRcStdin(input string, args ...string) ([]byte, []byte, int) {
	cmd := exec.Command(args[0], args[1:]...) //nolint:gosec
	cmd.Stdin = strings.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	return stdout.Bytes(), stderr.Bytes(), getCommandErrorRC(err)
}

func runCommand(category string, args ...string) error {
	out, err, rc := runCommandWithOutputErrorRc(args...)
	return cmdError(category, args, out, err, rc)
}

func runCommandStdin(category string, input string, args ...string) error {
	out, err, rc := runCommandWithOutputErrorRcStdin(input, args...)
	return cmdError(category, args, out, err, rc)
}

// runCommandLines runs args and calls onLine for every line the command
// writes to stdout, as it is written. It returns the collected stderr and rc.
func runCommandLines(onLine func(string), args ...string) ([]byte, int, error) {
	cmd := exec.Command(args[0], args[1:]...) //nolint:gosec

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, defaultErrorCode, err
	}

	if err := cmd.Start(); err != nil {
		return nil, getCommandErrorRC(err), err
	}

	scanLines(stdout, onLine)

	err = cmd.Wait()

	return stderr.Bytes(), getCommandErrorRC(err), nil
}

func scanLines(r io.Reader, onLine func(string)) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		onLine(scanner.Text())
	}

	// keep the writer from blocking if the scanner gave up early.
	io.Copy(ioutil.Discard, r) //nolint:errcheck
}

func pathExists(d string) bool {
	_, err := os.Stat(d)
	if err != nil && os.IsNotExist(err) {
		return false
	}

	return true
}

// sizeArg formats a byte count the way lvm accepts it.
func sizeArg(size uint64) string {
	return fmt.Sprintf("%dB", size)
}
