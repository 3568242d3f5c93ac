//go:build linux
// +build linux

package linux

import (
	"fmt"
	"strconv"
	"strings"

	uuid "github.com/satori/go.uuid"
	"machinerun.io/blockstack"
)

const (
	e2fsckOK            = 0
	e2fsckErrorsFixed   = 1
	e2fsckErrorsLeft    = 4
	e2fsckPasses        = 5
	e2fsckProgressField = 4
)

// weight of each e2fsck pass in the overall completion, they add up to 100.
//nolint:gochecknoglobals
var e2fsckPassWeights = [e2fsckPasses]uint64{70, 20, 2, 3, 5}

func (b *linuxBackend) SwapFormat(device, label string) error {
	args := []string{"mkswap"}

	if label != "" {
		args = append(args, "--label", label)
	}

	return b.run("swap", append(args, device)...)
}

// CreateFilesystem creates an xfs filesystem.
func (b *linuxBackend) CreateFilesystem(device string, extra ...blockstack.ExtraArg) error {
	args := []string{"mkfs.xfs"}
	for _, e := range extra {
		args = append(args, e.Args()...)
	}

	return b.run("fs", append(args, device)...)
}

// parseE2fsckProgress parses a "pass current max device" line written by
// e2fsck -C and returns the overall completion in whole percent. The device
// part is the volume label or path and may contain spaces; only the three
// numbers are read.
func parseE2fsckProgress(line string) (uint8, bool) {
	fields := strings.Fields(line)
	if len(fields) < e2fsckProgressField {
		return 0, false
	}

	var nums [3]uint64

	for i := range nums {
		n, err := strconv.ParseUint(fields[i], 10, 64)
		if err != nil {
			return 0, false
		}

		nums[i] = n
	}

	pass, cur, max := nums[0], nums[1], nums[2]
	if pass < 1 || pass > e2fsckPasses || max == 0 || cur > max {
		return 0, false
	}

	var done uint64
	for _, w := range e2fsckPassWeights[:pass-1] {
		done += w
	}

	done += e2fsckPassWeights[pass-1] * cur / max

	return uint8(done), true
}

// CheckFilesystem runs a read-only e2fsck on an ext2/3/4 filesystem.
func (b *linuxBackend) CheckFilesystem(device string, progress blockstack.ProgressFunc) error {
	cmd, err := b.command("e2fsck", "-f", "-n", "-C", "1", device)
	if err != nil {
		return err
	}

	report := func(status blockstack.ProgressStatus, percent uint8, msg string) {}
	if progress != nil {
		id := uuid.NewV4().String()
		report = func(status blockstack.ProgressStatus, percent uint8, msg string) {
			progress(blockstack.ProgressEvent{ID: id, Status: status, Percent: percent, Message: msg})
		}
	}

	report(blockstack.Started, 0, fmt.Sprintf("Started '%s'", strings.Join(cmd, " ")))

	var last uint8

	stderr, rc, err := runCommandLines(func(line string) {
		if percent, ok := parseE2fsckProgress(line); ok {
			last = percent
			report(blockstack.Progress, percent, "")

			return
		}

		if line = strings.TrimSpace(line); line != "" {
			report(blockstack.Progress, last, line)
		}
	}, cmd...)
	if err != nil {
		report(blockstack.Failed, last, "Failed")
		return &blockstack.OpError{Category: "fs", Code: rc, Msg: err.Error()}
	}

	switch rc {
	case e2fsckOK, e2fsckErrorsFixed:
		report(blockstack.Finished, 100, "Completed") //nolint:gomnd
		return nil
	case e2fsckErrorsLeft:
		report(blockstack.Failed, last, "Failed")
		return &blockstack.OpError{Category: "fs", Code: rc,
			Msg: fmt.Sprintf("filesystem on %s has errors: %s", device, strings.TrimSpace(string(stderr)))}
	}

	report(blockstack.Failed, last, "Failed")

	return cmdError("fs", cmd, nil, stderr, rc)
}
