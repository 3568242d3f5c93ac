//go:build linux
// +build linux

package linux

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/rekby/gpt"
	"github.com/rekby/mbr"
	"golang.org/x/sys/unix"
	"machinerun.io/blockstack"
)

const (
	sectorSize512 = 512
	sectorSize4k  = 4096

	// blkid exits 2 when it could not identify anything on the device.
	blkidNothingFound = 2
)

// ErrNoPartitionTable is returned if there is no partition table.
var ErrNoPartitionTable = errors.New("no partition table found")

func readGPTTableSearch(fp io.ReadSeeker, sizes []uint) (gpt.Table, uint, error) {
	const noGptFound = "Bad GPT signature"
	var gptTable gpt.Table
	var err error
	var size uint

	for _, size = range sizes {
		// consider seek failure to be fatal
		if _, err := fp.Seek(int64(size), io.SeekStart); err != nil {
			return gpt.Table{}, size, err
		}

		if gptTable, err = gpt.ReadTable(fp, uint64(size)); err != nil {
			if err.Error() == noGptFound {
				continue
			}

			return gpt.Table{}, size, err
		}

		return gptTable, size, nil
	}

	return gpt.Table{}, size, ErrNoPartitionTable
}

func readMBRSignature(fp io.ReadSeeker) error {
	if _, err := fp.Seek(0, io.SeekStart); err != nil {
		return err
	}

	_, err := mbr.Read(fp)
	if err == mbr.ErrorBadMbrSign {
		return ErrNoPartitionTable
	}

	// anything else that parsed or half-parsed still marks the disk as used.
	return nil
}

// partitionTableType returns "gpt", "dos" or "" for the table found on fp.
func partitionTableType(fp io.ReadSeeker) (string, error) {
	_, _, err := readGPTTableSearch(fp, []uint{sectorSize512, sectorSize4k})
	if err == nil {
		return "gpt", nil
	}

	if err != ErrNoPartitionTable {
		// short devices fail the read; they cannot hold a gpt either.
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return "", nil
		}

		return "", err
	}

	if err := readMBRSignature(fp); err == ErrNoPartitionTable {
		return "", nil
	} else if err != nil {
		return "", err
	}

	return "dos", nil
}

func probePartitionTable(device string) (string, error) {
	fp, err := os.Open(device)
	if err != nil {
		return "", err
	}
	defer fp.Close()

	return partitionTableType(fp)
}

// hasSignature reports whether blkid recognizes anything on device.
func (b *linuxBackend) hasSignature(device string) (bool, error) {
	cmd, err := b.command("blkid", "--probe", "--output=export", device)
	if err != nil {
		return false, err
	}

	out, stderr, rc := runCommandWithOutputErrorRc(cmd...)

	switch rc {
	case 0:
		return true, nil
	case blkidNothingFound:
		return false, nil
	}

	return false, cmdError("fs", cmd, out, stderr, rc)
}

func (b *linuxBackend) WipeSignatures(device string) error {
	if !pathExists(device) {
		return &blockstack.OpError{Category: "fs", Code: int(unix.ENOENT), Msg: "device " + device + " does not exist"}
	}

	ptType, err := probePartitionTable(device)
	if err != nil {
		return errors.Wrapf(err, "failed to read partition table of %s", device)
	}

	signed, err := b.hasSignature(device)
	if err != nil {
		return err
	}

	if ptType == "" && !signed {
		return errors.Wrapf(blockstack.ErrNoFilesystem, "%s", device)
	}

	return b.run("fs", "wipefs", "--all", "--force", device)
}
