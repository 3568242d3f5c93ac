package blockstack

import (
	"fmt"

	"github.com/pkg/errors"
)

const (
	// Kibibyte is 1024 bytes.
	Kibibyte = 1024

	// Mebibyte is 1024 Kibibytes.
	Mebibyte = Kibibyte * 1024

	// Gibibyte is 1024 Mebibytes.
	Gibibyte = Mebibyte * 1024
)

// ErrNoFilesystem is returned by Backend.WipeSignatures when the device did
// not carry any signature. A clean device is a valid starting state.
var ErrNoFilesystem = errors.New("no filesystem signature found")

// LVLayout is the allocation policy of a logical volume.
type LVLayout int

const (
	// Linear places extents contiguously, no striping or mirroring.
	Linear LVLayout = iota
)

func (l LVLayout) String() string {
	if l == Linear {
		return "linear"
	}

	return fmt.Sprintf("LVLayout(%d)", int(l))
}

// VGInfo is the backend's view of a volume group at the time of the query.
type VGInfo struct {
	Name       string `json:"name"`
	Size       uint64 `json:"size"`
	Free       uint64 `json:"free"`
	ExtentSize uint64 `json:"extentSize"`
	PVCount    int    `json:"pvCount"`
	LVCount    int    `json:"lvCount"`
}

// ExtraArg is an option passed through to the tool behind a backend call,
// for example {"-L", "label"} for mkfs.
type ExtraArg struct {
	Opt string
	Val string
}

// Args returns the arguments as a flat list suitable for a command line.
func (e ExtraArg) Args() []string {
	if e.Val == "" {
		return []string{e.Opt}
	}

	return []string{e.Opt, e.Val}
}

// CryptFormatOpts are the parameters of a LUKS format. Zero values select the
// backend's defaults.
type CryptFormatOpts struct {
	// Cipher is the cipher specification, empty for default.
	Cipher string

	// KeyBits is the key size in bits, 0 for default.
	KeyBits uint

	Passphrase string

	// KeyFile is used instead of the passphrase when set.
	KeyFile string

	// MinEntropy is the minimum random data entropy required before the
	// format starts.
	MinEntropy uint
}

// CryptOpenOpts are the parameters for opening a LUKS device.
type CryptOpenOpts struct {
	Passphrase string
	KeyFile    string
	ReadOnly   bool
}

// Backend is the storage management backend that performs the actual
// operations on devices. Every call blocks until the underlying tool
// finishes.
type Backend interface {
	// WipeSignatures removes all signatures from device. It returns
	// ErrNoFilesystem if there was nothing to wipe.
	WipeSignatures(device string) error

	// CreatePV initializes device as an lvm physical volume. Zero alignment
	// and metadata size select the defaults.
	CreatePV(device string, dataAlignment, metadataSize uint64) error

	// RemovePV removes the lvm physical volume label from device.
	RemovePV(device string) error

	// CreateVG creates the volume group name from the given physical volumes.
	CreateVG(name string, extentSize uint64, devices ...string) error

	// VGInfo returns the current state of the volume group.
	VGInfo(name string) (VGInfo, error)

	// RemoveVG removes the volume group.
	RemoveVG(name string) error

	// CreateLV creates a logical volume of size bytes in vgName.
	CreateLV(vgName, name string, size uint64, layout LVLayout) error

	// RemoveLV removes a logical volume.
	RemoveLV(vgName, name string) error

	// SwapFormat makes device a swap space with the given label.
	SwapFormat(device, label string) error

	// CryptFormat formats device as a LUKS volume.
	CryptFormat(device string, opts CryptFormatOpts) error

	// CryptOpen maps the LUKS volume on device to /dev/mapper/name.
	CryptOpen(device, name string, opts CryptOpenOpts) error

	// CryptClose unmaps an opened LUKS volume given its mapped path.
	CryptClose(mappedPath string) error

	// CreateFilesystem creates a filesystem on device.
	CreateFilesystem(device string, extra ...ExtraArg) error

	// CheckFilesystem checks the filesystem on device, calling progress
	// serially from the calling goroutine while the check runs. A nil
	// progress runs the check without reporting.
	CheckFilesystem(device string, progress ProgressFunc) error
}

// OpError is a failed backend operation.
type OpError struct {
	// Category is the backend domain that failed (lvm, crypto, fs, swap).
	Category string

	// Code is the status reported by the failing tool.
	Code int

	Msg string
}

func (e *OpError) Error() string {
	return e.Msg
}

// ErrorDetails returns the category and code of the first OpError in the
// chain of err.
func ErrorDetails(err error) (string, int) {
	var opErr *OpError

	if errors.As(err, &opErr) {
		return opErr.Category, opErr.Code
	}

	return "unknown", 0
}
