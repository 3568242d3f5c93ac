package mockos

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
	"machinerun.io/blockstack"
)

// Disk is a raw device known to the mock backend.
type Disk struct {
	Path string `json:"path"`
	Size uint64 `json:"size"`

	// Signed indicates the disk carries a signature that a wipe would remove.
	Signed bool `json:"signed"`
}

// Call is a single recorded backend invocation.
type Call struct {
	Op   string
	Args []string
}

func (c Call) String() string {
	return c.Op + "(" + strings.Join(c.Args, ", ") + ")"
}

type mockVG struct {
	extentSize uint64
	pvs        []string
	lvs        map[string]uint64
}

type failure struct {
	op  string
	arg string
	nth int
	err error
}

// Backend is an in-memory blockstack.Backend. It enforces the same ordering
// rules as lvm and cryptsetup: a pv in a vg cannot be removed, a vg with lvs
// cannot be removed, an lv under an open luks mapping cannot be removed.
type Backend struct {
	disks    map[string]Disk
	pvs      map[string]string
	vgs      map[string]*mockVG
	luks     map[string]string
	mapped   map[string]string
	swaps    map[string]string
	fs       map[string]string
	calls    []Call
	counts   map[string]int
	failures []failure

	checkEvents []blockstack.ProgressEvent
	checkErr    error
}

// New returns a mock backend that knows about disks.
func New(disks ...Disk) *Backend {
	b := &Backend{
		disks:  map[string]Disk{},
		pvs:    map[string]string{},
		vgs:    map[string]*mockVG{},
		luks:   map[string]string{},
		mapped: map[string]string{},
		swaps:  map[string]string{},
		fs:     map[string]string{},
		counts: map[string]int{},
	}

	for _, d := range disks {
		b.disks[d.Path] = d
	}

	return b
}

// Load returns a mock backend with the disks listed in the json model file.
// It panics if the file cannot be read.
func Load(model string) *Backend {
	content, err := ioutil.ReadFile(model)
	if err != nil {
		panic(err)
	}

	var m struct {
		Disks []Disk `json:"disks"`
	}

	if err := json.Unmarshal(content, &m); err != nil {
		panic(err)
	}

	return New(m.Disks...)
}

// Fail makes every later call of op fail with err. If arg is not empty only
// calls whose first argument equals arg fail.
func (b *Backend) Fail(op, arg string, err error) {
	b.failures = append(b.failures, failure{op: op, arg: arg, err: err})
}

// FailAt makes only the nth (counting from 1) call of op fail with err.
func (b *Backend) FailAt(op string, nth int, err error) {
	b.failures = append(b.failures, failure{op: op, nth: nth, err: err})
}

// SetCheckEvents sets the events CheckFilesystem emits and the error it
// returns afterwards.
func (b *Backend) SetCheckEvents(events []blockstack.ProgressEvent, err error) {
	b.checkEvents = events
	b.checkErr = err
}

// Calls returns all recorded invocations in order.
func (b *Backend) Calls() []Call {
	return append([]Call{}, b.calls...)
}

// Ops returns the operation names of all recorded invocations in order.
func (b *Backend) Ops() []string {
	ops := make([]string, len(b.calls))
	for i, c := range b.calls {
		ops[i] = c.Op
	}

	return ops
}

// ResetCalls forgets the recorded invocations and the per-op counts.
func (b *Backend) ResetCalls() {
	b.calls = nil
	b.counts = map[string]int{}
}

func (b *Backend) record(op string, args ...string) error {
	b.calls = append(b.calls, Call{Op: op, Args: args})
	b.counts[op]++

	for _, f := range b.failures {
		if f.op != op || (f.nth != 0 && f.nth != b.counts[op]) {
			continue
		}

		if f.arg == "" || (len(args) > 0 && args[0] == f.arg) {
			return f.err
		}
	}

	return nil
}

func opError(category, format string, a ...interface{}) error {
	return &blockstack.OpError{Category: category, Code: 1, Msg: fmt.Sprintf(format, a...)}
}

func u64(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func roundUp(val, unit uint64) uint64 {
	if val%unit == 0 {
		return val
	}

	return ((val + unit) / unit) * unit
}

// lvForPath resolves /dev/vg/lv to its vg.
func (b *Backend) lvForPath(device string) (*mockVG, string, bool) {
	vgName, lvName := path.Split(strings.TrimPrefix(device, "/dev/"))
	vg, ok := b.vgs[strings.TrimSuffix(vgName, "/")]

	if !ok {
		return nil, "", false
	}

	if _, ok := vg.lvs[lvName]; !ok {
		return nil, "", false
	}

	return vg, lvName, true
}

func (b *Backend) isMapped(device string) bool {
	for _, dev := range b.mapped {
		if dev == device {
			return true
		}
	}

	return false
}

func (b *Backend) WipeSignatures(device string) error {
	if err := b.record("WipeSignatures", device); err != nil {
		return err
	}

	d, ok := b.disks[device]
	if !ok {
		return opError("fs", "device %s does not exist", device)
	}

	if vgName, ok := b.pvs[device]; ok {
		if vgName != "" {
			return opError("fs", "device %s is in use by vg %s", device, vgName)
		}

		delete(b.pvs, device)
	}

	if !d.Signed {
		return errors.Wrapf(blockstack.ErrNoFilesystem, "no signature on %s", device)
	}

	d.Signed = false
	b.disks[device] = d

	return nil
}

func (b *Backend) CreatePV(device string, dataAlignment, metadataSize uint64) error {
	if err := b.record("CreatePV", device, u64(dataAlignment), u64(metadataSize)); err != nil {
		return err
	}

	d, ok := b.disks[device]
	if !ok {
		return opError("lvm", "device %s does not exist", device)
	}

	if _, ok := b.pvs[device]; ok {
		return opError("lvm", "pv %s already exists", device)
	}

	b.pvs[device] = ""
	d.Signed = true
	b.disks[device] = d

	return nil
}

func (b *Backend) RemovePV(device string) error {
	if err := b.record("RemovePV", device); err != nil {
		return err
	}

	vgName, ok := b.pvs[device]
	if !ok {
		return opError("lvm", "pv %s does not exist", device)
	}

	if vgName != "" {
		return opError("lvm", "pv %s is in use by vg %s", device, vgName)
	}

	delete(b.pvs, device)

	d := b.disks[device]
	d.Signed = false
	b.disks[device] = d

	return nil
}

func (b *Backend) CreateVG(name string, extentSize uint64, devices ...string) error {
	if err := b.record("CreateVG", append([]string{name, u64(extentSize)}, devices...)...); err != nil {
		return err
	}

	if _, ok := b.vgs[name]; ok {
		return opError("lvm", "vg %s already exists", name)
	}

	if extentSize == 0 {
		return opError("lvm", "invalid extent size 0")
	}

	for _, dev := range devices {
		vgName, ok := b.pvs[dev]
		if !ok {
			return opError("lvm", "pv %s does not exist", dev)
		}

		if vgName != "" {
			return opError("lvm", "pv %s already in use by vg %s", dev, vgName)
		}
	}

	for _, dev := range devices {
		b.pvs[dev] = name
	}

	b.vgs[name] = &mockVG{
		extentSize: extentSize,
		pvs:        append([]string{}, devices...),
		lvs:        map[string]uint64{},
	}

	return nil
}

func (b *Backend) vgInfo(name string, vg *mockVG) blockstack.VGInfo {
	info := blockstack.VGInfo{
		Name:       name,
		ExtentSize: vg.extentSize,
		PVCount:    len(vg.pvs),
		LVCount:    len(vg.lvs),
	}

	for _, dev := range vg.pvs {
		// a pv only contributes whole extents
		info.Size += (b.disks[dev].Size / vg.extentSize) * vg.extentSize
	}

	info.Free = info.Size
	for _, size := range vg.lvs {
		info.Free -= size
	}

	return info
}

func (b *Backend) VGInfo(name string) (blockstack.VGInfo, error) {
	if err := b.record("VGInfo", name); err != nil {
		return blockstack.VGInfo{}, err
	}

	vg, ok := b.vgs[name]
	if !ok {
		return blockstack.VGInfo{}, opError("lvm", "vg %s does not exist", name)
	}

	return b.vgInfo(name, vg), nil
}

func (b *Backend) RemoveVG(name string) error {
	if err := b.record("RemoveVG", name); err != nil {
		return err
	}

	vg, ok := b.vgs[name]
	if !ok {
		return opError("lvm", "vg %s does not exist", name)
	}

	if len(vg.lvs) != 0 {
		return opError("lvm", "vg %s still has %d lvs", name, len(vg.lvs))
	}

	for _, dev := range vg.pvs {
		b.pvs[dev] = ""
	}

	delete(b.vgs, name)

	return nil
}

func (b *Backend) CreateLV(vgName, name string, size uint64, layout blockstack.LVLayout) error {
	if err := b.record("CreateLV", vgName, name, u64(size), layout.String()); err != nil {
		return err
	}

	vg, ok := b.vgs[vgName]
	if !ok {
		return opError("lvm", "vg %s does not exist", vgName)
	}

	if _, ok := vg.lvs[name]; ok {
		return opError("lvm", "lv %s/%s already exists", vgName, name)
	}

	if size == 0 {
		return opError("lvm", "lv %s/%s: size must be greater than 0", vgName, name)
	}

	size = roundUp(size, vg.extentSize)
	if free := b.vgInfo(vgName, vg).Free; size > free {
		return opError("lvm", "vg %s does not have enough space: %d > %d", vgName, size, free)
	}

	vg.lvs[name] = size

	return nil
}

func (b *Backend) RemoveLV(vgName, name string) error {
	if err := b.record("RemoveLV", vgName, name); err != nil {
		return err
	}

	vg, ok := b.vgs[vgName]
	if !ok {
		return opError("lvm", "vg %s does not exist", vgName)
	}

	if _, ok := vg.lvs[name]; !ok {
		return opError("lvm", "lv %s/%s does not exist", vgName, name)
	}

	device := blockstack.LVPath(vgName, name)
	if b.isMapped(device) {
		return opError("lvm", "lv %s is in use by an open luks mapping", device)
	}

	delete(vg.lvs, name)
	delete(b.luks, device)
	delete(b.swaps, device)
	delete(b.fs, device)

	return nil
}

func (b *Backend) SwapFormat(device, label string) error {
	if err := b.record("SwapFormat", device, label); err != nil {
		return err
	}

	if _, _, ok := b.lvForPath(device); !ok {
		return opError("swap", "device %s does not exist", device)
	}

	b.swaps[device] = label

	return nil
}

func (b *Backend) CryptFormat(device string, opts blockstack.CryptFormatOpts) error {
	if err := b.record("CryptFormat", device, opts.Cipher, strconv.Itoa(int(opts.KeyBits)),
		opts.KeyFile, strconv.Itoa(int(opts.MinEntropy))); err != nil {
		return err
	}

	if _, _, ok := b.lvForPath(device); !ok {
		return opError("crypto", "device %s does not exist", device)
	}

	if opts.Passphrase == "" && opts.KeyFile == "" {
		return opError("crypto", "no passphrase or key file given for %s", device)
	}

	if b.isMapped(device) {
		return opError("crypto", "device %s is in use", device)
	}

	b.luks[device] = opts.Passphrase + "\x00" + opts.KeyFile
	delete(b.fs, device)

	return nil
}

func (b *Backend) CryptOpen(device, name string, opts blockstack.CryptOpenOpts) error {
	if err := b.record("CryptOpen", device, name, opts.KeyFile, strconv.FormatBool(opts.ReadOnly)); err != nil {
		return err
	}

	key, ok := b.luks[device]
	if !ok {
		return opError("crypto", "device %s is not a luks device", device)
	}

	if key != opts.Passphrase+"\x00"+opts.KeyFile {
		return opError("crypto", "no key available with this passphrase for %s", device)
	}

	mappedPath := path.Join("/dev/mapper", name)
	if _, ok := b.mapped[mappedPath]; ok {
		return opError("crypto", "device %s already exists", mappedPath)
	}

	b.mapped[mappedPath] = device

	return nil
}

func (b *Backend) CryptClose(mappedPath string) error {
	if err := b.record("CryptClose", mappedPath); err != nil {
		return err
	}

	if _, ok := b.mapped[mappedPath]; !ok {
		return opError("crypto", "device %s is not active", mappedPath)
	}

	delete(b.mapped, mappedPath)

	return nil
}

func (b *Backend) CreateFilesystem(device string, extra ...blockstack.ExtraArg) error {
	args := []string{device}
	for _, e := range extra {
		args = append(args, e.Args()...)
	}

	if err := b.record("CreateFilesystem", args...); err != nil {
		return err
	}

	under, ok := b.mapped[device]
	if !ok {
		if _, _, isLV := b.lvForPath(device); !isLV {
			return opError("fs", "device %s does not exist", device)
		}

		under = device
	}

	label := ""

	for _, e := range extra {
		if e.Opt == "-L" {
			label = e.Val
		}
	}

	b.fs[under] = label

	return nil
}

func (b *Backend) CheckFilesystem(device string, progress blockstack.ProgressFunc) error {
	if err := b.record("CheckFilesystem", device); err != nil {
		return err
	}

	under, ok := b.mapped[device]
	if !ok {
		under = device
	}

	if _, ok := b.fs[under]; !ok {
		return opError("fs", "no filesystem on %s", device)
	}

	if progress != nil {
		id := uuid.NewV4().String()

		for _, ev := range b.checkEvents {
			ev.ID = id
			progress(ev)
		}
	}

	return b.checkErr
}

// VGState is the snapshot of a volume group in a State.
type VGState struct {
	ExtentSize uint64
	PVs        []string
	LVs        map[string]uint64
}

// State is a deep copy of everything the mock backend tracks.
type State struct {
	Disks       map[string]Disk
	PVs         map[string]string
	VGs         map[string]VGState
	Luks        map[string]bool
	Mapped      map[string]string
	Swaps       map[string]string
	Filesystems map[string]string
}

// State returns a snapshot of the backend.
func (b *Backend) State() State {
	st := State{
		Disks:       map[string]Disk{},
		PVs:         map[string]string{},
		VGs:         map[string]VGState{},
		Luks:        map[string]bool{},
		Mapped:      map[string]string{},
		Swaps:       map[string]string{},
		Filesystems: map[string]string{},
	}

	for k, v := range b.disks {
		st.Disks[k] = v
	}

	for k, v := range b.pvs {
		st.PVs[k] = v
	}

	for name, vg := range b.vgs {
		lvs := map[string]uint64{}
		for k, v := range vg.lvs {
			lvs[k] = v
		}

		pvs := append([]string{}, vg.pvs...)
		sort.Strings(pvs)
		st.VGs[name] = VGState{ExtentSize: vg.extentSize, PVs: pvs, LVs: lvs}
	}

	for k := range b.luks {
		st.Luks[k] = true
	}

	for k, v := range b.mapped {
		st.Mapped[k] = v
	}

	for k, v := range b.swaps {
		st.Swaps[k] = v
	}

	for k, v := range b.fs {
		st.Filesystems[k] = v
	}

	return st
}
