package blockstack

import (
	"github.com/pkg/errors"
)

// SwapSize returns the size of the swap LV for a VG with free bytes
// available: a tenth of the free space, capped at max.
func SwapSize(free, max uint64) uint64 {
	if size := free / 10; size < max {
		return size
	}

	return max
}

// Provision wipes disks and builds the full stack on them. Steps run strictly
// in order and the first failure is returned. Nothing done before the failure
// is undone unless Rollback is set, and wiped signatures are never restored.
//
// Provision returns nil without touching the disks if confirmation was
// declined.
//nolint:funlen
func (s *Stack) Provision(disks ...string) error {
	l := s.Layout

	if err := l.Validate(); err != nil {
		return err
	}

	ok, err := s.proceed(disks, provisionPrompt)
	if err != nil || !ok {
		return err
	}

	b := s.Backend
	undo := &undoStack{log: s.Log}

	fail := func(err error) error {
		if s.Rollback {
			return undo.unwind(err)
		}

		return err
	}

	for _, disk := range disks {
		disk := disk

		s.Log.Debug().Str("disk", disk).Msg("wiping signatures")

		if err := b.WipeSignatures(disk); err != nil {
			if !errors.Is(err, ErrNoFilesystem) {
				return fail(errors.Wrapf(err, "error when wiping %s", disk))
			}

			s.Log.Debug().Str("disk", disk).Msg("nothing to wipe")
		}

		if err := b.CreatePV(disk, 0, 0); err != nil {
			return fail(errors.Wrapf(err, "error when creating lvmpv format on %s", disk))
		}

		undo.push("remove pv "+disk, func() error { return b.RemovePV(disk) })
	}

	s.Log.Debug().Str("vg", l.VGName).Uint64("extentSize", l.ExtentSize).Msg("creating vg")

	if err := b.CreateVG(l.VGName, l.ExtentSize, disks...); err != nil {
		return fail(errors.Wrap(err, "error when creating vg"))
	}

	undo.push("remove vg "+l.VGName, func() error { return b.RemoveVG(l.VGName) })

	vg, err := b.VGInfo(l.VGName)
	if err != nil {
		return fail(errors.Wrap(err, "error when getting info for the newly created vg"))
	}

	swapSize := SwapSize(vg.Free, l.SwapMax)
	s.Log.Debug().Str("lv", l.SwapName).Uint64("size", swapSize).Uint64("free", vg.Free).Msg("creating swap lv")

	if err := b.CreateLV(l.VGName, l.SwapName, swapSize, Linear); err != nil {
		return fail(errors.Wrap(err, "error when creating swap lv"))
	}

	undo.push("remove swap lv", func() error { return b.RemoveLV(l.VGName, l.SwapName) })

	if err := b.SwapFormat(l.SwapPath(), l.SwapLabel); err != nil {
		return fail(errors.Wrapf(err, "error when creating swap on %s", l.SwapPath()))
	}

	// free space changed with the swap lv, never reuse the first answer.
	vg, err = b.VGInfo(l.VGName)
	if err != nil {
		return fail(errors.Wrap(err, "error when getting info for the vg after creating swap"))
	}

	s.Log.Debug().Str("lv", l.DataName).Uint64("size", vg.Free).Msg("creating data lv")

	if err := b.CreateLV(l.VGName, l.DataName, vg.Free, Linear); err != nil {
		return fail(errors.Wrap(err, "error when creating data lv"))
	}

	undo.push("remove data lv", func() error { return b.RemoveLV(l.VGName, l.DataName) })

	formatOpts := CryptFormatOpts{Passphrase: l.Passphrase}
	if err := b.CryptFormat(l.DataPath(), formatOpts); err != nil {
		return fail(errors.Wrapf(err, "error when creating luks on %s", l.DataPath()))
	}

	openOpts := CryptOpenOpts{Passphrase: l.Passphrase}
	if err := b.CryptOpen(l.DataPath(), l.CryptName(), openOpts); err != nil {
		return fail(errors.Wrapf(err, "error when opening luks on %s", l.DataPath()))
	}

	undo.push("close luks "+l.CryptPath(), func() error { return b.CryptClose(l.CryptPath()) })

	// mkfs has no label parameter, so the label goes in as an extra argument.
	if err := b.CreateFilesystem(l.CryptPath(), ExtraArg{Opt: "-L", Val: l.DataLabel}); err != nil {
		return fail(errors.Wrapf(err, "error when creating xfs on %s", l.CryptPath()))
	}

	s.Log.Info().Strs("disks", disks).Str("vg", l.VGName).Str("device", l.CryptPath()).Msg("stack created")

	return nil
}
