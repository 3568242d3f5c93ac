package blockstack

import (
	"github.com/pkg/errors"
)

// Teardown removes a stack built by Provision from disks, dependents first:
// the luks mapping is closed before the data lv goes away, both lvs before the
// vg, and the vg before the pv labels. It expects a fully provisioned stack
// and fails at the first missing piece.
func (s *Stack) Teardown(disks ...string) error {
	l := s.Layout

	ok, err := s.proceed(disks, teardownPrompt)
	if err != nil || !ok {
		return err
	}

	b := s.Backend

	s.Log.Debug().Str("device", l.CryptPath()).Msg("closing luks")

	if err := b.CryptClose(l.CryptPath()); err != nil {
		return errors.Wrapf(err, "error when closing luks device %s", l.CryptPath())
	}

	if err := b.RemoveLV(l.VGName, l.DataName); err != nil {
		return errors.Wrap(err, "error when removing data lv")
	}

	if err := b.RemoveLV(l.VGName, l.SwapName); err != nil {
		return errors.Wrap(err, "error when removing swap lv")
	}

	s.Log.Debug().Str("vg", l.VGName).Msg("removing vg")

	if err := b.RemoveVG(l.VGName); err != nil {
		return errors.Wrap(err, "error when removing vg")
	}

	for _, disk := range disks {
		if err := b.RemovePV(disk); err != nil {
			return errors.Wrapf(err, "error when removing lvmpv format from %s", disk)
		}
	}

	s.Log.Info().Strs("disks", disks).Msg("stack removed")

	return nil
}
