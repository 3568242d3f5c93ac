package blockstack

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// NumDisks is the number of disks the stack spans.
const NumDisks = 2

var (
	// ErrDiskCount is returned when a pipeline is not given exactly NumDisks
	// disks.
	ErrDiskCount = errors.New("wrong number of devices")

	// ErrNoConfirmer is returned when a pipeline has no confirmation gate.
	ErrNoConfirmer = errors.New("no confirmation gate configured")
)

// Stack builds and removes the disk -> pv -> vg -> lv -> luks -> fs stack
// described by Layout using Backend. A Stack must not provision and tear down
// the same disks concurrently.
type Stack struct {
	Backend Backend
	Layout  Layout

	// Confirm guards both pipelines. It is asked once per call before any
	// backend operation.
	Confirm Confirmer

	// Rollback undoes the completed reversible steps of a failed
	// provisioning. Off by default: a failed provisioning leaves the
	// partial stack behind.
	Rollback bool

	Log zerolog.Logger
}

// NewStack returns a Stack with logging disabled and no rollback.
func NewStack(b Backend, layout Layout, confirm Confirmer) *Stack {
	return &Stack{
		Backend: b,
		Layout:  layout,
		Confirm: confirm,
		Log:     zerolog.Nop(),
	}
}

// proceed validates the input and asks for confirmation. It returns false
// without error when the user declined.
func (s *Stack) proceed(disks []string, prompt func([]string) string) (bool, error) {
	if len(disks) != NumDisks {
		return false, errors.Wrapf(ErrDiskCount, "expected exactly %d, got %d", NumDisks, len(disks))
	}

	if s.Confirm == nil {
		return false, ErrNoConfirmer
	}

	ok, err := s.Confirm.Confirm(prompt(disks))
	if err != nil {
		return false, errors.Wrap(err, "failed to read confirmation")
	}

	if !ok {
		s.Log.Info().Strs("disks", disks).Msg("aborted by user")
	}

	return ok, nil
}

// undoStack holds compensating actions for completed steps.
type undoStack struct {
	log   zerolog.Logger
	steps []undoStep
}

type undoStep struct {
	desc string
	fn   func() error
}

func (u *undoStack) push(desc string, fn func() error) {
	u.steps = append(u.steps, undoStep{desc: desc, fn: fn})
}

// unwind runs the pushed actions newest first, continuing past failures, and
// returns cause together with every undo failure.
func (u *undoStack) unwind(cause error) error {
	var result error = cause

	for i := len(u.steps) - 1; i >= 0; i-- {
		st := u.steps[i]
		u.log.Warn().Str("undo", st.desc).Msg("rolling back")

		if err := st.fn(); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "rollback failed to %s", st.desc))
		}
	}

	u.steps = nil

	return result
}
