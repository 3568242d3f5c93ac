package blockstack

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// ProgressStatus is the state of the operation a ProgressEvent reports on.
type ProgressStatus int

const (
	// Started is reported once when the operation begins.
	Started ProgressStatus = iota

	// Progress is reported for every completion update.
	Progress

	// Finished is reported once when the operation succeeded.
	Finished

	// Failed is reported once when the operation failed.
	Failed
)

func (s ProgressStatus) String() string {
	return [...]string{"started", "progress", "finished", "failed"}[s]
}

// ProgressEvent is a single asynchronous update from a running operation.
type ProgressEvent struct {
	// ID identifies the operation the event belongs to.
	ID string

	Status ProgressStatus

	// Percent is the completion, rounded to whole percent.
	Percent uint8

	// Message is human readable text, empty when the event carries none.
	Message string
}

// ProgressFunc receives progress events. A backend never calls it
// concurrently for a single operation.
type ProgressFunc func(ProgressEvent)

// noPercent is outside the 0-100 range so the first percentage always prints.
const noPercent = -1

// Reporter writes progress events to a writer, printing each percentage only
// once. Tools report at finer granularity than whole percent so the same
// rounded value usually arrives in bursts.
type Reporter struct {
	out  io.Writer
	last int
}

// NewReporter returns a Reporter that has not reported anything yet.
func NewReporter(out io.Writer) *Reporter {
	return &Reporter{out: out, last: noPercent}
}

// Report handles one event. Messages always print; a percentage prints only
// when it differs from the previously printed one.
func (r *Reporter) Report(ev ProgressEvent) {
	if ev.Message != "" {
		fmt.Fprintf(r.out, "%s\n", ev.Message)
		return
	}

	if int(ev.Percent) == r.last {
		return
	}

	fmt.Fprintf(r.out, "Progress: %d%%\n", ev.Percent)
	r.last = int(ev.Percent)
}

// Func returns r.Report as a ProgressFunc.
func (r *Reporter) Func() ProgressFunc {
	return r.Report
}

// CheckFilesystem checks the filesystem on device, writing deduplicated
// progress to out.
func CheckFilesystem(b Backend, device string, out io.Writer) error {
	reporter := NewReporter(out)

	if err := b.CheckFilesystem(device, reporter.Func()); err != nil {
		return errors.Wrapf(err, "error when checking filesystem on %s", device)
	}

	return nil
}
