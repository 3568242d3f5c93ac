package blockstack_test

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"machinerun.io/blockstack"
	"machinerun.io/blockstack/mockos"
)

func percent(p uint8) blockstack.ProgressEvent {
	return blockstack.ProgressEvent{Status: blockstack.Progress, Percent: p}
}

func TestReporterDeduplicates(t *testing.T) {
	assert := assert.New(t)
	out := &bytes.Buffer{}
	r := blockstack.NewReporter(out)

	r.Report(percent(10))
	r.Report(percent(10))
	r.Report(percent(11))
	r.Report(percent(11))
	r.Report(blockstack.ProgressEvent{Status: blockstack.Progress, Percent: 11, Message: "done"})

	assert.Equal("Progress: 10%\nProgress: 11%\ndone\n", out.String())
}

func TestReporterFirstPercentPrints(t *testing.T) {
	out := &bytes.Buffer{}
	r := blockstack.NewReporter(out)

	r.Report(percent(0))
	r.Report(percent(0))

	assert.Equal(t, "Progress: 0%\n", out.String())
}

func TestReporterMessageKeepsLastPercent(t *testing.T) {
	out := &bytes.Buffer{}
	r := blockstack.NewReporter(out)

	r.Report(percent(40))
	r.Report(blockstack.ProgressEvent{Status: blockstack.Progress, Percent: 50, Message: "Pass 2"})
	r.Report(percent(40))
	r.Report(percent(50))

	assert.Equal(t, "Progress: 40%\nPass 2\nProgress: 50%\n", out.String())
}

func TestProgressStatusString(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("started", blockstack.Started.String())
	assert.Equal("progress", blockstack.Progress.String())
	assert.Equal("finished", blockstack.Finished.String())
	assert.Equal("failed", blockstack.Failed.String())
}

func TestCheckFilesystem(t *testing.T) {
	b := provisioned(t)
	b.SetCheckEvents([]blockstack.ProgressEvent{
		{Status: blockstack.Started, Message: "Started 'e2fsck'"},
		percent(3),
		percent(3),
		percent(70),
		percent(100),
		{Status: blockstack.Finished, Percent: 100, Message: "Completed"},
	}, nil)

	out := &bytes.Buffer{}

	assert.NoError(t, blockstack.CheckFilesystem(b, "/dev/mapper/test-luks-data", out))
	assert.Equal(t, "Started 'e2fsck'\nProgress: 3%\nProgress: 70%\nProgress: 100%\nCompleted\n", out.String())
}

func TestCheckFilesystemEventsShareID(t *testing.T) {
	b := provisioned(t)
	b.SetCheckEvents([]blockstack.ProgressEvent{percent(1), percent(2)}, nil)

	var ids []string

	err := b.CheckFilesystem("/dev/mapper/test-luks-data", func(ev blockstack.ProgressEvent) {
		ids = append(ids, ev.ID)
	})

	assert.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.NotEmpty(t, ids[0])
	assert.Equal(t, ids[0], ids[1])
}

func TestCheckFilesystemFailure(t *testing.T) {
	b := provisioned(t)
	b.SetCheckEvents([]blockstack.ProgressEvent{percent(20)},
		&blockstack.OpError{Category: "fs", Code: 4, Msg: "filesystem has errors"})

	out := &bytes.Buffer{}
	err := blockstack.CheckFilesystem(b, "/dev/mapper/test-luks-data", out)

	assert.EqualError(t, err, "error when checking filesystem on /dev/mapper/test-luks-data: filesystem has errors")
	assert.Equal(t, "Progress: 20%\n", out.String())

	category, code := blockstack.ErrorDetails(err)
	assert.Equal(t, "fs", category)
	assert.Equal(t, 4, code)
}

func TestCheckFilesystemNoFilesystem(t *testing.T) {
	b := mockos.New(mockos.Disk{Path: vda, Size: blockstack.Gibibyte})

	err := blockstack.CheckFilesystem(b, vda, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestErrorDetails(t *testing.T) {
	assert := assert.New(t)

	category, code := blockstack.ErrorDetails(errors.New("plain"))
	assert.Equal("unknown", category)
	assert.Equal(0, code)

	wrapped := errors.Wrap(errors.Wrap(&blockstack.OpError{Category: "lvm", Code: 5, Msg: "x"}, "a"), "b")
	category, code = blockstack.ErrorDetails(wrapped)
	assert.Equal("lvm", category)
	assert.Equal(5, code)

	category, code = blockstack.ErrorDetails(nil)
	assert.Equal("unknown", category)
	assert.Equal(0, code)
}
