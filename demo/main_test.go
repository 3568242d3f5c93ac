package main

import (
	"io/ioutil"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/urfave/cli/v2"
)

// runApp runs the cli with args and returns the error instead of exiting.
func runApp(args ...string) error {
	app := newApp()
	app.Writer = ioutil.Discard
	app.ErrWriter = ioutil.Discard
	app.ExitErrHandler = func(*cli.Context, error) {}

	return app.Run(append([]string{"blockstack-demo"}, args...))
}

func TestStackActionDeviceCount(t *testing.T) {
	tables := []struct {
		args     []string
		expected string
	}{
		{[]string{}, "Expected exactly 2 devices, got 0."},
		{[]string{"/dev/vda"}, "Expected exactly 2 devices, got 1."},
		{[]string{"/dev/vda", "/dev/vdb", "/dev/vdc"}, "Expected exactly 2 devices, got 3."},
		{[]string{"--cleanup", "/dev/vda"}, "Expected exactly 2 devices, got 1."},
		// flags after the devices are taken as devices.
		{[]string{"/dev/vda", "/dev/vdb", "--cleanup"}, "Expected exactly 2 devices, got 3."},
	}

	for _, table := range tables {
		err := runApp(table.args...)

		exitErr, ok := err.(cli.ExitCoder)
		if !assert.True(t, ok, "args %v: %v", table.args, err) {
			continue
		}

		assert.Equal(t, 1, exitErr.ExitCode(), "args %v", table.args)
		assert.Equal(t, table.expected, exitErr.Error(), "args %v", table.args)
	}
}

func TestUsageShowsFlagsFirst(t *testing.T) {
	assert.Equal(t, "[--cleanup] [--rollback] [--config FILE] DEVICE1 DEVICE2", newApp().ArgsUsage)
}

func TestVGInfoTooManyArgs(t *testing.T) {
	err := runApp("vg", "info", "vg0", "vg1")

	assert.EqualError(t, err, "too many args. Really just want 1. Got 2")
}
