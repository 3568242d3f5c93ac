package main

import (
	"io/ioutil"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/urfave/cli/v2"
)

func TestCheckArgCount(t *testing.T) {
	tables := []struct {
		args     []string
		expected string
	}{
		{[]string{}, "Expected a device/image path."},
		{[]string{"/dev/vda", "/dev/vdb"}, "Too many arguments."},
	}

	for _, table := range tables {
		app := newApp()
		app.Writer = ioutil.Discard
		app.ErrWriter = ioutil.Discard
		app.ExitErrHandler = func(*cli.Context, error) {}

		err := app.Run(append([]string{"fsckprogress"}, table.args...))

		exitErr, ok := err.(cli.ExitCoder)
		if !assert.True(t, ok, "args %v: %v", table.args, err) {
			continue
		}

		assert.Equal(t, 1, exitErr.ExitCode(), "args %v", table.args)
		assert.Equal(t, table.expected, exitErr.Error(), "args %v", table.args)
	}
}
