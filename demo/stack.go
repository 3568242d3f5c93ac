package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"machinerun.io/blockstack"
	"machinerun.io/blockstack/linux"
)

func loadLayout(config string) (blockstack.Layout, error) {
	if config == "" {
		return blockstack.DefaultLayout(), nil
	}

	return blockstack.LoadLayout(config)
}

// failure formats err the way every fatal backend error is reported:
// message, category and code.
func failure(prefix string, err error) error {
	category, code := blockstack.ErrorDetails(err)
	return cli.Exit(fmt.Sprintf("%s: %s (%s, %d)", prefix, err, category, code), 1)
}

func stackAction(c *cli.Context) error {
	disks := c.Args().Slice()
	if len(disks) != blockstack.NumDisks {
		return cli.Exit(fmt.Sprintf("Expected exactly %d devices, got %d.", blockstack.NumDisks, len(disks)), 1)
	}

	if err := requireRoot(); err != nil {
		return err
	}

	layout, err := loadLayout(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Invalid configuration: %s", err), 1)
	}

	backend, err := linux.New()
	if err != nil {
		return failure("Error initializing storage backend", err)
	}

	stack := blockstack.NewStack(backend, layout, blockstack.Prompt{In: os.Stdin, Out: os.Stdout})
	stack.Rollback = c.Bool("rollback")
	stack.Log = log.Logger

	if c.Bool("cleanup") {
		if err := stack.Teardown(disks...); err != nil {
			return failure("Error when cleaning up created devices", err)
		}

		return nil
	}

	if err := stack.Provision(disks...); err != nil {
		return failure("Error when creating devices", err)
	}

	return nil
}
