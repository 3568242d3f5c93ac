// fsckprogress runs a read-only e2fsck on a device and prints its progress,
// each whole percent once.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sys/unix"
	"machinerun.io/blockstack"
	"machinerun.io/blockstack/linux"
)

var version string

func check(c *cli.Context) error {
	switch {
	case c.Args().Len() == 0:
		cli.ShowAppHelp(c) //nolint:errcheck
		return cli.Exit("Expected a device/image path.", 1)
	case c.Args().Len() > 1:
		cli.ShowAppHelp(c) //nolint:errcheck
		return cli.Exit("Too many arguments.", 1)
	}

	if unix.Geteuid() != 0 {
		return cli.Exit("Requires to be run as root!", 1)
	}

	device := c.Args().First()

	backend, err := linux.New()
	if err != nil {
		category, code := blockstack.ErrorDetails(err)
		return cli.Exit(fmt.Sprintf("Error initializing storage backend: %s (%s, %d)", err, category, code), 1)
	}

	log.Debug().Str("device", device).Msg("checking filesystem")

	if err := blockstack.CheckFilesystem(backend, device, os.Stdout); err != nil {
		category, code := blockstack.ErrorDetails(err)
		return cli.Exit(fmt.Sprintf("%s (%s, %d)", err, category, code), 1)
	}

	fmt.Println()

	return nil
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "fsckprogress",
		Version:   version,
		Usage:     "Check an ext4 device or image, reporting progress",
		ArgsUsage: "DEVICE",
		Action:    check,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Value: false,
				Usage: "Enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			level := zerolog.InfoLevel
			if c.Bool("debug") {
				level = zerolog.DebugLevel
			}

			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)

			return nil
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("fsckprogress failed")
	}
}
