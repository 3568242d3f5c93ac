package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sys/unix"
)

var version string

func setupLogging(debug bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)
}

// requireRoot fails unless running with effective uid 0.
func requireRoot() error {
	if unix.Geteuid() != 0 {
		return cli.Exit("Requires to be run as root!", 1)
	}

	return nil
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "blockstack-demo",
		Version: version,
		Usage:   "Build a pv/vg/lv/luks/xfs stack on two disks, or take it down",
		// flags are not parsed after the first device.
		ArgsUsage: "[--cleanup] [--rollback] [--config FILE] DEVICE1 DEVICE2",
		Action:    stackAction,
		Before: func(c *cli.Context) error {
			setupLogging(c.Bool("debug"))
			return nil
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "cleanup",
				Value: false,
				Usage: "Cleanup mode -- remove previously created devices.",
			},
			&cli.StringFlag{
				Name:  "config",
				Value: "",
				Usage: "Read vg/lv names, labels and passphrase from this yaml or json file",
			},
			&cli.BoolFlag{
				Name:  "rollback",
				Value: false,
				Usage: "Undo completed steps if creating the devices fails",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Value: false,
				Usage: "Log every step",
			},
		},
		Commands: []*cli.Command{
			&vgCommands,
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("blockstack-demo failed")
	}
}
