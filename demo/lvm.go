package main

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"
	"machinerun.io/blockstack/linux"
)

//nolint:gochecknoglobals
var vgCommands = cli.Command{
	Name:  "vg",
	Usage: "volume group commands",
	Subcommands: []*cli.Command{
		{
			Name:   "info",
			Usage:  "Dump size and free space of a vg (json). Defaults to the configured vg.",
			Action: vgInfo,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "config",
					Value: "",
					Usage: "Read the vg name from this yaml or json file",
				},
			},
		},
	},
}

func vgInfo(c *cli.Context) error {
	var name string

	switch c.Args().Len() {
	case 0:
		layout, err := loadLayout(c.String("config"))
		if err != nil {
			return err
		}

		name = layout.VGName
	case 1:
		name = c.Args().First()
	default:
		return fmt.Errorf("too many args. Really just want 1. Got %d", c.Args().Len())
	}

	if err := requireRoot(); err != nil {
		return err
	}

	backend, err := linux.New()
	if err != nil {
		return failure("Error initializing storage backend", err)
	}

	info, err := backend.VGInfo(name)
	if err != nil {
		return failure("Error when getting vg info", err)
	}

	jbytes, err := json.MarshalIndent(&info, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(jbytes))

	return nil
}
