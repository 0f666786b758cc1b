package cli

import (
	"context"

	"github.com/biofloc/wqmodel/pkg/config"
	"github.com/urfave/cli/v3"
)

func newConfigCmd() *cli.Command {
	return &cli.Command{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Training config operations",
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Create the default config in ~/.wqmodel unless one exists",
				Action: cmdConfigInit,
			},
			{
				Name:   "show",
				Usage:  "Print the effective training config",
				Action: cmdConfigShow,
			},
		},
	}
}

func cmdConfigInit(_ context.Context, cmd *cli.Command) error {
	dir, _, err := config.GetOrCreateHomeDir(appName)
	if err != nil {
		return err
	}

	c, err := config.ReadOrCreate(dir)
	if err != nil {
		return err
	}
	return encode(cmd, c)
}

func cmdConfigShow(_ context.Context, cmd *cli.Command) error {
	return encode(cmd, getConfig(cmd).Config)
}
