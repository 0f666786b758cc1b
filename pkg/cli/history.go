package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/biofloc/wqmodel/pkg/data"
	"github.com/biofloc/wqmodel/pkg/model"
	"github.com/urfave/cli/v3"
)

const limitFlagName = "limit"

type runDetail struct {
	data.Run `yaml:",inline"`
	Artifact *model.Artifact `json:"artifact" yaml:"artifact"`
}

func newHistoryCmd() *cli.Command {
	return &cli.Command{
		Name:    "history",
		Aliases: []string{"h"},
		Usage:   "List recorded training runs",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"l"},
				Usage:   "List the most recent runs",
				Action:  cmdHistoryList,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  limitFlagName,
						Usage: "Limits number of runs returned",
						Value: data.DefaultListLimit,
					},
				},
			},
			{
				Name:      "show",
				Aliases:   []string{"s"},
				Usage:     "Show a run and the artifact it produced",
				ArgsUsage: "<run-id>",
				Action:    cmdHistoryShow,
			},
		},
	}
}

func cmdHistoryList(_ context.Context, cmd *cli.Command) error {
	db, err := getConfig(cmd).DB()
	if err != nil {
		return err
	}

	list, err := data.ListRuns(db, int(cmd.Int(limitFlagName)))
	if err != nil {
		return err
	}
	return encode(cmd, list)
}

func cmdHistoryShow(_ context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return errors.New("run id required")
	}

	db, err := getConfig(cmd).DB()
	if err != nil {
		return err
	}

	r, err := data.GetRun(db, id)
	if err != nil {
		return err
	}

	a, err := model.Decode(bytes.NewReader(r.Artifact))
	if err != nil {
		return fmt.Errorf("stored artifact for run %s: %w", id, err)
	}
	r.Artifact = nil

	return encode(cmd, &runDetail{Run: *r, Artifact: a})
}
