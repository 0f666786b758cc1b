package cli

import (
	"context"
	"errors"

	"github.com/biofloc/wqmodel/pkg/dataset"
	"github.com/biofloc/wqmodel/pkg/model"
	"github.com/biofloc/wqmodel/pkg/quality"
	"github.com/urfave/cli/v3"
)

const (
	compareFlagName = "compare"
	summaryFlagName = "summary"
)

type labelResult struct {
	Line       int            `json:"line" yaml:"line"`
	Timestamp  string         `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Score      int            `json:"score" yaml:"score"`
	Label      quality.Label  `json:"label" yaml:"label"`
	Violations []string       `json:"violations,omitempty" yaml:"violations,omitempty"`
	Given      *quality.Label `json:"given,omitempty" yaml:"given,omitempty"`
}

type labelReport struct {
	Rows      int            `json:"rows" yaml:"rows"`
	Counts    map[string]int `json:"counts" yaml:"counts"`
	Agreement *float64       `json:"agreement,omitempty" yaml:"agreement,omitempty"`
	Results   []labelResult  `json:"results,omitempty" yaml:"results,omitempty"`
}

func newLabelCmd() *cli.Command {
	return &cli.Command{
		Name:      "label",
		Aliases:   []string{"l"},
		Usage:     "Score readings with the penalty heuristic and show the synthesized labels",
		ArgsUsage: "[readings.csv]",
		Action:    cmdLabel,
		Flags: []cli.Flag{
			inputFlag(),
			&cli.BoolFlag{
				Name:  compareFlagName,
				Usage: "Report agreement with the quality_label column of the input",
			},
			&cli.BoolFlag{
				Name:  summaryFlagName,
				Usage: "Print only counts, not per-row results",
			},
		},
	}
}

func cmdLabel(ctx context.Context, cmd *cli.Command) error {
	path, err := inputPath(cmd)
	if err != nil {
		return err
	}

	d, err := loadDataset(ctx, path)
	if err != nil {
		return err
	}

	compare := cmd.Bool(compareFlagName)
	if compare && !d.Labeled {
		return errors.New("input has no quality_label column to compare against")
	}

	rep := labelHeuristic(d, compare)
	if cmd.Bool(summaryFlagName) {
		rep.Results = nil
	}
	return encode(cmd, rep)
}

func labelHeuristic(d *dataset.Dataset, compare bool) *labelReport {
	rep := &labelReport{
		Rows:    d.Len(),
		Results: make([]labelResult, 0, d.Len()),
	}

	labels := make([]quality.Label, 0, d.Len())
	var agree int
	for _, row := range d.Rows {
		a := quality.Assess(row.Reading)
		res := labelResult{
			Line:       row.Line,
			Timestamp:  row.Timestamp,
			Score:      a.Score,
			Label:      a.Label,
			Violations: a.Violations,
		}
		if compare {
			given := row.Label
			res.Given = &given
			if given == a.Label {
				agree++
			}
		}
		labels = append(labels, a.Label)
		rep.Results = append(rep.Results, res)
	}

	rep.Counts = quality.CountLabels(labels)
	if compare && d.Len() > 0 {
		v := model.Round6(float64(agree) / float64(d.Len()))
		rep.Agreement = &v
	}
	return rep
}
