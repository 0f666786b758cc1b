package cli

import (
	"context"
	"fmt"

	"github.com/biofloc/wqmodel/pkg/model"
	"github.com/biofloc/wqmodel/pkg/quality"
	"github.com/urfave/cli/v3"
)

const modelFlagName = "model"

type predictResult struct {
	Line       int                `json:"line,omitempty" yaml:"line,omitempty"`
	Timestamp  string             `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Prediction *model.Prediction  `json:"prediction" yaml:"prediction"`
	Heuristic  quality.Assessment `json:"heuristic" yaml:"heuristic"`
}

func newPredictCmd() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     modelFlagName,
			Aliases:  []string{"m"},
			Usage:    "Path or http(s) URL of the model artifact (JSON or YAML)",
			Required: true,
			Sources:  cli.EnvVars(envPrefix + "MODEL"),
		},
		inputFlag(),
	}
	for _, name := range quality.FeatureNames() {
		flags = append(flags, &cli.FloatFlag{
			Name:  name,
			Usage: fmt.Sprintf("Reading value for %s (when no --%s is given)", name, inputFlagName),
		})
	}

	return &cli.Command{
		Name:      "predict",
		Aliases:   []string{"p"},
		Usage:     "Score readings with an exported artifact",
		ArgsUsage: "[readings.csv]",
		Action:    cmdPredict,
		Flags:     flags,
	}
}

func cmdPredict(ctx context.Context, cmd *cli.Command) error {
	a, err := loadArtifact(ctx, cmd.String(modelFlagName))
	if err != nil {
		return err
	}

	if path, err := inputPath(cmd); err == nil {
		d, err := loadDataset(ctx, path)
		if err != nil {
			return err
		}
		list := make([]*predictResult, 0, d.Len())
		for _, row := range d.Rows {
			res, err := predictReading(a, row.Reading)
			if err != nil {
				return fmt.Errorf("line %d: %w", row.Line, err)
			}
			res.Line = row.Line
			res.Timestamp = row.Timestamp
			list = append(list, res)
		}
		return encode(cmd, list)
	}

	values := make(map[string]float64)
	for _, name := range quality.FeatureNames() {
		if cmd.IsSet(name) {
			values[name] = cmd.Float(name)
		}
	}
	r, err := quality.NewReading(values)
	if err != nil {
		return fmt.Errorf("reading from flags: %w", err)
	}

	res, err := predictReading(a, r)
	if err != nil {
		return err
	}
	return encode(cmd, res)
}

func predictReading(a *model.Artifact, r quality.Reading) (*predictResult, error) {
	p, err := a.Predict(r)
	if err != nil {
		return nil, err
	}
	return &predictResult{
		Prediction: p,
		Heuristic:  quality.Assess(r),
	}, nil
}
