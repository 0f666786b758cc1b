package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/biofloc/wqmodel/pkg/data"
	"github.com/biofloc/wqmodel/pkg/model"
	"github.com/biofloc/wqmodel/pkg/pipeline"
	"github.com/biofloc/wqmodel/pkg/train"
	"github.com/urfave/cli/v3"
)

const (
	outputFlagName     = "output"
	versionFlagName    = "artifact-version"
	strategyFlagName   = "strategy"
	cFlagName          = "c"
	maxIterFlagName    = "max-iter"
	toleranceFlagName  = "tolerance"
	synthesizeFlagName = "synthesize"
	noHistoryFlagName  = "no-history"
)

func newTrainCmd() *cli.Command {
	return &cli.Command{
		Name:      "train",
		Aliases:   []string{"t"},
		Usage:     "Train a model from readings and export the artifact",
		ArgsUsage: "[readings.csv]",
		Action:    cmdTrain,
		Flags: []cli.Flag{
			inputFlag(),
			&cli.StringFlag{
				Name:    outputFlagName,
				Aliases: []string{"o"},
				Usage:   "Write the artifact to this file instead of stdout",
			},
			&cli.StringFlag{
				Name:  versionFlagName,
				Usage: "Semantic version stamped into the artifact (default from config)",
			},
			&cli.StringFlag{
				Name:  strategyFlagName,
				Usage: "Multiclass strategy [ovr, multinomial] (default from config)",
			},
			&cli.FloatFlag{
				Name:  cFlagName,
				Usage: "Inverse L2 regularization strength (default from config)",
			},
			&cli.IntFlag{
				Name:  maxIterFlagName,
				Usage: "Maximum solver iterations (default from config)",
			},
			&cli.FloatFlag{
				Name:  toleranceFlagName,
				Usage: "Gradient norm at which the solver stops (default from config)",
			},
			&cli.BoolFlag{
				Name:  synthesizeFlagName,
				Usage: "Ignore any quality_label column and derive labels from the readings",
			},
			&cli.BoolFlag{
				Name:    noHistoryFlagName,
				Usage:   "Do not record the run in the history database",
				Sources: cli.EnvVars(envPrefix + "NO_HISTORY"),
			},
		},
	}
}

func trainOptions(cmd *cli.Command, cfg *appConfig) (pipeline.Options, error) {
	opts := pipeline.Options{
		Version:    cfg.Config.Version,
		Synthesize: cmd.Bool(synthesizeFlagName),
		Train:      cfg.Config.TrainOptions(),
	}

	if cmd.IsSet(versionFlagName) {
		opts.Version = cmd.String(versionFlagName)
	}
	if cmd.IsSet(strategyFlagName) {
		s, err := train.ParseStrategy(cmd.String(strategyFlagName))
		if err != nil {
			return opts, err
		}
		opts.Train.Strategy = s
	}
	if cmd.IsSet(cFlagName) {
		opts.Train.C = cmd.Float(cFlagName)
	}
	if cmd.IsSet(maxIterFlagName) {
		opts.Train.MaxIter = int(cmd.Int(maxIterFlagName))
	}
	if cmd.IsSet(toleranceFlagName) {
		opts.Train.Tolerance = cmd.Float(toleranceFlagName)
	}

	if !model.ValidVersion(opts.Version) {
		return opts, fmt.Errorf("invalid artifact version %q", opts.Version)
	}
	if err := opts.Train.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

func cmdTrain(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)

	path, err := inputPath(cmd)
	if err != nil {
		return err
	}

	opts, err := trainOptions(cmd, cfg)
	if err != nil {
		return err
	}

	d, err := loadDataset(ctx, path)
	if err != nil {
		return err
	}

	res, err := pipeline.Run(ctx, d, opts)
	if err != nil {
		return err
	}

	out := cmd.String(outputFlagName)
	if out != "" {
		if err := res.Artifact.WriteFile(out, cfg.Format); err != nil {
			return err
		}
		slog.Info("artifact written", "path", out, "version", res.Artifact.Version)
		if err := encode(cmd, res.Report); err != nil {
			return err
		}
	} else if err := res.Artifact.Encode(cmd.Root().Writer, cfg.Format); err != nil {
		return err
	}

	if cmd.Bool(noHistoryFlagName) {
		return nil
	}

	// the artifact is already out, a history failure is not fatal
	if err := recordRun(cfg, path, res); err != nil {
		slog.Warn("run not recorded", "error", err)
	}
	return nil
}

func recordRun(cfg *appConfig, source string, res *pipeline.Result) error {
	db, err := cfg.DB()
	if err != nil {
		return err
	}

	digest, err := res.Artifact.Digest()
	if err != nil {
		return err
	}
	b, err := json.Marshal(res.Artifact)
	if err != nil {
		return fmt.Errorf("error encoding artifact: %w", err)
	}

	r := &data.Run{
		Source:          source,
		Rows:            res.Report.Rows,
		Synthesized:     res.Report.Synthesized,
		LabelCounts:     res.Report.LabelCounts,
		Strategy:        string(res.Report.Strategy),
		Accuracy:        res.Report.Accuracy,
		ReducedAccuracy: res.Report.ReducedAccuracy,
		Version:         res.Artifact.Version,
		Digest:          digest,
		Artifact:        b,
	}
	if err := data.SaveRun(db, r); err != nil {
		return err
	}

	slog.Info("run recorded", "id", r.ID, "digest", digest)
	return nil
}
