package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/biofloc/wqmodel/pkg/config"
	"github.com/biofloc/wqmodel/pkg/data"
	"github.com/biofloc/wqmodel/pkg/dataset"
	"github.com/biofloc/wqmodel/pkg/logging"
	"github.com/biofloc/wqmodel/pkg/model"
	"github.com/biofloc/wqmodel/pkg/net"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	appName      = "wqmodel"
	appConfigKey = "app-config"
	envPrefix    = "WQMODEL_"
)

const (
	debugFlagName    = "debug"
	logLevelFlagName = "log-level"
	dbFlagName       = "db"
	formatFlagName   = "format"
	configFlagName   = "config"
	inputFlagName    = "input"
)

var (
	version = "v0.0.1-default"
	commit  = ""
	date    = ""
)

// Flags are built per app: urfave flags keep parse state.
func rootFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    debugFlagName,
			Usage:   "Prints verbose logs (optional, default: false)",
			Sources: cli.EnvVars(envPrefix + "DEBUG"),
		},
		&cli.StringFlag{
			Name:    logLevelFlagName,
			Usage:   "Log level [debug, info, warn, error]",
			Value:   "info",
			Sources: cli.EnvVars(envPrefix + "LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    dbFlagName,
			Usage:   "Path to the Sqlite run history database (default: ~/.wqmodel/data.db)",
			Sources: cli.EnvVars(envPrefix + "DB"),
		},
		&cli.StringFlag{
			Name:    formatFlagName,
			Usage:   "Output format [json, yaml]",
			Value:   model.FormatJSON,
			Sources: cli.EnvVars(envPrefix + "FORMAT"),
		},
		&cli.StringFlag{
			Name:    configFlagName,
			Usage:   "Path to a training config file (optional)",
			Sources: cli.EnvVars(envPrefix + "CONFIG"),
		},
	}
}

func inputFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    inputFlagName,
		Aliases: []string{"i"},
		Usage:   "Path or http(s) URL of the readings CSV (or pass it as the first argument)",
	}
}

// Execute creates and runs the CLI application.
func Execute() {
	initLogging("info")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).Run(ctx, os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		stop()
		os.Exit(1)
	}
}

type appConfig struct {
	DBPath string
	Format string
	Config *config.Config

	db *sql.DB
}

func getConfig(cmd *cli.Command) *appConfig {
	return cmd.Root().Metadata[appConfigKey].(*appConfig)
}

// DB initializes and opens the history database on first use.
func (a *appConfig) DB() (*sql.DB, error) {
	if a.db != nil {
		return a.db, nil
	}

	if a.DBPath == "" {
		dir, _, err := config.GetOrCreateHomeDir(appName)
		if err != nil {
			return nil, fmt.Errorf("resolving home dir: %w", err)
		}
		a.DBPath = filepath.Join(dir, data.DataFileName)
	}

	if err := data.Init(a.DBPath); err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}

	db, err := data.GetDB(a.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a.db = db
	return db, nil
}

func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:                  appName,
		Version:               fmt.Sprintf("%s (%s - %s)", version, commit, date),
		Usage:                 "Train and export a portable water quality scoring model",
		EnableShellCompletion: true,
		HideHelpCommand:       true,
		Writer:                out,
		Metadata:              map[string]any{},
		Flags:                 rootFlags(),
		Commands: []*cli.Command{
			newTrainCmd(),
			newLabelCmd(),
			newPredictCmd(),
			newHistoryCmd(),
			newConfigCmd(),
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			level := cmd.String(logLevelFlagName)
			if cmd.Bool(debugFlagName) {
				level = "debug"
			}
			initLogging(level)

			cfg := config.Default()
			if p := cmd.String(configFlagName); p != "" {
				c, err := config.Load(p)
				if err != nil {
					return ctx, err
				}
				cfg = c
			}

			f := cfg.Format
			if cmd.IsSet(formatFlagName) {
				f = cmd.String(formatFlagName)
			}
			format, err := model.ParseFormat(f)
			if err != nil {
				return ctx, err
			}

			cmd.Metadata[appConfigKey] = &appConfig{
				DBPath: cmd.String(dbFlagName),
				Format: format,
				Config: cfg,
			}
			return ctx, nil
		},
		After: func(_ context.Context, cmd *cli.Command) error {
			if cfg, ok := cmd.Metadata[appConfigKey].(*appConfig); ok && cfg.db != nil {
				return cfg.db.Close()
			}
			return nil
		},
	}
}

func initLogging(level string) {
	logging.SetDefaultCLILogger(level)
}

// inputPath returns the --input flag value or the first argument.
func inputPath(cmd *cli.Command) (string, error) {
	if p := cmd.String(inputFlagName); p != "" {
		return p, nil
	}
	if p := cmd.Args().First(); p != "" {
		return p, nil
	}
	return "", fmt.Errorf("input CSV required (--%s or first argument)", inputFlagName)
}

// loadDataset reads readings from a local path or an http(s) URL.
func loadDataset(ctx context.Context, src string) (*dataset.Dataset, error) {
	if !net.IsURL(src) {
		return dataset.LoadFile(src)
	}

	rc, err := net.Open(ctx, src)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	d, err := dataset.Load(rc)
	if err != nil {
		return nil, fmt.Errorf("error loading %s: %w", src, err)
	}
	return d, nil
}

// loadArtifact reads a model artifact from a local path or an http(s) URL.
func loadArtifact(ctx context.Context, src string) (*model.Artifact, error) {
	if !net.IsURL(src) {
		return model.Load(src)
	}

	rc, err := net.Open(ctx, src)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	a, err := model.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("error loading %s: %w", src, err)
	}
	return a, nil
}

func encode(cmd *cli.Command, v any) error {
	w := cmd.Root().Writer
	if getConfig(cmd).Format == model.FormatYAML {
		e := yaml.NewEncoder(w)
		e.SetIndent(2)
		if err := e.Encode(v); err != nil {
			return fmt.Errorf("error encoding output: %w", err)
		}
		return e.Close()
	}
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	if err := e.Encode(v); err != nil {
		return fmt.Errorf("error encoding output: %w", err)
	}
	return nil
}
