package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aliskhannn/lingua-streak-bot/internal/app"
	"github.com/aliskhannn/lingua-streak-bot/internal/config"
	"github.com/aliskhannn/lingua-streak-bot/internal/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigDir  string
	SQLitePath string // overrides database.sqlite_path
	Format     string // "json" | "text"
	Verbose    bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command of the maintenance CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "streakctl",
		Short: "Maintenance tool for the streak engine",
		Long:  "Applies the schema, runs freeze sweeps and inspects a learner's streak outside the bot.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigDir, "config", "./config", "directory with config.yaml")
	cmd.PersistentFlags().StringVar(&opts.SQLitePath, "sqlite", "", "sqlite database file (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log to stderr")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSweepCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))

	return cmd
}

// env is what every command needs: configuration, a logger and storage.
type env struct {
	cfg     *config.Config
	logger  *zap.Logger
	storage *app.Storage
}

func (e *env) Close() {
	e.storage.Close()
	_ = e.logger.Sync()
}

func (o *RootOptions) open(ctx context.Context) (*env, error) {
	cfg, err := config.Load(o.ConfigDir)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.SQLitePath != "" {
		cfg.DB.SQLitePath = o.SQLitePath
	}

	lg := zap.NewNop()
	if o.Verbose {
		if lg, err = logger.New(cfg); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to create logger", err)
		}
	}

	st, err := app.OpenStorage(ctx, cfg.DB, lg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open storage", err)
	}

	return &env{cfg: cfg, logger: lg, storage: st}, nil
}
