package cmd

import (
	"context"
	"fmt"
	"os"

	"actionrunner/internal/config"
	"actionrunner/internal/domain"
	"actionrunner/internal/infra/postgres"
	"actionrunner/internal/infra/process"
	"actionrunner/internal/ports"
	"actionrunner/internal/usecase"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func Run() {
	var command = &cobra.Command{
		Use:   "actionrunner",
		Short: "Human-paced browser actions behind an HTTP dispatcher",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	command.AddCommand(apiCmd())
	command.AddCommand(workerCmd())
	command.AddCommand(actionCmd())

	if err := command.Execute(); err != nil {
		log.Fatal().Msgf("failed to execute command, err: %v", err.Error())
	}
}

// setup loads the configuration and applies the log level.
func setup() (*config.Config, error) {
	zerolog.DefaultContextLogger = &log.Logger
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: log level %q", domain.ErrConfigInvalid, cfg.LogLevel)
	}
	zerolog.SetGlobalLevel(level)
	return cfg, nil
}

// openStore connects the status store, or returns nil when none is configured.
func openStore(ctx context.Context, cfg *config.Config) (ports.StatusStore, func(), error) {
	if cfg.Postgres.DSN == "" {
		log.Warn().Msg("DATABASE_URL not set, job status is not mirrored")
		return nil, func() {}, nil
	}
	s, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, err
	}
	return s, s.Close, nil
}

// newDispatcher runs every job as `<this binary> action <job>` unless a
// worker command is configured.
func newDispatcher(cfg *config.Config, store ports.StatusStore) (*usecase.Dispatcher, error) {
	command := cfg.Dispatch.WorkerCommand
	if len(command) == 0 {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate worker binary: %w", err)
		}
		command = []string{exe, "action"}
	}
	runner := process.New(command, cfg.Dispatch.Timeout)
	log.Info().
		Strs("command", command).
		Dur("timeout", cfg.Dispatch.Timeout).
		Int("max_workers", cfg.Dispatch.MaxWorkers).
		Msg("dispatcher ready")
	return usecase.NewDispatcher(cfg, runner, store, usecase.NewPool(cfg.Dispatch.MaxWorkers)), nil
}
