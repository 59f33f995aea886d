package cmd

import (
	"context"

	"actionrunner/internal/api"
	"actionrunner/internal/infra/redisq"
	"actionrunner/internal/usecase"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func apiCmd() *cobra.Command {
	var (
		port    int
		noQueue bool
	)
	var command = &cobra.Command{
		Use:   "api",
		Short: "Start API server",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := setup()
			if err != nil {
				log.Fatal().Err(err).Msg("invalid configuration")
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			ctx := context.Background()

			store, closeStore, err := openStore(ctx, cfg)
			if err != nil {
				log.Fatal().Err(err).Msg("status store unavailable")
			}
			defer closeStore()

			d, err := newDispatcher(cfg, store)
			if err != nil {
				log.Fatal().Err(err).Msg("dispatcher not started")
			}

			var intake api.Intake
			var tasks api.TaskReader
			if !noQueue {
				cli := redisq.New(cfg.Redis)
				if err := cli.Init(ctx); err != nil {
					log.Warn().Err(err).Msg("queue unavailable, async intake disabled")
				} else {
					defer cli.Close()
					log.Info().Msgf("API server using stream: %s, group: %s", cfg.Redis.StreamKey, cfg.Redis.Group)
					intake = usecase.Enqueuer{Q: cli}
					tasks = cli
				}
			}

			api.NewServer(cfg, d, intake, tasks).Run(cfg.Server.Port)
		},
	}

	command.Flags().IntVarP(&port, "port", "p", 5050, "Port to run the server on (overrides SERVER_PORT)")
	command.Flags().BoolVar(&noQueue, "no-queue", false, "Serve /execute only, without the Redis-backed async routes")
	return command
}
