package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"actionrunner/internal/humanizer"
	"actionrunner/internal/infra/redisq"
	"actionrunner/internal/worker"

	"github.com/spf13/cobra"
)

func workerCmd() *cobra.Command {
	var (
		consumerName string
		baseBackoff  time.Duration
		maxBackoff   time.Duration
	)

	var command = &cobra.Command{
		Use:   "worker",
		Short: "Start queue consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, closeStore, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			d, err := newDispatcher(cfg, store)
			if err != nil {
				return err
			}

			cli := redisq.New(cfg.Redis)
			defer cli.Close()

			return worker.Run(ctx, cfg, worker.Config{
				ConsumerName: consumerName,
				BaseBackoff:  baseBackoff,
				MaxBackoff:   maxBackoff,
			}, d, cli, humanizer.New())
		},
	}

	command.Flags().StringVar(&consumerName, "consumer", "worker-1", "Worker consumer name")
	command.Flags().DurationVar(&baseBackoff, "base-backoff", 30*time.Second, "Base backoff for caller-requested retries")
	command.Flags().DurationVar(&maxBackoff, "max-backoff", 10*time.Minute, "Max backoff for caller-requested retries")

	return command
}
