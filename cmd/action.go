package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"actionrunner/internal/actions"
	"actionrunner/internal/browser"
	"actionrunner/internal/domain"
	"actionrunner/internal/humanizer"
	"actionrunner/internal/protocol"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// actionCmd is the isolated job process. stdout carries only the status
// stream; logs go to stderr.
func actionCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "action [job-json]",
		Short:        "Run one job in this process",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := setup()
			if err != nil {
				log.Error().Err(err).Msg("invalid configuration")
				_ = protocol.NewEmitter(os.Stdout).Result(domain.Result{Status: domain.ResultError, Message: err.Error()})
				os.Exit(1)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			h := humanizer.New()
			code := actions.Execute(ctx, cfg, args, os.Stdout, browser.NewManager(cfg, h), h)
			stop()
			os.Exit(code)
		},
	}
}
