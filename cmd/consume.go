package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/localrank/keyword-arbitrage/internal/app"
)

// newConsumeCmd runs the single-flight task consumer until interrupted.
func newConsumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Run the prospecting task consumer.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := buildLogger(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			container, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer container.Close()

			if container.Consumer == nil {
				return fmt.Errorf("fetcher.base_url must be configured to run the consumer")
			}

			logger.Info("consumer started")
			container.Consumer.Run(ctx)
			logger.Info("consumer stopped")
			return nil
		},
	}
}
