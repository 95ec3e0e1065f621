package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/localrank/keyword-arbitrage/internal/app"
	"github.com/localrank/keyword-arbitrage/internal/clock/system"
	"github.com/localrank/keyword-arbitrage/internal/id/uuid"
	"github.com/localrank/keyword-arbitrage/internal/prospect"
)

// newEnqueueCmd submits one prospecting task directly to the queue,
// bypassing the HTTP API. Useful for operators resubmitting failed work.
func newEnqueueCmd() *cobra.Command {
	var (
		seeds      []string
		domain     string
		avgJob     float64
		category   string
		state      string
		country    string
		cities     []string
		targetSize int
		minVolume  int
	)
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Submit a prospecting task to the queue.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := buildLogger(cfg)
			if err != nil {
				return err
			}

			container, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer container.Close()

			if targetSize <= 0 {
				targetSize = cfg.Pool.TargetSizeDefault
			}
			if country == "" {
				country = cfg.Pool.CountryDefault
			}
			task := prospect.Task{
				SeedKeywords:        seeds,
				CustomerDomain:      domain,
				AvgJobAmount:        avgJob,
				Category:            category,
				State:               state,
				ServiceRadiusCities: cities,
				TargetPoolSize:      targetSize,
				MinVolumeFilter:     minVolume,
				Country:             country,
			}
			if err := task.Validate(); err != nil {
				return err
			}
			id, err := uuid.NewUUIDGenerator().NewID()
			if err != nil {
				return fmt.Errorf("generate task id: %w", err)
			}
			task.ID = id
			task.Status = prospect.TaskStatusPending
			task.CreatedAt = system.New().Now()

			if err := container.Queue.Enqueue(cmd.Context(), task); err != nil {
				return fmt.Errorf("enqueue task: %w", err)
			}
			logger.Info("task enqueued", zap.String("task_id", id))
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&seeds, "seed", nil, "seed keyword (repeatable)")
	cmd.Flags().StringVar(&domain, "domain", "", "customer domain")
	cmd.Flags().Float64Var(&avgJob, "avg-job-amount", 0, "average job amount in dollars")
	cmd.Flags().StringVar(&category, "category", "", "business category")
	cmd.Flags().StringVar(&state, "state", "", "state code")
	cmd.Flags().StringVar(&country, "country", "", "country code")
	cmd.Flags().StringSliceVar(&cities, "city", nil, "service radius city (repeatable)")
	cmd.Flags().IntVar(&targetSize, "target-pool-size", 0, "keyword pool target size")
	cmd.Flags().IntVar(&minVolume, "min-volume", 0, "minimum search volume filter")

	return cmd
}
