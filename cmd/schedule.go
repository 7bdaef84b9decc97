package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agrilink/pricewatch/internal/model"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the ingestion pipeline on a cron schedule",
	Long:  "Blocks and runs the full ingestion pipeline on the configured cron expression until interrupted. Overlapping runs are skipped.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		pipeline, err := buildPipeline(st, false)
		if err != nil {
			return err
		}

		expr := cfg.Schedule.Cron
		c := cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DiscardLogger),
			cron.Recover(cron.DiscardLogger),
		))
		_, err = c.AddFunc(expr, func() {
			date := time.Now().Format(model.DateLayout)
			zap.L().Info("schedule: starting run", zap.String("date", date))
			if err := pipeline.Run(ctx, cfg.Source.Regions, date); err != nil {
				zap.L().Error("schedule: run failed", zap.Error(err))
			}
		})
		if err != nil {
			return eris.Wrapf(err, "invalid cron expression %q", expr)
		}

		zap.L().Info("schedule: started", zap.String("cron", expr),
			zap.Int("regions", len(cfg.Source.Regions)))
		c.Start()

		<-ctx.Done()
		zap.L().Info("schedule: shutting down")
		<-c.Stop().Done()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}
