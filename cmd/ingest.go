package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/agrilink/pricewatch/internal/model"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run the price ingestion pipeline once",
	Long:  "Locates today's bulletin for each configured region, extracts and persists price records, and dispatches alerts.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		region, _ := cmd.Flags().GetString("region")
		date, _ := cmd.Flags().GetString("date")
		keepPDF, _ := cmd.Flags().GetBool("keep-pdf")

		if date == "" {
			date = time.Now().Format(model.DateLayout)
		} else if _, err := time.Parse(model.DateLayout, date); err != nil {
			return eris.Wrapf(err, "invalid --date %q, want YYYY-MM-DD", date)
		}

		regions := cfg.Source.Regions
		if region != "" {
			indexURL, ok := regions[region]
			if !ok {
				return eris.Errorf("region %q is not configured", region)
			}
			regions = map[string]string{region: indexURL}
		}
		if len(regions) == 0 {
			return eris.New("no regions configured (source.regions)")
		}

		pipeline, err := buildPipeline(st, keepPDF)
		if err != nil {
			return err
		}
		return pipeline.Run(ctx, regions, date)
	},
}

func init() {
	ingestCmd.Flags().String("region", "", "ingest a single configured region instead of all")
	ingestCmd.Flags().String("date", "", "nominal bulletin date, YYYY-MM-DD (default today)")
	ingestCmd.Flags().Bool("keep-pdf", false, "keep downloaded PDFs for extraction debugging")

	rootCmd.AddCommand(ingestCmd)
}
