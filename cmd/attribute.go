package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/contentmix/internal/config"
	"github.com/sells-group/contentmix/internal/fixture"
	"github.com/sells-group/contentmix/internal/model"
	"github.com/sells-group/contentmix/internal/store"
)

var (
	attributeFixture string
	attributeRevenue float64
)

var attributeCmd = &cobra.Command{
	Use:   "attribute",
	Short: "Distribute the revenue pool across assets by performance",
	Long:  "Runs content attribution over the stored performance rows, or over a csv, xlsx or yaml fixture with --fixture.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, config.ModeAnalyze)
		if err != nil {
			return err
		}
		defer env.Close()

		rows, err := performanceRows(ctx, env.Store, attributeFixture)
		if err != nil {
			return err
		}

		revenue := attributeRevenue
		if revenue <= 0 {
			revenue = cfg.Attribution.TotalRevenue
		}
		report, err := env.Executor.Attribution(ctx, model.AttributionRequest{Assets: rows, TotalRevenue: revenue}).Result()
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), report)
	},
}

// performanceRows loads the attribution input from a fixture file when one
// is given, else from the store.
func performanceRows(ctx context.Context, st store.Store, path string) ([]model.AssetPerformance, error) {
	var (
		rows []model.AssetPerformance
		err  error
	)
	if path != "" {
		rows, err = fixture.Load(path)
	} else {
		rows, err = st.ListPerformance(ctx)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, eris.New("attribute: no performance rows (run import first or pass --fixture)")
	}
	return rows, nil
}

func init() {
	attributeCmd.Flags().StringVar(&attributeFixture, "fixture", "", "performance fixture (.csv, .xlsx, .yaml)")
	attributeCmd.Flags().Float64Var(&attributeRevenue, "revenue", 0, "total revenue pool (default from config)")
	rootCmd.AddCommand(attributeCmd)
}
