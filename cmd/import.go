package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contentmix/internal/fixture"
)

var importDryRun bool

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import asset performance rows from csv, xlsx or yaml",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rows, err := fixture.Load(args[0])
		if err != nil {
			return err
		}
		if importDryRun {
			zap.L().Info("import dry run", zap.String("file", args[0]), zap.Int("rows", len(rows)))
			return nil
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.UpsertPerformance(ctx, rows)
		if err != nil {
			return eris.Wrap(err, "import")
		}

		zap.L().Info("import complete",
			zap.Int64("upserted", n),
			zap.String("file", args[0]),
		)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the stored performance rows as csv to stdout",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rows, err := st.ListPerformance(ctx)
		if err != nil {
			return eris.Wrap(err, "export")
		}
		return fixture.WriteCSV(cmd.OutOrStdout(), rows)
	},
}

func init() {
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "validate the file without writing")
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
}
