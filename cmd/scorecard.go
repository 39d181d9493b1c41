package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contentmix/internal/asset"
	"github.com/sells-group/contentmix/internal/config"
	"github.com/sells-group/contentmix/internal/prompt"
)

var scorecardAssetID string

var scorecardCmd = &cobra.Command{
	Use:   "scorecard <file|gs://ref>",
	Short: "Grade a creative against the scorecard rubric",
	Long:  "Runs the creative scorecard flow and prints the scorecard. With --asset the overall score is stored as that asset's contentScore.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		f, ref, err := loadMedia(args[0])
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, config.ModeAnalyze)
		if err != nil {
			return err
		}
		defer env.Close()

		sc, err := env.Executor.Scorecard(ctx, prompt.MediaInput{Media: flowMediaRef(f, ref)}).Result()
		if err != nil {
			return err
		}

		if scorecardAssetID != "" {
			if err := asset.RecordScore(ctx, env.Store, scorecardAssetID, *sc); err != nil {
				return err
			}
			zap.L().Info("content score recorded",
				zap.String("asset", scorecardAssetID), zap.Float64("score", sc.OverallContentScore))
		}
		return printJSON(cmd.OutOrStdout(), sc)
	},
}

func init() {
	scorecardCmd.Flags().StringVar(&scorecardAssetID, "asset", "", "store the overall score on this asset id")
	rootCmd.AddCommand(scorecardCmd)
}
