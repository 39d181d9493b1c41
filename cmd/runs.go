package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/contentmix/internal/model"
	"github.com/sells-group/contentmix/internal/monitoring"
	"github.com/sells-group/contentmix/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the flow run log",
	Long:  "Commands for listing and summarizing recorded flow invocations.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List flow runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		flowName, _ := cmd.Flags().GetString("flow")
		state, _ := cmd.Flags().GetString("state")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListFlowRuns(ctx, store.FlowRunFilter{
			Flow:  flowName,
			State: model.FlowState(state),
			Limit: limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(cmd.OutOrStdout(), runs)
		return nil
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate flow run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		since, _ := cmd.Flags().GetDuration("since")
		runs, err := st.ListFlowRuns(ctx, store.FlowRunFilter{Limit: 10000})
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		var cutoff time.Time
		if since > 0 {
			cutoff = time.Now().Add(-since)
		}
		formatRunStats(cmd.OutOrStdout(), computeRunStats(runs, cutoff))
		return nil
	},
}

// -- runs health --

var runsHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Evaluate flow health thresholds once and print any alerts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		mcfg := cfg.Monitoring
		if notify, _ := cmd.Flags().GetBool("notify"); !notify {
			mcfg.WebhookURL = ""
		}
		checker := monitoring.NewChecker(monitoring.NewCollector(st), monitoring.NewAlerter(mcfg), mcfg)
		alerts := checker.Check(ctx)
		if alerts == nil {
			alerts = []monitoring.Alert{}
		}
		return printJSON(cmd.OutOrStdout(), alerts)
	},
}

func init() {
	runsHealthCmd.Flags().Bool("notify", false, "send alerts to the configured webhook")

	runsListCmd.Flags().String("flow", "", "filter by flow (brandSafety, assetAnalysis, creativeScorecard, contentAttribution)")
	runsListCmd.Flags().String("state", "", "filter by state (completed, failed)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsStatsCmd.Flags().Duration("since", 24*time.Hour, "time window for stats (e.g. 24h, 72h, 168h)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsStatsCmd)
	runsCmd.AddCommand(runsHealthCmd)
	rootCmd.AddCommand(runsCmd)
}

// flowStats aggregates the runs of one flow.
type flowStats struct {
	Flow       string
	Total      int
	Completed  int
	Failed     int
	ByKind     map[string]int
	AvgDurSecs float64
	Tokens     int
	CostUSD    float64
}

// computeRunStats groups runs created at or after cutoff by flow.
func computeRunStats(runs []model.FlowRun, cutoff time.Time) []flowStats {
	byFlow := make(map[string]*flowStats)
	durMs := make(map[string]int64)

	for _, r := range runs {
		if !cutoff.IsZero() && r.CreatedAt.Before(cutoff) {
			continue
		}
		s, ok := byFlow[r.Flow]
		if !ok {
			s = &flowStats{Flow: r.Flow, ByKind: make(map[string]int)}
			byFlow[r.Flow] = s
		}
		s.Total++
		switch r.State {
		case model.FlowCompleted:
			s.Completed++
		case model.FlowFailed:
			s.Failed++
			s.ByKind[r.ErrorKind]++
		}
		durMs[r.Flow] += r.DurationMs
		s.Tokens += r.Usage.InputTokens + r.Usage.OutputTokens
		s.CostUSD += r.Usage.Cost
	}

	out := make([]flowStats, 0, len(byFlow))
	for name, s := range byFlow {
		s.AvgDurSecs = float64(durMs[name]) / float64(s.Total) / 1000
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Flow < out[j].Flow })
	return out
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.FlowRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tFLOW\tSTATE\tERROR_KIND\tCREATED\tDURATION\tTOKENS\tCOST")
	_, _ = fmt.Fprintln(w, "--\t----\t-----\t----------\t-------\t--------\t------\t----")

	for _, r := range runs {
		dur := (time.Duration(r.DurationMs) * time.Millisecond).Round(10 * time.Millisecond).String()
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t$%.4f\n",
			truncateID(r.ID),
			r.Flow,
			r.State,
			r.ErrorKind,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
			r.Usage.InputTokens+r.Usage.OutputTokens,
			r.Usage.Cost,
		)
	}
	_ = w.Flush()
}

// formatRunStats writes per-flow aggregate stats to w.
func formatRunStats(out io.Writer, stats []flowStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if len(stats) == 0 {
		_, _ = fmt.Fprintln(w, "No runs in window.")
		_ = w.Flush()
		return
	}
	for _, s := range stats {
		_, _ = fmt.Fprintf(w, "%s\n", s.Flow)
		_, _ = fmt.Fprintf(w, "  Total:\t%d\n", s.Total)
		_, _ = fmt.Fprintf(w, "  Completed:\t%d\n", s.Completed)
		_, _ = fmt.Fprintf(w, "  Failed:\t%d\n", s.Failed)
		for _, k := range []string{"input", "schema", "collaborator"} {
			if n := s.ByKind[k]; n > 0 {
				_, _ = fmt.Fprintf(w, "    %s:\t%d\n", k, n)
			}
		}
		_, _ = fmt.Fprintf(w, "  Avg duration:\t%.1fs\n", s.AvgDurSecs)
		_, _ = fmt.Fprintf(w, "  Tokens:\t%d\n", s.Tokens)
		_, _ = fmt.Fprintf(w, "  Cost:\t$%.4f\n", s.CostUSD)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
