// Package monitoring watches the flow run audit trail and raises webhook
// alerts when failure rate or inference spend cross configured thresholds.
package monitoring

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contentmix/internal/model"
	"github.com/sells-group/contentmix/internal/store"
)

// maxRuns caps how many runs a single snapshot reads.
const maxRuns = 10000

// FlowHealth summarises one flow's runs inside the lookback window.
type FlowHealth struct {
	Flow      string  `json:"flow"`
	Total     int     `json:"total"`
	Completed int     `json:"completed"`
	Failed    int     `json:"failed"`
	Schema    int     `json:"schema_failures"`
	FailRate  float64 `json:"fail_rate"`
	CostUSD   float64 `json:"cost_usd"`
	AvgMs     int64   `json:"avg_duration_ms"`
}

// Snapshot holds a point-in-time view of flow health.
type Snapshot struct {
	Total     int          `json:"total"`
	Completed int          `json:"completed"`
	Failed    int          `json:"failed"`
	FailRate  float64      `json:"fail_rate"`
	CostUSD   float64      `json:"cost_usd"`
	Tokens    int          `json:"tokens"`
	Flows     []FlowHealth `json:"flows"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister is the slice of the store the collector reads.
type RunLister interface {
	ListFlowRuns(ctx context.Context, filter store.FlowRunFilter) ([]model.FlowRun, error)
}

// Collector gathers flow run statistics from the store.
type Collector struct {
	runs RunLister
	now  func() time.Time
}

// NewCollector creates a collector over the given run source.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs, now: time.Now}
}

// Collect builds a snapshot of the runs recorded in the last lookbackHours.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	now := c.now().UTC()
	snap := &Snapshot{LookbackHours: lookbackHours, CollectedAt: now}

	runs, err := c.runs.ListFlowRuns(ctx, store.FlowRunFilter{
		Since: now.Add(-time.Duration(lookbackHours) * time.Hour),
		Limit: maxRuns,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list flow runs")
	}

	byFlow := make(map[string]*FlowHealth)
	durations := make(map[string]int64)
	for _, r := range runs {
		fh, ok := byFlow[r.Flow]
		if !ok {
			fh = &FlowHealth{Flow: r.Flow}
			byFlow[r.Flow] = fh
		}
		fh.Total++
		snap.Total++
		switch r.State {
		case model.FlowCompleted:
			fh.Completed++
			snap.Completed++
		case model.FlowFailed:
			fh.Failed++
			snap.Failed++
			if r.ErrorKind == "schema" {
				fh.Schema++
			}
		}
		fh.CostUSD += r.Usage.Cost
		snap.CostUSD += r.Usage.Cost
		snap.Tokens += r.Usage.InputTokens + r.Usage.OutputTokens
		durations[r.Flow] += r.DurationMs
	}

	snap.FailRate = failRate(snap.Completed, snap.Failed)
	for name, fh := range byFlow {
		fh.FailRate = failRate(fh.Completed, fh.Failed)
		fh.AvgMs = durations[name] / int64(fh.Total)
		snap.Flows = append(snap.Flows, *fh)
	}
	sort.Slice(snap.Flows, func(i, j int) bool { return snap.Flows[i].Flow < snap.Flows[j].Flow })

	return snap, nil
}

func failRate(completed, failed int) float64 {
	finished := completed + failed
	if finished == 0 {
		return 0
	}
	return float64(failed) / float64(finished)
}
