package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contentmix/internal/config"
	"github.com/sells-group/contentmix/internal/model"
	"github.com/sells-group/contentmix/internal/monitoring"
	"github.com/sells-group/contentmix/internal/store"
)

// runCmd invokes a command's RunE with a background context and captures
// its stdout.
func runCmd(t *testing.T, c *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	c.SetOut(&out)
	c.SetContext(context.Background())
	t.Cleanup(func() {
		c.SetOut(nil)
		c.SetContext(context.TODO())
	})
	err := c.RunE(c, args)
	return out.String(), err
}

func seedStore(t *testing.T, path string, fn func(st store.Store)) {
	t.Helper()
	st, err := store.NewSQLite(path)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	fn(st)
}

func TestMigrateCmd(t *testing.T) {
	path := useSQLite(t)
	_, err := runCmd(t, migrateCmd)
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestImportThenExport(t *testing.T) {
	useSQLite(t)
	csvPath := filepath.Join(t.TempDir(), "perf.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(
		"creator,content_sn_id,conversions\nACME,VID-ACME-SUMM-20240715-AAAA,30\nGlobex,IMA-GLOB-FALL-20240716-BBBB,10\n"), 0o600))

	_, err := runCmd(t, importCmd, csvPath)
	require.NoError(t, err)

	out, err := runCmd(t, exportCmd)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "creator,type,length,campaign,tags,daypart,spot_length,conversions,content_sn_id", lines[0])
	assert.Contains(t, lines[1], "ACME")
	assert.Contains(t, lines[2], "Globex")
}

func TestImportCmd_DryRunDoesNotWrite(t *testing.T) {
	path := useSQLite(t)
	yamlPath := filepath.Join(t.TempDir(), "perf.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("- creator: ACME\n  contentSnId: VID-1\n  conversions: 3\n"), 0o600))

	importDryRun = true
	defer func() { importDryRun = false }()
	_, err := runCmd(t, importCmd, yamlPath)
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "dry run should not open the store")
}

func TestImportCmd_InvalidFixture(t *testing.T) {
	useSQLite(t)
	csvPath := filepath.Join(t.TempDir(), "perf.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("creator,content_sn_id,conversions\n,VID-1,3\n"), 0o600))

	_, err := runCmd(t, importCmd, csvPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 1 has no creator")
}

func TestPerformanceRows(t *testing.T) {
	path := useSQLite(t)
	seedStore(t, path, func(st store.Store) {
		_, err := st.UpsertPerformance(context.Background(), []model.AssetPerformance{
			{Creator: "ACME", ContentSnID: "VID-1", Conversions: 4},
		})
		require.NoError(t, err)
	})
	st, err := openStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	rows, err := performanceRows(context.Background(), st, "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "VID-1", rows[0].ContentSnID)

	yamlPath := filepath.Join(t.TempDir(), "perf.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("- creator: B\n  contentSnId: VID-2\n  conversions: 1\n- creator: C\n  contentSnId: VID-3\n  conversions: 2\n"), 0o600))
	rows, err = performanceRows(context.Background(), st, yamlPath)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestPerformanceRows_Empty(t *testing.T) {
	useSQLite(t)
	st, err := openStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	_, err = performanceRows(context.Background(), st, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no performance rows")
}

func seedAssets(t *testing.T, path string) {
	t.Helper()
	seedStore(t, path, func(st store.Store) {
		for i, id := range []string{"a1", "a2"} {
			a := &model.Asset{
				ID:          id,
				ContentSnID: "VID-ACME-SUMM-20240715-000" + id[1:],
				Name:        "Summer Spot " + id,
				Creator:     "ACME",
				Type:        model.MediaVideo,
				Status:      model.AssetStatusNew,
				ContentType: model.ContentTypeBranded,
				BrandSafety: &model.BrandSafetyVerdict{IsSafe: true, Flags: []string{}},
			}
			a.StampCreated(time.Date(2024, 7, 15+i, 9, 0, 0, 0, time.UTC))
			require.NoError(t, st.CreateAsset(context.Background(), a))
		}
	})
}

func TestAssetsListCmd(t *testing.T) {
	path := useSQLite(t)
	seedAssets(t, path)

	out, err := runCmd(t, assetsListCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "CONTENT_SN_ID")
	assert.Contains(t, out, "VID-ACME-SUMM-20240715-0001")
	assert.Contains(t, out, "Summer Spot a2")
	assert.Contains(t, out, "true")
}

func TestAssetsStatusAndShow(t *testing.T) {
	path := useSQLite(t)
	seedAssets(t, path)

	out, err := runCmd(t, assetsStatusCmd, "a1", "In Review")
	require.NoError(t, err)
	assert.Equal(t, "a1 In Review\n", out)

	_, err = runCmd(t, assetsStatusCmd, "a1", "Picked Up")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status transition")

	out, err = runCmd(t, assetsContentTypeCmd, "a1", "UGC")
	require.NoError(t, err)
	assert.Equal(t, "a1 UGC\n", out)

	out, err = runCmd(t, assetsShowCmd, "a1")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "In Review"`)
	assert.Contains(t, out, `"contentType": "UGC"`)

	_, err = runCmd(t, assetsShowCmd, "missing")
	require.Error(t, err)
}

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	runs := []model.FlowRun{
		{ID: "abc12345-6789-0000-0000-000000000000", Flow: "brandSafety", State: model.FlowCompleted,
			DurationMs: 2300, Usage: model.TokenUsage{InputTokens: 1000, OutputTokens: 200, Cost: 0.006}, CreatedAt: now},
		{ID: "def12345-6789-0000-0000-000000000000", Flow: "creativeScorecard", State: model.FlowFailed,
			ErrorKind: "schema", DurationMs: 900, CreatedAt: now.Add(-time.Hour)},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	out := buf.String()
	assert.Contains(t, out, "ERROR_KIND")
	assert.Contains(t, out, "abc12345")
	assert.Contains(t, out, "brandSafety")
	assert.Contains(t, out, "2.3s")
	assert.Contains(t, out, "1200")
	assert.Contains(t, out, "$0.0060")
	assert.Contains(t, out, "schema")
	assert.Contains(t, out, "2025-06-15 10:30")
}

func TestComputeRunStats(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	runs := []model.FlowRun{
		{Flow: "brandSafety", State: model.FlowCompleted, DurationMs: 1000, Usage: model.TokenUsage{InputTokens: 10, OutputTokens: 5, Cost: 0.01}, CreatedAt: now},
		{Flow: "brandSafety", State: model.FlowFailed, ErrorKind: "collaborator", DurationMs: 3000, CreatedAt: now},
		{Flow: "assetAnalysis", State: model.FlowFailed, ErrorKind: "schema", DurationMs: 2000, CreatedAt: now},
		{Flow: "assetAnalysis", State: model.FlowCompleted, CreatedAt: now.Add(-48 * time.Hour)},
	}

	stats := computeRunStats(runs, now.Add(-24*time.Hour))
	require.Len(t, stats, 2)

	assert.Equal(t, "assetAnalysis", stats[0].Flow)
	assert.Equal(t, 1, stats[0].Total)
	assert.Equal(t, 1, stats[0].ByKind["schema"])

	bs := stats[1]
	assert.Equal(t, 2, bs.Total)
	assert.Equal(t, 1, bs.Completed)
	assert.Equal(t, 1, bs.Failed)
	assert.Equal(t, 1, bs.ByKind["collaborator"])
	assert.InDelta(t, 2.0, bs.AvgDurSecs, 1e-9)
	assert.Equal(t, 15, bs.Tokens)

	var buf bytes.Buffer
	formatRunStats(&buf, stats)
	assert.Contains(t, buf.String(), "collaborator:")
	assert.Contains(t, buf.String(), "Avg duration:")
}

func TestFormatRunStats_Empty(t *testing.T) {
	var buf bytes.Buffer
	formatRunStats(&buf, nil)
	assert.Contains(t, buf.String(), "No runs in window.")
}

func TestRunsHealthCmd(t *testing.T) {
	path := useSQLite(t)
	cfg.Monitoring = config.MonitoringConfig{MinRuns: 1, FailureRateThreshold: 0.5, WebhookURL: "http://127.0.0.1:1"}
	seedStore(t, path, func(st store.Store) {
		require.NoError(t, st.RecordFlowRun(context.Background(), model.FlowRun{
			ID: "r1", Flow: "creativeScorecard", State: model.FlowFailed, ErrorKind: "schema",
			CreatedAt: time.Now().Add(-time.Minute),
		}))
	})

	out, err := runCmd(t, runsHealthCmd)
	require.NoError(t, err)

	var alerts []monitoring.Alert
	require.NoError(t, json.Unmarshal([]byte(out), &alerts))
	require.Len(t, alerts, 2)
	assert.Equal(t, monitoring.AlertFailureRate, alerts[0].Type)
	assert.Equal(t, monitoring.AlertSchemaDrift, alerts[1].Type)
}

func TestRunsHealthCmd_NoRuns(t *testing.T) {
	useSQLite(t)
	out, err := runCmd(t, runsHealthCmd)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)
}
