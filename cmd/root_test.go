package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"serve", "analyze", "scorecard", "scorecard-batch", "attribute", "assets", "import", "export", "migrate", "runs"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "contentmix", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestAnalyzeCommand_RequiredFlags(t *testing.T) {
	for _, name := range []string{"creator", "campaign"} {
		flag := analyzeCmd.Flags().Lookup(name)
		require.NotNil(t, flag, "analyze should have --%s", name)
		assert.Equal(t, []string{"true"}, flag.Annotations["cobra_annotation_bash_completion_one_required_flag"])
	}
	assert.NotNil(t, analyzeCmd.Flags().Lookup("dry-run"))
}

func TestAssetsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range assetsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "show", "status", "content-type"} {
		assert.True(t, names[name], "assets should have subcommand %q", name)
	}
}

func TestRunsCommand_Flags(t *testing.T) {
	for _, name := range []string{"flow", "state", "limit"} {
		assert.NotNil(t, runsListCmd.Flags().Lookup(name), "runs list should have --%s", name)
	}
	flag := runsStatsCmd.Flags().Lookup("since")
	require.NotNil(t, flag)
	assert.Equal(t, "24h0m0s", flag.DefValue)
}
