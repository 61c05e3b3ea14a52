package cmd

import (
	"os"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subcommandNames(c *cobra.Command) []string {
	var names []string
	for _, sub := range c.Commands() {
		names = append(names, sub.Name())
	}
	return names
}

func TestCommandTree(t *testing.T) {
	root := subcommandNames(rootCmd)
	for _, name := range []string{"collect", "validate", "features", "train", "predict", "evaluate", "serve", "mcp", "history", "cache", "version"} {
		assert.Contains(t, root, name)
	}
	assert.ElementsMatch(t, []string{"clear", "status", "export", "migrate"}, subcommandNames(historyCmd))
	assert.ElementsMatch(t, []string{"clear", "status"}, subcommandNames(cacheCmd))
}

func TestFlagsAreRegistered(t *testing.T) {
	for _, name := range []string{"selection-threshold", "target-column", "k-best", "seed", "model-file", "history-backend", "ci-provider", "log-format"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
	}
	assert.NotNil(t, collectCmd.Flags().Lookup("outcome-source"))
	assert.NotNil(t, predictCmd.Flags().Lookup("diff"))
	assert.NotNil(t, evaluateCmd.Flags().Lookup("ground-truth"))
	assert.NotNil(t, serveCmd.Flags().Lookup("cost-per-test"))
	assert.NotNil(t, historyMigrateCmd.Flags().Lookup("target-version"))
}

func TestThresholdConfigured(t *testing.T) {
	if _, ok := os.LookupEnv("PTS_SELECTION_THRESHOLD"); ok {
		t.Skip("PTS_SELECTION_THRESHOLD is set in the environment")
	}
	c := &cobra.Command{Use: "probe"}
	c.Flags().Float64("selection-threshold", 0.5, "")
	assert.False(t, thresholdConfigured(c))

	require.NoError(t, c.Flags().Set("selection-threshold", "0.3"))
	assert.True(t, thresholdConfigured(c))

	t.Setenv("PTS_SELECTION_THRESHOLD", "0.4")
	assert.True(t, thresholdConfigured(&cobra.Command{Use: "probe"}))
}
