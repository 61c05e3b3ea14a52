package cmd

import (
	"github.com/huangsam/pts/core"
	"github.com/huangsam/pts/internal/contract"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// predictSetup resolves the repository only when a commit is described from local history.
func predictSetup(cmd *cobra.Command, args []string) error {
	opts := setupOptions{inputFile: true, repo: viper.GetString("commit") != ""}
	return sharedSetup(rootCtx, cmd, args, opts)
}

// predictCmd scores tests and prints the selection.
var predictCmd = &cobra.Command{
	Use:   "predict [features.csv]",
	Short: "Predict which tests are likely to fail and select them.",
	Long: `Score every test with the trained model and select the tests whose
failure probability reaches the selection threshold.

The change can be described in three ways:
- a features file produced by 'pts features' (positional argument)
- a commit of the current repository or of the CI provider (--commit)
- a unified diff (--diff)

Without a trained model, tests get reproducible random scores and the
result is marked as degraded.

By default the selected test ids are printed one per line, ready to pass
to a test runner. Use --explain for a table of every test.

Examples:
  # Select tests for the working change
  git diff HEAD | tee change.diff && pts predict --diff change.diff

  # Select tests for a commit
  pts predict --commit HEAD

  # Describe a GitHub pull request through the API
  pts predict --commit '#123' --ci-provider github --ci-project acme/shop

  # Score a features file and keep every prediction
  pts predict features.csv --output csv --output-file predictions.csv`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: predictSetup,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecutePredict(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot predict tests", err)
		}
	},
}
