package cmd

import (
	"github.com/huangsam/pts/core"
	"github.com/huangsam/pts/internal/contract"
	"github.com/spf13/cobra"
)

// collectCmd mines a repository into a training dataset.
var collectCmd = &cobra.Command{
	Use:   "collect [repo-path]",
	Short: "Mine commit history and test outcomes into a training dataset.",
	Long: `Walk the Git history of a repository and join every commit with the
test outcomes observed for it, producing one row per commit and test.

Outcome sources:
  simulated - a deterministic synthetic suite (default, useful for trying things out)
  junit     - JUnit XML reports found under --junit-dir
  jenkins   - test reports of the Jenkins job named by --ci-project

Examples:
  # Build a dataset from the current repository
  pts collect --output csv --output-file dataset.csv

  # Use JUnit reports collected by CI, one directory per commit
  pts collect --outcome-source junit --junit-dir reports/ -o dataset.csv

  # Use Jenkins test reports
  PTS_CI_TOKEN=... pts collect --ci-provider jenkins --ci-base-url https://ci.example.com \
    --ci-project team/shop --outcome-source jenkins -o dataset.csv`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: setupWith(setupOptions{repo: true}),
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteCollect(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot collect dataset", err)
		}
	},
}

// validateCmd checks that a dataset is usable for training.
var validateCmd = &cobra.Command{
	Use:   "validate <dataset.csv>",
	Short: "Check a dataset for required columns, nulls and column kinds.",
	Long: `Validate a dataset before feature engineering or training.

Checks:
- Every required column is present
- Required columns contain no null cells
- Known columns have the expected kind (reported as warnings)

Exits with a non-zero status when the dataset is not usable.

Examples:
  # Validate against the training defaults
  pts validate dataset.csv

  # Require specific columns only
  pts validate dataset.csv --required-columns test_id,commit_id`,
	Args:    cobra.ExactArgs(1),
	PreRunE: setupWith(setupOptions{inputFile: true}),
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteValidate(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Dataset validation failed", err)
		}
	},
}

// featuresCmd runs the feature pipeline.
var featuresCmd = &cobra.Command{
	Use:   "features <dataset.csv>",
	Short: "Extract, engineer and select features from a dataset.",
	Long: `Run the staged feature pipeline on a dataset and write the resulting
feature frame: extraction, engineering, then k-best selection by ANOVA F-score.

Identifier columns (test_id, commit_id) and the target column are carried through.

Examples:
  # Keep the 10 most informative features
  pts features dataset.csv --output csv --output-file features.csv

  # Keep fewer features
  pts features dataset.csv --k-best 5 -o features.csv`,
	Args:    cobra.ExactArgs(1),
	PreRunE: setupWith(setupOptions{inputFile: true}),
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteFeatures(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot build features", err)
		}
	},
}

// trainCmd fits the estimator and saves the model artifact.
var trainCmd = &cobra.Command{
	Use:   "train <dataset.csv>",
	Short: "Train the failure estimator and save the model artifact.",
	Long: `Build features from a dataset, fit the logistic estimator on a training split
and report classification metrics on the held-out split.

The model artifact stores the selected features, coefficients, per-test
failure rates and per-author experience needed at prediction time.

Examples:
  # Train and save to the default model file
  pts train dataset.csv

  # Reproducible split and custom artifact path
  pts train dataset.csv --seed 42 --model-file models/pts.json`,
	Args:    cobra.ExactArgs(1),
	PreRunE: setupWith(setupOptions{inputFile: true}),
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteTrain(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot train model", err)
		}
	},
}

// evaluateCmd compares predictions with observed outcomes.
var evaluateCmd = &cobra.Command{
	Use:   "evaluate <predictions.csv>",
	Short: "Measure test reduction and defect detection of a selection.",
	Long: `Join a predictions file with observed outcomes on (test_id, commit_hash)
and compute the selection metrics at the configured threshold.

Metrics:
- Test reduction rate (share of tests not selected)
- Defect detection rate (share of failing tests that were selected)
- Precision of the selection and average selected probability

Rows that match on only one side are dropped and counted in the report.

Examples:
  # Evaluate at the default threshold
  pts evaluate predictions.csv --ground-truth outcomes.csv

  # Evaluate a stricter threshold and emit YAML
  pts evaluate predictions.csv --ground-truth outcomes.csv --selection-threshold 0.7 --output yaml`,
	Args:    cobra.ExactArgs(1),
	PreRunE: setupWith(setupOptions{inputFile: true}),
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteEvaluate(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot evaluate predictions", err)
		}
	},
}
