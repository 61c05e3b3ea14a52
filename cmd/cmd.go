// Package cmd defines the command-line interface for pts.
package cmd

import (
	"github.com/huangsam/pts/internal/contract"
	"github.com/huangsam/pts/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(featuresCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(historyCmd)

	// Add the cache subcommands to the parent cache command
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatusCmd)

	// Add the history subcommands to the parent history command
	historyCmd.AddCommand(historyClearCmd)
	historyCmd.AddCommand(historyStatusCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().Float64("selection-threshold", contract.DefaultThreshold, "Failure probability at or above which a test is selected")
	rootCmd.PersistentFlags().String("target-column", schema.ColDefaultTarget, "Name of the binary label column")
	rootCmd.PersistentFlags().Int("k-best", contract.DefaultKBest, "Number of features kept by feature selection")
	rootCmd.PersistentFlags().Int64("seed", 0, "Seed for the train/test split and fallback scores")
	rootCmd.PersistentFlags().String("model-file", contract.DefaultModelFile, "Path of the trained model artifact")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or csv or json or yaml or parquet")
	rootCmd.PersistentFlags().StringP("output-file", "o", "", "Optional path to write output to")
	rootCmd.PersistentFlags().Int("precision", contract.DefaultPrecision, "Decimal precision for numeric columns")
	rootCmd.PersistentFlags().String("profile", "", "Enable profiling and write profiles to files with this prefix")
	rootCmd.PersistentFlags().Int("workers", contract.DefaultWorkers, "Number of concurrent workers")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("cache-backend", string(schema.SQLiteBackend), "Cache backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("cache-db-connect", "", "Database connection string for mysql/postgresql (e.g., user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().String("history-backend", "", "Run history backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("history-db-connect", "", "Database connection string for run history (must differ from cache-db-connect)")
	rootCmd.PersistentFlags().String("ci-provider", string(schema.NoProvider), "CI provider: none or github or gitlab or jenkins")
	rootCmd.PersistentFlags().String("ci-base-url", "", "Base URL of the CI provider API")
	rootCmd.PersistentFlags().String("ci-project", "", "Project on the CI provider (owner/repo, group/project or Jenkins job path)")
	rootCmd.PersistentFlags().String("ci-user", "", "User name for Jenkins basic auth")
	rootCmd.PersistentFlags().String("ci-token", "", "API token for the CI provider (prefer PTS_CI_TOKEN)")
	rootCmd.PersistentFlags().Float64("ci-rate", contract.DefaultCIRate, "Maximum CI provider requests per second")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: trace or debug or info or warn or error")
	rootCmd.PersistentFlags().String("log-format", "console", "Log format: console or json")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of collectCmd to Viper
	collectCmd.Flags().Int("max-commits", contract.DefaultMaxCommits, "Maximum number of commits to mine (0 = all)")
	collectCmd.Flags().String("outcome-source", string(schema.SimulatedOutcomes), "Test outcome source: simulated or junit or jenkins")
	collectCmd.Flags().String("junit-dir", "", "Directory of JUnit XML reports")
	if err := viper.BindPFlags(collectCmd.Flags()); err != nil {
		contract.LogFatal("Error binding collect flags", err)
	}

	// Bind all flags of validateCmd to Viper
	validateCmd.Flags().String("required-columns", "", "Comma-separated list of columns that must be present")
	if err := viper.BindPFlags(validateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding validate flags", err)
	}

	// Bind all flags of predictCmd to Viper
	predictCmd.Flags().String("commit", "", "Describe this commit of the repository instead of reading a feature file")
	predictCmd.Flags().String("diff", "", "Describe the change in this unified diff file")
	predictCmd.Flags().Bool("explain", false, "Print a per-test table instead of bare test ids")
	if err := viper.BindPFlags(predictCmd.Flags()); err != nil {
		contract.LogFatal("Error binding predict flags", err)
	}

	// Bind all flags of evaluateCmd to Viper
	evaluateCmd.Flags().String("ground-truth", "", "CSV of observed outcomes (test_id, commit_hash and the target column)")
	if err := viper.BindPFlags(evaluateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding evaluate flags", err)
	}

	// Bind all flags of serveCmd to Viper
	serveCmd.Flags().String("listen-addr", contract.DefaultListenAddr, "Address the HTTP server listens on")
	serveCmd.Flags().Float64("cost-per-test", contract.DefaultCostPerTest, "Cost of running one test, used for savings metrics")
	if err := viper.BindPFlags(serveCmd.Flags()); err != nil {
		contract.LogFatal("Error binding serve flags", err)
	}

	// Bind all flags of historyMigrateCmd to Viper
	historyMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(historyMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding history migrate flags", err)
	}
}
