package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/pprof"
	"strings"

	"github.com/huangsam/pts/internal/contract"
	"github.com/huangsam/pts/internal/iocache"
	"github.com/huangsam/pts/internal/logger"
	"github.com/huangsam/pts/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// All linker flags will be set by goreleaser infra at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCtx is the root context for all operations.
var rootCtx = context.Background()

// cfg will hold the validated, final configuration.
var cfg = &contract.Config{}

// input holds the raw, unvalidated configuration from all sources (file, env, flags).
// Viper will unmarshal into this struct.
var input = &contract.ConfigRawInput{}

// profilePrefix is set when profiling is enabled.
var profilePrefix string

// cacheManager is the global persistence manager instance.
var cacheManager contract.CacheManager

// startProfiling starts CPU profiling when --profile is set.
func startProfiling() error {
	profilePrefix = strings.TrimSpace(viper.GetString("profile"))
	if profilePrefix == "" {
		return nil
	}

	cpuFile, err := os.Create(profilePrefix + ".cpu.prof")
	if err != nil {
		return fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(cpuFile); err != nil {
		return fmt.Errorf("could not start CPU profiling: %w", err)
	}
	logger.Named("profile").Info().Str("prefix", profilePrefix).Msg("Profiling enabled")
	return nil
}

// stopProfiling stops profiling and writes memory profile.
func stopProfiling() error {
	if profilePrefix == "" {
		return nil
	}

	pprof.StopCPUProfile()

	memFile, err := os.Create(profilePrefix + ".mem.prof")
	if err != nil {
		return fmt.Errorf("could not create memory profile: %w", err)
	}
	defer func() { _ = memFile.Close() }()

	if err := pprof.WriteHeapProfile(memFile); err != nil {
		return fmt.Errorf("could not write memory profile: %w", err)
	}
	logger.Named("profile").Info().Str("cpu", profilePrefix+".cpu.prof").Str("mem", profilePrefix+".mem.prof").Msg("Profiling complete")
	return nil
}

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:   "pts",
	Short: "Predict which tests a change is likely to break and run only those.",
	Long: `PTS learns from commit history and test outcomes which tests tend to fail
for which kinds of change, then selects the subset worth running for a new change.`,
	Version:            version,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	setConfigFile()

	// Set environment variable prefix
	viper.SetEnvPrefix("PTS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("selection-threshold", contract.DefaultThreshold)
	viper.SetDefault("target-column", schema.ColDefaultTarget)
	viper.SetDefault("workers", contract.DefaultWorkers)
	viper.SetDefault("precision", contract.DefaultPrecision)
	viper.SetDefault("output", schema.TextOut)
	viper.SetDefault("model-file", contract.DefaultModelFile)
	viper.SetDefault("k-best", contract.DefaultKBest)
	viper.SetDefault("max-commits", contract.DefaultMaxCommits)
	viper.SetDefault("outcome-source", schema.SimulatedOutcomes)
	viper.SetDefault("ci-provider", schema.NoProvider)
	viper.SetDefault("ci-rate", contract.DefaultCIRate)
	viper.SetDefault("listen-addr", contract.DefaultListenAddr)
	viper.SetDefault("cost-per-test", contract.DefaultCostPerTest)
	viper.SetDefault("cache-backend", schema.SQLiteBackend)
	viper.SetDefault("cache-db-connect", "")
	viper.SetDefault("history-backend", "")
	viper.SetDefault("history-db-connect", "")
	viper.SetDefault("log-level", "info")
	viper.SetDefault("log-format", "console")
	viper.SetDefault("color", "yes")
}

// setConfigFile points viper at --config or the default .pts.yaml search path.
func setConfigFile() {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		return
	}
	viper.SetConfigName(".pts")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME")
}

// setupOptions describe what a command needs from the shared setup.
type setupOptions struct {
	inputFile bool // first positional argument is a dataset path
	repo      bool // resolve the git repository root
}

// sharedSetup unmarshals config and runs validation.
func sharedSetup(ctx context.Context, _ *cobra.Command, args []string, opts setupOptions) error {
	if err := startProfiling(); err != nil {
		return fmt.Errorf("failed to start profiling: %w", err)
	}

	// 1. Read config file. This merges defaults, file, env, and flags.
	if err := loadConfigFile(); err != nil {
		return err
	}

	// 2. Unmarshal all resolved values from Viper into our raw input struct.
	if err := viper.Unmarshal(input); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}

	// 3. Handle positional arguments (which Viper doesn't do).
	input.InputFile, input.RepoPathStr = "", ""
	if opts.inputFile && len(args) == 1 {
		input.InputFile = args[0]
	}
	if opts.repo {
		input.RepoPathStr = "."
		if !opts.inputFile && len(args) == 1 {
			input.RepoPathStr = args[0]
		}
	}

	// 4. Run all validation and complex parsing.
	client := contract.NewLocalGitClient()
	if err := contract.ProcessAndValidate(ctx, cfg, client, input); err != nil {
		return err
	}

	logger.Init(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	// 5. Initialize persistence layer with validated config
	if err := iocache.InitCaching(cfg.CacheBackend, cfg.CacheDBConnect, cfg.HistoryBackend, cfg.HistoryDBConnect); err != nil {
		return fmt.Errorf("failed to initialize persistence: %w", err)
	}
	return nil
}

// setupWith adapts sharedSetup to Cobra's PreRunE.
func setupWith(opts setupOptions) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return sharedSetup(rootCtx, cmd, args, opts)
	}
}

// loadConfigFile handles config file loading logic common to all setup functions.
func loadConfigFile() error {
	setConfigFile()
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetCacheManager sets the global cache manager.
func SetCacheManager(mgr contract.CacheManager) {
	cacheManager = mgr
}

// StopProfiling stops profiling if enabled.
func StopProfiling() error {
	return stopProfiling()
}
