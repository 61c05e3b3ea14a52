// Package core has core logic for feature engineering, test selection and evaluation.
package core

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/huangsam/pts/internal/contract"
	"github.com/huangsam/pts/internal/integrations"
	"github.com/huangsam/pts/internal/outwriter"
	"github.com/huangsam/pts/schema"
)

// ErrInvalidDataset is returned when a dataset fails validation.
var ErrInvalidDataset = errors.New("dataset failed validation")

// ExecutorFunc defines the function signature for executing the pipeline commands.
type ExecutorFunc func(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error

// ChangeFetcher describes a commit through a code hosting provider.
type ChangeFetcher interface {
	FetchChange(ctx context.Context, project, sha string) (schema.ChangeContext, error)
}

// ExecuteCollect mines the commit history, gathers test outcomes and writes
// the merged training dataset.
func ExecuteCollect(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	start := time.Now()
	client := contract.NewLocalGitClient()

	commits, err := CollectCommitHistory(ctx, cfg, client, mgr)
	if err != nil {
		return err
	}
	if len(commits) == 0 {
		return errors.New("no commits found")
	}

	outcomes, err := CollectOutcomes(ctx, cfg, commits, newOutcomeFetcher(cfg))
	if err != nil {
		return fmt.Errorf("cannot collect test outcomes: %w", err)
	}

	frame, err := NewProcessor(cfg.TargetColumn).RunProcessingPipeline(commits, outcomes)
	if err != nil {
		return err
	}
	return outwriter.NewOutWriter().WriteDataset(frame, cfg, time.Since(start))
}

// ExecuteValidate checks a dataset and prints the validation report.
// It returns ErrInvalidDataset when the dataset is not usable.
func ExecuteValidate(_ context.Context, cfg *contract.Config, _ contract.CacheManager) error {
	f, err := ReadCSVFile(cfg.InputFile)
	if err != nil {
		return err
	}
	report := ValidateDataset(cfg, f)
	if err := outwriter.NewOutWriter().WriteValidation(report, cfg); err != nil {
		return err
	}
	if !report.OK() {
		return ErrInvalidDataset
	}
	return nil
}

// ExecuteFeatures runs the feature pipeline on a dataset and writes the selected feature frame.
func ExecuteFeatures(_ context.Context, cfg *contract.Config, _ contract.CacheManager) error {
	start := time.Now()
	raw, err := ReadCSVFile(cfg.InputFile)
	if err != nil {
		return err
	}
	features, _, err := BuildFeatures(cfg, raw)
	if err != nil {
		return err
	}
	return outwriter.NewOutWriter().WriteDataset(features, cfg, time.Since(start))
}

// ExecuteTrain builds features from a dataset, fits the estimator and saves the model artifact.
func ExecuteTrain(_ context.Context, cfg *contract.Config, _ contract.CacheManager) error {
	start := time.Now()
	raw, err := ReadCSVFile(cfg.InputFile)
	if err != nil {
		return err
	}
	out, err := TrainModel(cfg, raw)
	if err != nil {
		return err
	}
	return outwriter.NewOutWriter().WriteTraining(out, cfg, time.Since(start))
}

// ExecutePredict scores the tests of a feature file or of a single change
// and prints the selection.
func ExecutePredict(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	start := time.Now()
	lm, err := LoadEstimator(cfg.ModelFile)
	if err != nil {
		return err
	}
	f, err := predictionFrame(ctx, cfg, lm)
	if err != nil {
		return err
	}
	set, err := Predict(ctx, cfg, mgr, lm, f)
	if err != nil {
		return err
	}
	if shouldSuppressOutput(ctx) {
		return nil
	}
	return outwriter.NewOutWriter().WritePredictions(set, cfg, time.Since(start))
}

// ExecuteEvaluate compares a predictions file with observed outcomes and prints the metrics.
func ExecuteEvaluate(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	start := time.Now()
	if cfg.GroundTruthFile == "" {
		return errors.New("--ground-truth is required")
	}
	predFrame, err := ReadCSVFile(cfg.InputFile)
	if err != nil {
		return err
	}
	truthFrame, err := ReadCSVFile(cfg.GroundTruthFile)
	if err != nil {
		return err
	}
	out, err := EvaluateFrames(ctx, cfg, mgr, predFrame, truthFrame)
	if err != nil {
		return err
	}
	if shouldSuppressOutput(ctx) {
		return nil
	}
	return outwriter.NewOutWriter().WriteEvaluation(out, cfg, time.Since(start))
}

// ValidateDataset checks f against the configured required columns, or the
// training defaults when none are configured.
func ValidateDataset(cfg *contract.Config, f *schema.Frame) schema.ValidationReport {
	required := cfg.RequiredColumns
	if len(required) == 0 {
		required = DefaultRequiredColumns(cfg.TargetColumn)
	}
	v := NewValidator(required, cfg.TargetColumn)
	v.Validate(f)
	return v.Check(f)
}

// BuildFeatures validates a processed dataset and runs extraction,
// engineering and selection on it.
func BuildFeatures(cfg *contract.Config, raw *schema.Frame) (*schema.Frame, *FeatureSelector, error) {
	if !NewValidator(DefaultRequiredColumns(cfg.TargetColumn), cfg.TargetColumn).Validate(raw) {
		return nil, nil, ErrInvalidDataset
	}
	extracted, err := NewFeatureExtractor(cfg.TargetColumn).RunExtractionPipeline(raw)
	if err != nil {
		return nil, nil, err
	}
	engineered, err := NewFeatureEngineer().RunEngineeringPipeline(extracted)
	if err != nil {
		return nil, nil, err
	}
	selector := NewFeatureSelector(cfg.KBest, cfg.TargetColumn)
	selected, err := selector.RunSelectionPipeline(engineered)
	if err != nil {
		return nil, nil, err
	}
	return selected, selector, nil
}

// TrainModel fits a model on a processed dataset and writes it to cfg.ModelFile.
func TrainModel(cfg *contract.Config, raw *schema.Frame) (schema.TrainingOutput, error) {
	features, selector, err := BuildFeatures(cfg, raw)
	if err != nil {
		return schema.TrainingOutput{}, err
	}
	lm, err := NewTrainer(cfg.TargetColumn).Train(features)
	if err != nil {
		return schema.TrainingOutput{}, err
	}
	lm.AuthorExperience = authorExperienceFromFrame(raw)

	metrics, err := NewEvaluator(cfg.TargetColumn).Evaluate(lm, features)
	if err != nil {
		return schema.TrainingOutput{}, err
	}
	if err := lm.Save(cfg.ModelFile); err != nil {
		return schema.TrainingOutput{}, fmt.Errorf("cannot save model: %w", err)
	}

	return schema.TrainingOutput{
		ModelFile:    cfg.ModelFile,
		ModelVersion: lm.Version(),
		Samples:      lm.Samples,
		Tests:        len(lm.TestFailureRates),
		Features:     selector.FeatureScores(),
		Metrics:      metrics,
	}, nil
}

// LoadEstimator reads the model artifact. A missing file is not an error:
// the returned model is nil and prediction falls back to random scores.
func LoadEstimator(path string) (*LogisticModel, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		contract.LogWarn("Model file not found, predictions will be random", err)
		return nil, nil
	}
	return LoadModel(path)
}

// Predict scores a feature frame, applies the selection threshold and
// records the run in the history store.
func Predict(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager, lm *LogisticModel, f *schema.Frame) (schema.PredictionSet, error) {
	selector, err := NewSelector(asEstimator(lm), cfg.Threshold, cfg.TargetColumn)
	if err != nil {
		return schema.PredictionSet{}, err
	}
	if cfg.Seed != 0 {
		selector.Rand = rand.New(rand.NewPCG(uint64(cfg.Seed), uint64(cfg.Seed)))
	}

	store, runID := beginRun(mgr, schema.PredictRun, cfg)
	if runID > 0 {
		ctx = withRunID(ctx, runID)
	}
	selector.Logger = runLogger(ctx, "predictor")
	selector.Sink = telemetryFrom(ctx)

	set, err := selector.Predict(ctx, f)
	if err != nil {
		if store != nil {
			endRun(store, runID, 0)
		}
		return schema.PredictionSet{}, err
	}

	if store != nil {
		if err := store.RecordPredictions(runID, set); err != nil {
			contract.LogWarn("Failed to record predictions", err)
		}
		endRun(store, runID, set.Len())
	}
	return set, nil
}

// EvaluateFrames computes the selection metrics of a predictions frame
// against a ground-truth frame and records the run in the history store.
func EvaluateFrames(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager, predFrame, truthFrame *schema.Frame) (schema.EvaluationOutput, error) {
	predictions, err := PredictionsFromFrame(predFrame)
	if err != nil {
		return schema.EvaluationOutput{}, err
	}
	truth, err := GroundTruthFromFrame(truthFrame, cfg.TargetColumn)
	if err != nil {
		return schema.EvaluationOutput{}, err
	}

	store, runID := beginRun(mgr, schema.EvaluateRun, cfg)
	if runID > 0 {
		ctx = withRunID(ctx, runID)
	}
	evaluator := NewEvaluator(cfg.TargetColumn)
	evaluator.Logger = runLogger(ctx, "evaluator")
	metrics, join := evaluator.CalculatePTSMetricsDetailed(predictions, truth, cfg.Threshold)

	if store != nil {
		if err := store.RecordEvaluation(runID, time.Now(), cfg.Threshold, metrics, join); err != nil {
			contract.LogWarn("Failed to record evaluation", err)
		}
		endRun(store, runID, metrics.TotalTests)
	}
	return schema.EvaluationOutput{Threshold: cfg.Threshold, Metrics: metrics, Join: join}, nil
}

// predictionFrame builds the frame to score: from a patch, a commit, or a features file.
func predictionFrame(ctx context.Context, cfg *contract.Config, lm *LogisticModel) (*schema.Frame, error) {
	var change schema.ChangeContext
	switch {
	case cfg.DiffFile != "":
		data, err := os.ReadFile(cfg.DiffFile)
		if err != nil {
			return nil, err
		}
		if change, err = ChangeFromDiff(data); err != nil {
			return nil, err
		}
	case cfg.CommitRef != "":
		var err error
		if change, err = fetchChange(ctx, cfg); err != nil {
			return nil, err
		}
	case cfg.InputFile != "":
		return ReadCSVFile(cfg.InputFile)
	default:
		return nil, errors.New("a features file, --commit or --diff is required")
	}

	return ChangeFeatures(lm, change, time.Now(), testUniverse(lm))
}

// PredictChange builds the serving-time features of one change and scores them.
func PredictChange(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager, lm *LogisticModel, change schema.ChangeContext) (schema.PredictionSet, error) {
	f, err := ChangeFeatures(lm, change, time.Now(), testUniverse(lm))
	if err != nil {
		return schema.PredictionSet{}, err
	}
	return Predict(ctx, cfg, mgr, lm, f)
}

// testUniverse lists the tests a change is scored against: the tests seen
// in training, or the simulated suite without a model.
func testUniverse(lm *LogisticModel) []string {
	if tests := ModelTests(lm); len(tests) > 0 {
		return tests
	}
	return SimulatedTestIDs(DefaultSimulatedTests)
}

// fetchChange describes cfg.CommitRef through the configured provider, or the local repository.
func fetchChange(ctx context.Context, cfg *contract.Config) (schema.ChangeContext, error) {
	if fetcher := NewChangeFetcher(cfg); fetcher != nil {
		return fetcher.FetchChange(ctx, cfg.CIProject, cfg.CommitRef)
	}
	return CollectChange(ctx, contract.NewLocalGitClient(), cfg.RepoPath, cfg.CommitRef)
}

// newOutcomeFetcher returns the Jenkins client when outcomes come from Jenkins.
func newOutcomeFetcher(cfg *contract.Config) OutcomeFetcher {
	if cfg.OutcomeSource != schema.JenkinsOutcomes {
		return nil
	}
	return integrations.NewJenkinsClient(cfg)
}

// NewChangeFetcher returns a hosting provider client when one is configured
// with a project, and nil otherwise.
func NewChangeFetcher(cfg *contract.Config) ChangeFetcher {
	if cfg.CIProject == "" {
		return nil
	}
	switch cfg.CIProvider {
	case schema.GitHubProvider:
		return integrations.NewGitHubClient(cfg)
	case schema.GitLabProvider:
		return integrations.NewGitLabClient(cfg)
	default:
		return nil
	}
}

// beginRun opens a history run when a history store is configured.
func beginRun(mgr contract.CacheManager, kind schema.RunKind, cfg *contract.Config) (contract.HistoryStore, int64) {
	if mgr == nil {
		return nil, 0
	}
	store := mgr.GetHistoryStore()
	if store == nil {
		return nil, 0
	}
	runID, err := store.BeginRun(kind, time.Now(), cfg.Params())
	if err != nil {
		contract.LogWarn("History tracking initialization failed", err)
		return nil, 0
	}
	if runID <= 0 {
		return nil, 0
	}
	return store, runID
}

// endRun finalizes a history run.
func endRun(store contract.HistoryStore, runID int64, totalTests int) {
	if err := store.EndRun(runID, time.Now(), totalTests); err != nil {
		contract.LogWarn("Failed to finalize history tracking", err)
	}
}

// asEstimator avoids wrapping a nil model in a non-nil interface.
func asEstimator(lm *LogisticModel) Estimator {
	if lm == nil {
		return nil
	}
	return lm
}

// authorExperienceFromFrame reads the per-author commit counts of a processed dataset.
func authorExperienceFromFrame(f *schema.Frame) map[string]int {
	authors, ok := f.Column(schema.ColAuthorName)
	if !ok {
		return nil
	}
	exp, ok := f.Column(schema.ColAuthorExperience)
	if !ok {
		return nil
	}
	out := make(map[string]int)
	for i := range authors.Values {
		name, ok := authors.String(i)
		if !ok {
			continue
		}
		if v, ok := exp.Float(i); ok && int(v) > out[name] {
			out[name] = int(v)
		}
	}
	return out
}
