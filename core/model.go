package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/huangsam/pts/schema"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// LogisticModelVersion identifies the logistic regression estimator and its artifact layout.
const LogisticModelVersion = "logistic-v1"

// Training defaults of the logistic estimator.
const (
	DefaultLearningRate = 0.1
	DefaultEpochs       = 500
	DefaultL2           = 0.01
)

// LogisticModel is an L2-regularized logistic regression over standardized
// features, trained by batch gradient descent.
//
// The artifact also carries per-test failure rates and per-author commit
// counts so serving can rebuild features for a single incoming change.
type LogisticModel struct {
	Features     []string  `json:"features"`
	Weights      []float64 `json:"weights"`
	Bias         float64   `json:"bias"`
	Means        []float64 `json:"means"`
	Scales       []float64 `json:"scales"`
	LearningRate float64   `json:"learning_rate"`
	Epochs       int       `json:"epochs"`
	L2           float64   `json:"l2"`
	Samples      int       `json:"samples"`
	TrainedAt    time.Time `json:"trained_at"`

	TargetColumn     string             `json:"target_column"`
	TestFailureRates map[string]float64 `json:"test_failure_rates,omitempty"`
	AuthorExperience map[string]int     `json:"author_experience,omitempty"`
}

// NewLogisticModel returns an untrained model with the default hyperparameters.
func NewLogisticModel() *LogisticModel {
	return &LogisticModel{
		LearningRate: DefaultLearningRate,
		Epochs:       DefaultEpochs,
		L2:           DefaultL2,
		TargetColumn: schema.ColDefaultTarget,
	}
}

// Fitted reports whether Fit has completed.
func (lm *LogisticModel) Fitted() bool {
	return lm != nil && lm.Samples > 0 && len(lm.Weights) == len(lm.Features)
}

// Version identifies the estimator.
func (lm *LogisticModel) Version() string {
	return LogisticModelVersion
}

// Fit trains the model on the matrix rows against binary labels.
func (lm *LogisticModel) Fit(m schema.Matrix, y []float64) error {
	n := len(m.Rows)
	if n == 0 {
		return errors.New("cannot fit on an empty dataset")
	}
	if n != len(y) {
		return fmt.Errorf("got %d rows and %d labels", n, len(y))
	}
	if lm.Epochs <= 0 {
		lm.Epochs = DefaultEpochs
	}
	if lm.LearningRate <= 0 {
		lm.LearningRate = DefaultLearningRate
	}

	d := len(m.Columns)
	lm.Features = append([]string(nil), m.Columns...)
	lm.Means = make([]float64, d)
	lm.Scales = make([]float64, d)
	col := make([]float64, n)
	for j := 0; j < d; j++ {
		for i, row := range m.Rows {
			col[i] = row[j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		lm.Means[j], lm.Scales[j] = mean, std
	}

	xs := make([][]float64, n)
	for i, row := range m.Rows {
		xs[i] = lm.standardize(row, identity(d))
	}

	lm.Weights = make([]float64, d)
	lm.Bias = 0
	grad := make([]float64, d)
	for epoch := 0; epoch < lm.Epochs; epoch++ {
		for j := range grad {
			grad[j] = 0
		}
		var gradBias float64
		for i, x := range xs {
			err := sigmoid(floats.Dot(lm.Weights, x)+lm.Bias) - y[i]
			floats.AddScaled(grad, err, x)
			gradBias += err
		}
		floats.Scale(1/float64(n), grad)
		floats.AddScaled(grad, lm.L2, lm.Weights)
		floats.AddScaled(lm.Weights, -lm.LearningRate, grad)
		lm.Bias -= lm.LearningRate * gradBias / float64(n)
	}

	lm.Samples = n
	lm.TrainedAt = time.Now().UTC()
	return nil
}

// PredictProba returns the failure probability of every row. Columns are
// matched to the trained features by name; extra columns are ignored.
func (lm *LogisticModel) PredictProba(m schema.Matrix) ([]float64, error) {
	if !lm.Fitted() {
		return nil, errors.New("model is not trained")
	}
	pos := make(map[string]int, len(m.Columns))
	for j, c := range m.Columns {
		pos[c] = j
	}
	index := make([]int, len(lm.Features))
	var missing []string
	for j, name := range lm.Features {
		p, ok := pos[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		index[j] = p
	}
	if len(missing) > 0 {
		return nil, schema.NewSchemaError("model", "features seen in training are missing", missing...)
	}

	out := make([]float64, len(m.Rows))
	for i, row := range m.Rows {
		x := lm.standardize(row, index)
		out[i] = sigmoid(floats.Dot(lm.Weights, x) + lm.Bias)
	}
	return out, nil
}

// standardize picks the trained features out of row and scales them.
func (lm *LogisticModel) standardize(row []float64, index []int) []float64 {
	x := make([]float64, len(lm.Features))
	for j, p := range index {
		x[j] = (row[p] - lm.Means[j]) / lm.Scales[j]
	}
	return x
}

// Save writes the model artifact as JSON.
func (lm *LogisticModel) Save(path string) error {
	data, err := json.MarshalIndent(lm, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadModel reads a model artifact written by Save.
func LoadModel(path string) (*LogisticModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lm := NewLogisticModel()
	if err := json.Unmarshal(data, lm); err != nil {
		return nil, fmt.Errorf("invalid model file %s: %w", path, err)
	}
	if len(lm.Weights) != len(lm.Features) || len(lm.Means) != len(lm.Features) || len(lm.Scales) != len(lm.Features) {
		return nil, fmt.Errorf("invalid model file %s: inconsistent feature arrays", path)
	}
	return lm, nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func identity(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
