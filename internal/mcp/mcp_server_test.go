package mcp_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/huangsam/pts/internal/contract"
	mcp_internal "github.com/huangsam/pts/internal/mcp"
	"github.com/huangsam/pts/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func callTool(t *testing.T, cfg *contract.Config, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	s := mcp_internal.NewMCPServer(cfg, nil)
	tool := s.GetTool(name)
	require.NotNil(t, tool, "Tool %s should exist", name)

	res, err := tool.Handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	})
	require.NoError(t, err, "The MCP handler should not return a raw error for tool logic failures")
	require.NotEmpty(t, res.Content)
	return res
}

func resultText(res *mcp.CallToolResult) string {
	return res.Content[0].(mcp.TextContent).Text
}

func baseConfig(t *testing.T) *contract.Config {
	return &contract.Config{
		Threshold:    contract.DefaultThreshold,
		TargetColumn: schema.ColDefaultTarget,
		ModelFile:    filepath.Join(t.TempDir(), "absent.json"),
		Seed:         11,
	}
}

func TestPredictTests(t *testing.T) {
	dir := t.TempDir()
	features := writeFile(t, dir, "features.csv", "test_id,churn\nt1,3\nt2,5\nt3,1\n")

	res := callTool(t, baseConfig(t), "predict_tests", map[string]any{
		"features_path": features,
		"threshold":     0.0,
	})
	require.False(t, res.IsError, resultText(res))

	var out struct {
		ModelVersion  string   `json:"model_version"`
		Degraded      bool     `json:"degraded"`
		Threshold     float64  `json:"threshold"`
		SelectedTests []string `json:"selected_tests"`
		Predictions   []struct {
			Rank   int    `json:"rank"`
			TestID string `json:"test_id"`
		} `json:"predictions"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(res)), &out))
	assert.True(t, out.Degraded)
	assert.Equal(t, 0.0, out.Threshold)
	assert.Len(t, out.SelectedTests, 3, "every test passes a zero threshold")
	require.Len(t, out.Predictions, 3)
	assert.Equal(t, 1, out.Predictions[0].Rank)
}

func TestPredictTestsErrors(t *testing.T) {
	t.Run("missing features path", func(t *testing.T) {
		res := callTool(t, baseConfig(t), "predict_tests", map[string]any{})
		assert.True(t, res.IsError)
		assert.Contains(t, resultText(res), "features_path")
	})

	t.Run("threshold out of range", func(t *testing.T) {
		res := callTool(t, baseConfig(t), "predict_tests", map[string]any{
			"features_path": "features.csv",
			"threshold":     1.5,
		})
		assert.True(t, res.IsError)
		assert.Contains(t, resultText(res), "between 0.0 and 1.0")
	})

	t.Run("unreadable file", func(t *testing.T) {
		res := callTool(t, baseConfig(t), "predict_tests", map[string]any{
			"features_path": filepath.Join(t.TempDir(), "nope.csv"),
		})
		assert.True(t, res.IsError)
		assert.Contains(t, resultText(res), "cannot read features")
	})
}

func TestEvaluateSelection(t *testing.T) {
	dir := t.TempDir()
	preds := writeFile(t, dir, "preds.csv", "test_id,failure_probability\nt1,0.8\nt2,0.7\nt3,0.4\nt4,0.2\nt5,0.9\n")
	truth := writeFile(t, dir, "truth.csv", "test_id,failed\nt1,1\nt2,0\nt3,1\nt4,0\nt5,1\n")

	res := callTool(t, baseConfig(t), "evaluate_selection", map[string]any{
		"predictions_path":  preds,
		"ground_truth_path": truth,
	})
	require.False(t, res.IsError, resultText(res))

	var out schema.EvaluationOutput
	require.NoError(t, json.Unmarshal([]byte(resultText(res)), &out))
	assert.Equal(t, 0.5, out.Threshold)
	assert.Equal(t, 5, out.Metrics.TotalTests)
	assert.InDelta(t, 0.4, out.Metrics.TestReductionRate, 1e-9)
	assert.InDelta(t, 2.0/3.0, out.Metrics.DefectDetectionRate, 1e-9)

	res = callTool(t, baseConfig(t), "evaluate_selection", map[string]any{"predictions_path": preds})
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), "ground_truth_path")
}

func TestValidateDataset(t *testing.T) {
	dir := t.TempDir()
	dataset := writeFile(t, dir, "data.csv", "test_id,churn\nt1,3\nt2,\n")

	res := callTool(t, baseConfig(t), "validate_dataset", map[string]any{
		"dataset_path":     dataset,
		"required_columns": "test_id, churn",
	})
	require.False(t, res.IsError, resultText(res))

	var out struct {
		OK         bool           `json:"ok"`
		Rows       int            `json:"rows"`
		NullCounts map[string]int `json:"null_counts"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(res)), &out))
	assert.False(t, out.OK)
	assert.Equal(t, 2, out.Rows)
	assert.Equal(t, 1, out.NullCounts["churn"])

	res = callTool(t, baseConfig(t), "validate_dataset", map[string]any{
		"dataset_path":     dataset,
		"required_columns": "test_id",
	})
	require.NoError(t, json.Unmarshal([]byte(resultText(res)), &out))
	assert.True(t, out.OK)
}
