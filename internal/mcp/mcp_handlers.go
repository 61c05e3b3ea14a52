package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/huangsam/pts/core"
	"github.com/huangsam/pts/internal/contract"
	"github.com/huangsam/pts/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	mgr     contract.CacheManager
}

type predictResult struct {
	ModelVersion  string                    `json:"model_version"`
	Degraded      bool                      `json:"degraded"`
	Threshold     float64                   `json:"threshold"`
	SelectedTests []string                  `json:"selected_tests"`
	Predictions   []schema.RankedPrediction `json:"predictions"`
}

type validateResult struct {
	OK bool `json:"ok"`
	schema.ValidationReport
}

// applyThreshold overrides cfg.Threshold when the request carries one.
func applyThreshold(cfg *contract.Config, request mcp.CallToolRequest) error {
	if _, ok := request.GetArguments()["threshold"]; !ok {
		return nil
	}
	threshold := request.GetFloat("threshold", cfg.Threshold)
	if err := contract.ValidateThreshold(threshold); err != nil {
		return err
	}
	cfg.Threshold = threshold
	return nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handlePredictTests(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := h.baseCfg.Clone()
	featuresPath, err := request.RequireString("features_path")
	if err != nil || featuresPath == "" {
		return mcp.NewToolResultError("missing required parameter: features_path"), nil
	}
	if err := applyThreshold(cfg, request); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid threshold: %v", err)), nil
	}
	if p := request.GetString("model_path", ""); p != "" {
		cfg.ModelFile = p
	}

	lm, err := core.LoadEstimator(cfg.ModelFile)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot load model: %v", err)), nil
	}
	f, err := core.ReadCSVFile(featuresPath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot read features: %v", err)), nil
	}
	set, err := core.Predict(core.WithSuppressOutput(ctx), cfg, h.mgr, lm, f)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("prediction failed: %v", err)), nil
	}

	return jsonResult(predictResult{
		ModelVersion:  set.ModelVersion,
		Degraded:      set.Degraded,
		Threshold:     set.Threshold,
		SelectedTests: set.SelectedTests(),
		Predictions:   schema.RankPredictions(set),
	})
}

func (h *toolHandler) handleEvaluateSelection(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := h.baseCfg.Clone()
	predictionsPath := request.GetString("predictions_path", "")
	truthPath := request.GetString("ground_truth_path", "")
	if predictionsPath == "" || truthPath == "" {
		return mcp.NewToolResultError("predictions_path and ground_truth_path are required"), nil
	}
	if err := applyThreshold(cfg, request); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid threshold: %v", err)), nil
	}

	predFrame, err := core.ReadCSVFile(predictionsPath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot read predictions: %v", err)), nil
	}
	truthFrame, err := core.ReadCSVFile(truthPath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot read ground truth: %v", err)), nil
	}
	out, err := core.EvaluateFrames(core.WithSuppressOutput(ctx), cfg, h.mgr, predFrame, truthFrame)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("evaluation failed: %v", err)), nil
	}
	return jsonResult(out)
}

func (h *toolHandler) handleValidateDataset(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := h.baseCfg.Clone()
	datasetPath, err := request.RequireString("dataset_path")
	if err != nil || datasetPath == "" {
		return mcp.NewToolResultError("missing required parameter: dataset_path"), nil
	}
	if cols := contract.ParseCSVList(request.GetString("required_columns", "")); len(cols) > 0 {
		cfg.RequiredColumns = cols
	}

	f, err := core.ReadCSVFile(datasetPath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot read dataset: %v", err)), nil
	}
	report := core.ValidateDataset(cfg, f)
	return jsonResult(validateResult{OK: report.OK(), ValidationReport: report})
}
