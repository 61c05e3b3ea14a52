// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/pts/internal/contract"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer initializes and configures the PTS MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, mgr contract.CacheManager) *server.MCPServer {
	s := server.NewMCPServer(
		"Predictive Test Selection Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		mgr:     mgr,
	}

	// --- 1. Tool: predict_tests ---
	s.AddTool(mcp.NewTool("predict_tests",
		mcp.WithDescription("Score every test of a features CSV with its failure probability and return the tests worth running."),
		mcp.WithString("features_path", mcp.Description("Path to a features CSV with a test_id column."), mcp.Required()),
		mcp.WithNumber("threshold", mcp.Description("Selection threshold between 0 and 1. Defaults to the configured threshold.")),
		mcp.WithString("model_path", mcp.Description("Path to a trained model file. Defaults to the configured model.")),
	), h.handlePredictTests)

	// --- 2. Tool: evaluate_selection ---
	s.AddTool(mcp.NewTool("evaluate_selection",
		mcp.WithDescription("Compare predicted failure probabilities with observed outcomes and report test reduction, defect detection and false positive rates."),
		mcp.WithString("predictions_path", mcp.Description("Path to a predictions CSV (test_id, failure_probability)."), mcp.Required()),
		mcp.WithString("ground_truth_path", mcp.Description("Path to a ground truth CSV (test_id, failed)."), mcp.Required()),
		mcp.WithNumber("threshold", mcp.Description("Selection threshold between 0 and 1.")),
	), h.handleEvaluateSelection)

	// --- 3. Tool: validate_dataset ---
	s.AddTool(mcp.NewTool("validate_dataset",
		mcp.WithDescription("Check that a dataset CSV has the required columns and no missing values."),
		mcp.WithString("dataset_path", mcp.Description("Path to the dataset CSV."), mcp.Required()),
		mcp.WithString("required_columns", mcp.Description("Comma-separated required columns. Defaults to the training columns.")),
	), h.handleValidateDataset)

	return s
}

// StartMCPServer starts the PTS MCP server.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, mgr contract.CacheManager) error {
	s := NewMCPServer(baseCfg, mgr)
	return server.ServeStdio(s)
}
