// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/coronacaster/internal/contract"
	"github.com/huangsam/coronacaster/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer initializes and configures the Coronacaster MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, mgr contract.CacheManager) *server.MCPServer {
	s := server.NewMCPServer(
		"Coronacaster Forecast Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		mgr:     mgr,
	}

	// --- 1. Tool: forecast ---
	s.AddTool(mcp.NewTool("forecast",
		mcp.WithDescription("Fit a Bayesian growth model to cumulative COVID-19 cases of a country and predict the total at a target date."),
		mcp.WithString("country", mcp.Description("Country name as spelled in the dataset. 'World' aggregates all countries.")),
		mcp.WithString("model", mcp.Description("Model key: polyN (N >= 0), exp, logis, sigmoid or scurve. Defaults to the configured model.")),
		mcp.WithString("target_date", mcp.Description("Prediction date as YYYY-MM-DD, or +N for N days after the last observation.")),
		mcp.WithString("start", mcp.Description("First date of the observation window (YYYY-MM-DD).")),
		mcp.WithString("end", mcp.Description("Last date of the observation window (YYYY-MM-DD).")),
		mcp.WithString("priors", mcp.Description("Prior overrides such as 'a1=10,5;sigma=20'.")),
		mcp.WithNumber("samples", mcp.Description("Posterior draws per chain.")),
	), h.handleForecast)

	// --- 2. Tool: resolve_priors ---
	s.AddTool(mcp.NewTool("resolve_priors",
		mcp.WithDescription("Resolve the priors a forecast would sample, without sampling (dry run)."),
		mcp.WithString("country", mcp.Description("Country name as spelled in the dataset.")),
		mcp.WithString("model", mcp.Description("Model key: polyN, exp, logis, sigmoid or scurve."), mcp.Required()),
		mcp.WithString("start", mcp.Description("First date of the observation window (YYYY-MM-DD).")),
		mcp.WithString("end", mcp.Description("Last date of the observation window (YYYY-MM-DD).")),
		mcp.WithString("priors", mcp.Description("Prior overrides such as 'a1=10,5;sigma=20'.")),
	), h.handleResolvePriors)

	// --- 3. Tool: list_countries ---
	s.AddTool(mcp.NewTool("list_countries",
		mcp.WithDescription("List the countries available in the configured dataset."),
		mcp.WithString("contains", mcp.Description("Only return countries whose name contains this text (case-insensitive).")),
	), h.handleListCountries)

	return s
}

// StartMCPServer starts the Coronacaster MCP server on stdio.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, mgr contract.CacheManager) error {
	cfg := baseCfg.Clone()
	cfg.Output = schema.JSONOut
	return server.ServeStdio(NewMCPServer(cfg, mgr))
}
