package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/huangsam/coronacaster/core"
	"github.com/huangsam/coronacaster/internal/contract"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	mgr     contract.CacheManager
}

// forecastConfig clones the base config and applies the tool arguments.
func (h *toolHandler) forecastConfig(request mcp.CallToolRequest) (*contract.Config, error) {
	cfg := h.baseCfg.Clone()
	err := contract.RevalidateForecast(cfg, contract.ForecastArgs{
		Country: request.GetString("country", ""),
		Model:   request.GetString("model", ""),
		Start:   request.GetString("start", ""),
		End:     request.GetString("end", ""),
		Target:  request.GetString("target_date", ""),
		Prior:   request.GetString("priors", ""),
		Samples: request.GetInt("samples", 0),
	})
	return cfg, err
}

func (h *toolHandler) handleForecast(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := h.forecastConfig(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid forecast parameters: %v", err)), nil
	}
	cfg.DryRun = false

	out, err := core.GetForecastResult(ctx, cfg, h.mgr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("forecast failed: %v", err)), nil
	}

	jsonData, _ := json.MarshalIndent(out, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleResolvePriors(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if strings.TrimSpace(request.GetString("model", "")) == "" {
		return mcp.NewToolResultError("invalid prior parameters: model is required"), nil
	}
	cfg, err := h.forecastConfig(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid prior parameters: %v", err)), nil
	}
	cfg.DryRun = true

	out, err := core.GetForecastResult(ctx, cfg, h.mgr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("prior resolution failed: %v", err)), nil
	}

	jsonData, _ := json.MarshalIndent(out.Priors, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleListCountries(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	countries, err := core.GetCountries(ctx, h.baseCfg.Clone(), h.mgr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading countries failed: %v", err)), nil
	}

	if needle := strings.ToLower(strings.TrimSpace(request.GetString("contains", ""))); needle != "" {
		filtered := countries[:0]
		for _, c := range countries {
			if strings.Contains(strings.ToLower(c), needle) {
				filtered = append(filtered, c)
			}
		}
		countries = filtered
	}

	jsonData, _ := json.MarshalIndent(countries, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}
