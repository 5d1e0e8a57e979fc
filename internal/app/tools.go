package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/bobmcallan/tally/internal/services/report"
)

// registerTools registers all MCP tools on the App's MCPServer.
func (a *App) registerTools() {
	s := a.MCPServer

	s.AddTool(createGetVersionTool(), handleGetVersion())
	s.AddTool(createComputeStatsTool(), handleComputeStats(a))
	s.AddTool(createCategoryBreakdownTool(), handleCategoryBreakdown(a))
}

// filterOptions are the arguments shared by the report tools.
func filterOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("from",
			mcp.Description("Start date, inclusive (YYYY-MM-DD). Omit for no lower bound."),
		),
		mcp.WithString("to",
			mcp.Description("End date, inclusive (YYYY-MM-DD). Omit for no upper bound."),
		),
		mcp.WithArray("types",
			mcp.WithStringItems(),
			mcp.Description("Transaction types: income, expense, transfer (default: all)"),
		),
		mcp.WithArray("accounts",
			mcp.WithStringItems(),
			mcp.Description("Account IDs to include (default: all accounts)"),
		),
		mcp.WithArray("categories",
			mcp.WithStringItems(),
			mcp.Description("Category IDs to include (default: all categories)"),
		),
		mcp.WithString("currency",
			mcp.Description("ISO currency code totals are reported in (default: base currency)"),
		),
		mcp.WithBoolean("treat_transfers_as_income_expense",
			mcp.Description("Count transfers into and out of the selected accounts as income and expense (default: false)"),
		),
	}
}

// createGetVersionTool returns the get_version tool definition
func createGetVersionTool() mcp.Tool {
	return mcp.NewTool("get_version",
		mcp.WithDescription("Get the Tally server version and status. Use this to verify connectivity."),
	)
}

// createComputeStatsTool returns the compute_stats tool definition
func createComputeStatsTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Compute income, expense and transfer totals for a filtered set of transactions, converted into one currency."),
	}, filterOptions()...)
	return mcp.NewTool("compute_stats", opts...)
}

// createCategoryBreakdownTool returns the category_breakdown tool definition
func createCategoryBreakdownTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Break filtered transactions down by parent category and sub-category with amounts and percentage shares."),
		mcp.WithString("mode",
			mcp.Description("Amount to break down: income, expense or balance (default: expense)"),
		),
	}, filterOptions()...)
	return mcp.NewTool("category_breakdown", opts...)
}

func handleGetVersion() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := fmt.Sprintf("Tally MCP Server\nVersion: %s\nStatus: OK", common.GetFullVersion())
		return textResult(result), nil
	}
}

// statsResult is the compute_stats payload.
type statsResult struct {
	models.Stats
	TotalIncome  string `json:"total_income"`
	TotalExpense string `json:"total_expense"`
	Balance      string `json:"balance"`
	Count        int    `json:"count"`
	Issues       int    `json:"issues"`
}

func handleComputeStats(a *App) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filter, err := filterFromRequest(request)
		if err != nil {
			return errorResult("Error: " + err.Error()), nil
		}

		rep, err := a.runTool(ctx, filter)
		if err != nil {
			a.Logger.Error().Err(err).Msg("compute_stats failed")
			return errorResult(fmt.Sprintf("Stats error: %v", err)), nil
		}

		return jsonResult(statsResult{
			Stats:        rep.Stats,
			TotalIncome:  rep.Stats.TotalIncome().String(),
			TotalExpense: rep.Stats.TotalExpense().String(),
			Balance:      rep.Stats.Balance().String(),
			Count:        rep.Count,
			Issues:       len(rep.Issues),
		})
	}
}

func handleCategoryBreakdown(a *App) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filter, err := filterFromRequest(request)
		if err != nil {
			return errorResult("Error: " + err.Error()), nil
		}
		filter.Mode = models.BreakdownMode(strings.ToLower(request.GetString("mode", "")))

		rep, err := a.runTool(ctx, filter)
		if err != nil {
			a.Logger.Error().Err(err).Msg("category_breakdown failed")
			return errorResult(fmt.Sprintf("Breakdown error: %v", err)), nil
		}

		return jsonResult(map[string]interface{}{
			"mode":     rep.Mode,
			"currency": rep.Currency,
			"groups":   rep.Breakdown,
		})
	}
}

// runTool runs filter in a fresh session so tool calls never disturb the
// REST session's view state.
func (a *App) runTool(ctx context.Context, filter report.Filter) (*models.Report, error) {
	if err := a.CompleteFilter(ctx, &filter); err != nil {
		return nil, err
	}
	return a.NewSession().Run(ctx, filter)
}

func filterFromRequest(request mcp.CallToolRequest) (report.Filter, error) {
	var f report.Filter

	for _, t := range request.GetStringSlice("types", nil) {
		f.Types = append(f.Types, models.TransactionType(strings.ToLower(strings.TrimSpace(t))))
	}

	var err error
	if f.AccountIDs, err = parseIDs(request.GetStringSlice("accounts", nil)); err != nil {
		return f, fmt.Errorf("accounts: %w", err)
	}
	if f.CategoryIDs, err = parseIDs(request.GetStringSlice("categories", nil)); err != nil {
		return f, fmt.Errorf("categories: %w", err)
	}

	if from := request.GetString("from", ""); from != "" {
		d, err := time.Parse("2006-01-02", from)
		if err != nil {
			return f, fmt.Errorf("invalid from date %q", from)
		}
		f.From = &d
	}
	if to := request.GetString("to", ""); to != "" {
		d, err := time.Parse("2006-01-02", to)
		if err != nil {
			return f, fmt.Errorf("invalid to date %q", to)
		}
		end := d.Add(24*time.Hour - time.Nanosecond)
		f.To = &end
	}

	f.Currency = strings.ToUpper(strings.TrimSpace(request.GetString("currency", "")))
	f.TreatTransfersAsIncomeExpense = request.GetBool("treat_transfers_as_income_expense", false)
	return f, nil
}

func parseIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", s)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(message),
		},
		IsError: true,
	}
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return textResult(string(data)), nil
}
