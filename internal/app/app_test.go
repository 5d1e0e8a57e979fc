package app

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/bobmcallan/tally/internal/services/report"
)

// TestNewApp_InitializesAllServices verifies that NewApp creates an App with
// all services, the session and the MCP server initialized and non-nil.
func TestNewApp_InitializesAllServices(t *testing.T) {
	a := newTestApp(t)

	if a.Config == nil {
		t.Error("Config is nil")
	}
	if a.Logger == nil {
		t.Error("Logger is nil")
	}
	if a.Storage == nil {
		t.Error("Storage is nil")
	}
	if a.MCPServer == nil {
		t.Error("MCPServer is nil")
	}
	if a.ExchangeService == nil || a.StatsService == nil || a.HistoryService == nil ||
		a.BreakdownService == nil || a.LedgerService == nil {
		t.Error("a service is nil")
	}
	if a.Session == nil {
		t.Error("Session is nil")
	}
	if a.StartupTime.IsZero() {
		t.Error("StartupTime is zero")
	}
}

// TestNewApp_RegistersAllTools verifies that NewApp registers all expected MCP tools.
func TestNewApp_RegistersAllTools(t *testing.T) {
	a := newTestApp(t)

	c, err := newInProcessClient(t, a.MCPServer)
	if err != nil {
		t.Fatalf("Failed to create in-process client: %v", err)
	}
	defer c.Close()

	result, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}

	registered := make(map[string]bool)
	for _, tool := range result.Tools {
		registered[tool.Name] = true
	}
	for _, name := range []string{"get_version", "compute_stats", "category_breakdown"} {
		if !registered[name] {
			t.Errorf("Expected tool %q to be registered", name)
		}
	}
	if len(result.Tools) != 3 {
		t.Errorf("Expected 3 tools, got %d", len(result.Tools))
	}
}

// TestNewApp_GetVersionToolWorks verifies that the get_version tool works
// through a full App initialization.
func TestNewApp_GetVersionToolWorks(t *testing.T) {
	a := newTestApp(t)

	text := callTool(t, a, "get_version", nil)
	if !strings.Contains(text, "Tally MCP Server") {
		t.Errorf("Expected 'Tally MCP Server' in output, got: %s", text)
	}
	if !strings.Contains(text, common.GetFullVersion()) {
		t.Errorf("Expected full version %q in output, got: %s", common.GetFullVersion(), text)
	}
}

func TestComputeStatsTool(t *testing.T) {
	a := newTestApp(t)
	importTestLedger(t, a)

	text := callTool(t, a, "compute_stats", map[string]interface{}{
		"from": "2024-05-01",
		"to":   "2024-05-31",
	})

	var got struct {
		Income       string `json:"income"`
		Expense      string `json:"expense"`
		CurrencyCode string `json:"currency_code"`
		Balance      string `json:"balance"`
		Count        int    `json:"count"`
	}
	if err := json.Unmarshal([]byte(text), &got); err != nil {
		t.Fatalf("Failed to decode result %q: %v", text, err)
	}

	if got.Income != "1000" {
		t.Errorf("Income = %s, want 1000", got.Income)
	}
	// 150 USD plus 25 EUR at 0.5 EUR per USD.
	if got.Expense != "200" {
		t.Errorf("Expense = %s, want 200", got.Expense)
	}
	if got.Balance != "800" {
		t.Errorf("Balance = %s, want 800", got.Balance)
	}
	if got.CurrencyCode != "USD" {
		t.Errorf("CurrencyCode = %s, want USD", got.CurrencyCode)
	}
	if got.Count != 3 {
		t.Errorf("Count = %d, want 3", got.Count)
	}
}

func TestComputeStatsTool_InvalidDate(t *testing.T) {
	a := newTestApp(t)

	c, err := newInProcessClient(t, a.MCPServer)
	if err != nil {
		t.Fatalf("Failed to create in-process client: %v", err)
	}
	defer c.Close()

	req := mcp.CallToolRequest{}
	req.Params.Name = "compute_stats"
	req.Params.Arguments = map[string]interface{}{"from": "May 1st"}
	result, err := c.CallTool(context.Background(), req)
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if !result.IsError {
		t.Error("Expected an error result for an invalid date")
	}
}

func TestCategoryBreakdownTool(t *testing.T) {
	a := newTestApp(t)
	importTestLedger(t, a)

	text := callTool(t, a, "category_breakdown", map[string]interface{}{"mode": "expense"})

	var got struct {
		Mode   models.BreakdownMode   `json:"mode"`
		Groups []models.CategoryGroup `json:"groups"`
	}
	if err := json.Unmarshal([]byte(text), &got); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if got.Mode != models.ModeExpense {
		t.Errorf("Mode = %s, want expense", got.Mode)
	}
	if len(got.Groups) != 1 {
		t.Fatalf("Expected 1 group, got %d", len(got.Groups))
	}
	food := got.Groups[0]
	if food.Parent.Category.Name != "Food" {
		t.Errorf("Parent = %s, want Food", food.Parent.Category.Name)
	}
	if food.Parent.PercentOfTotalWithChildren.String() != "100" {
		t.Errorf("Food share = %s, want 100", food.Parent.PercentOfTotalWithChildren)
	}
	if len(food.Children) != 1 || food.Children[0].Category.Name != "Restaurants" {
		t.Fatalf("Expected Restaurants as only child, got %+v", food.Children)
	}
	if food.Children[0].PercentOfTotal.String() != "25" {
		t.Errorf("Restaurants share = %s, want 25", food.Children[0].PercentOfTotal)
	}
}

func TestCompleteFilter_SelectsEverything(t *testing.T) {
	a := newTestApp(t)
	importTestLedger(t, a)

	var f report.Filter
	if err := a.CompleteFilter(context.Background(), &f); err != nil {
		t.Fatalf("CompleteFilter failed: %v", err)
	}
	if len(f.Types) != 3 {
		t.Errorf("Expected 3 types, got %d", len(f.Types))
	}
	if len(f.AccountIDs) != 2 {
		t.Errorf("Expected 2 accounts, got %d", len(f.AccountIDs))
	}
	// Three stored categories plus Unspecified.
	if len(f.CategoryIDs) != 4 {
		t.Errorf("Expected 4 categories, got %d", len(f.CategoryIDs))
	}
	if err := f.Validate(); err != nil {
		t.Errorf("Completed filter should validate: %v", err)
	}
}

// TestNewApp_CloseIsIdempotent verifies that calling Close multiple times
// does not panic.
func TestNewApp_CloseIsIdempotent(t *testing.T) {
	a, err := NewApp(writeTestConfig(t))
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}

	a.Close()
	a.Close()
}

// TestNewApp_InvalidConfigReturnsError verifies that an invalid config file
// returns a meaningful error.
func TestNewApp_InvalidConfigReturnsError(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bad.toml")
	os.WriteFile(configPath, []byte("{{{{invalid toml"), 0644)

	_, err := NewApp(configPath)
	if err == nil {
		t.Fatal("Expected error for invalid config content, got nil")
	}
}

// --- test helpers ---

func newTestApp(t *testing.T) *App {
	t.Helper()
	a, err := NewApp(writeTestConfig(t))
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func importTestLedger(t *testing.T, a *App) {
	t.Helper()
	if _, _, err := ImportLedgerFromFile(context.Background(), a.Storage.LedgerStore(), a.Logger, filepath.Join("testdata", "ledger.json")); err != nil {
		t.Fatalf("ImportLedgerFromFile failed: %v", err)
	}
}

// writeTestConfig creates a minimal tally.toml in a temp directory for testing.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	config := `
base_currency = "USD"

[storage]
path = "` + filepath.ToSlash(filepath.Join(dir, "data")) + `"

[aggregation]
workers = 2
lookup_timeout = "1s"

[logging]
level = "error"
outputs = ["console"]
`
	configPath := filepath.Join(dir, "tally.toml")
	if err := os.WriteFile(configPath, []byte(config), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return configPath
}

func callTool(t *testing.T, a *App, name string, args map[string]interface{}) string {
	t.Helper()
	c, err := newInProcessClient(t, a.MCPServer)
	if err != nil {
		t.Fatalf("Failed to create in-process client: %v", err)
	}
	defer c.Close()

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	if args != nil {
		req.Params.Arguments = args
	}
	result, err := c.CallTool(context.Background(), req)
	if err != nil {
		t.Fatalf("%s failed: %v", name, err)
	}
	text := result.Content[0].(mcp.TextContent).Text
	if result.IsError {
		t.Fatalf("%s returned error: %s", name, text)
	}
	return text
}

// newInProcessClient creates an mcp-go in-process client connected to the given
// MCP server. Handles initialization handshake.
func newInProcessClient(t *testing.T, mcpServer *server.MCPServer) (*client.Client, error) {
	t.Helper()

	c, err := client.NewInProcessClient(mcpServer)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		return nil, err
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		c.Close()
		return nil, err
	}

	return c, nil
}
