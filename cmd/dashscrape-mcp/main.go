// Command dashscrape-mcp exposes the dashscrape HTTP API as MCP tools over stdio.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// apiError mirrors the API error detail.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// scrapeResponse mirrors the API scrape response. Data stays raw so the
// tool can hand the document through unchanged.
type scrapeResponse struct {
	Success     bool            `json:"success"`
	Data        json.RawMessage `json:"data"`
	Markdown    string          `json:"markdown"`
	CacheStatus string          `json:"cache_status"`
	Timing      struct {
		TotalMs int64 `json:"total_ms"`
	} `json:"timing"`
	Error *apiError `json:"error"`
}

// jobStatusResponse mirrors GET /api/v1/jobs/:id.
type jobStatusResponse struct {
	ID     string          `json:"job_id"`
	Status string          `json:"status"`
	URL    string          `json:"url"`
	Result *scrapeResponse `json:"result"`
	Error  *apiError       `json:"error"`
}

// client talks to a running dashscrape server.
type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func main() {
	apiURL := os.Getenv("DASHSCRAPE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("DASHSCRAPE_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "DASHSCRAPE_API_KEY is not set; requests will fail if the server requires auth")
	}

	s := newServer(&client{
		baseURL: strings.TrimRight(apiURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 330 * time.Second},
	})
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func newServer(c *client) *server.MCPServer {
	s := server.NewMCPServer(
		"dashscrape",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	scrapeTool := mcp.NewTool("scrape_dashboard",
		mcp.WithDescription("Load a BI dashboard (e.g. Looker Studio) in a headless browser, click through its tabs and pages, and return its tables, metrics, charts and filters."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The dashboard URL"),
		),
		mcp.WithBoolean("explore_navigation",
			mcp.Description("Click through tabs and pages (default: true). When false only the landing view is extracted."),
		),
		mcp.WithBoolean("persistent",
			mcp.Description("Use the signed-in browser profile for private dashboards"),
		),
		mcp.WithNumber("max_steps",
			mcp.Description("Maximum navigation clicks (1-100)"),
		),
		mcp.WithNumber("timeout",
			mcp.Description("Budget for the whole scrape in milliseconds"),
		),
		mcp.WithString("format",
			mcp.Description("'markdown' (default) returns a readable report, 'json' returns the raw document"),
			mcp.Enum("markdown", "json"),
		),
	)
	s.AddTool(scrapeTool, handleScrapeDashboard(c))

	jobTool := mcp.NewTool("get_scrape_job",
		mcp.WithDescription("Fetch the status and result of an async dashboard scrape started through the HTTP API."),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job id returned by POST /api/v1/scrape/async"),
		),
	)
	s.AddTool(jobTool, handleGetJob(c))

	return s
}

// do sends a request to the API and returns the response body.
func (c *client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func handleScrapeDashboard(c *client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		format := request.GetString("format", "markdown")
		payload := map[string]any{
			"url":    url,
			"format": format,
		}
		args := request.GetArguments()
		if _, ok := args["explore_navigation"]; ok {
			payload["explore_navigation"] = request.GetBool("explore_navigation", true)
		}
		if request.GetBool("persistent", false) {
			payload["persistent"] = true
		}
		if n := request.GetInt("max_steps", 0); n > 0 {
			payload["max_steps"] = n
		}
		if n := request.GetInt("timeout", 0); n > 0 {
			payload["timeout"] = n
		}

		body, err := c.do(ctx, http.MethodPost, "/api/v1/scrape", payload)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		var resp scrapeResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		if !resp.Success {
			return mcp.NewToolResultError(errorText("scrape failed", resp.Error)), nil
		}
		return mcp.NewToolResultText(formatScrape(&resp, format)), nil
	}
}

func handleGetJob(c *client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("job_id")
		if err != nil {
			return mcp.NewToolResultError("job_id is required"), nil
		}

		body, err := c.do(ctx, http.MethodGet, "/api/v1/jobs/"+id, nil)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		var job jobStatusResponse
		if err := json.Unmarshal(body, &job); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse job status: %v", err)), nil
		}
		if job.Error != nil {
			return mcp.NewToolResultError(errorText("job lookup failed", job.Error)), nil
		}

		header := fmt.Sprintf("Job %s: %s (%s)\n", job.ID, job.Status, job.URL)
		switch {
		case job.Result == nil:
			return mcp.NewToolResultText(header), nil
		case !job.Result.Success:
			return mcp.NewToolResultError(header + errorText("scrape failed", job.Result.Error)), nil
		default:
			return mcp.NewToolResultText(header + "\n" + formatScrape(job.Result, "")), nil
		}
	}
}

// formatScrape prefers the markdown report and falls back to indented JSON.
func formatScrape(resp *scrapeResponse, format string) string {
	var sb strings.Builder
	if format != "json" && resp.Markdown != "" {
		sb.WriteString(resp.Markdown)
	} else {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, resp.Data, "", "  "); err != nil {
			pretty.Write(resp.Data)
		}
		sb.Write(pretty.Bytes())
	}
	fmt.Fprintf(&sb, "\n\n---\nTook %d ms", resp.Timing.TotalMs)
	if resp.CacheStatus != "" {
		fmt.Fprintf(&sb, " (cache %s)", resp.CacheStatus)
	}
	return sb.String()
}

func errorText(fallback string, e *apiError) string {
	if e == nil {
		return fallback
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}
