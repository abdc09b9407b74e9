package main

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the analyze_screenshot tool over MCP stdio",
	Long: `MCP starts a Model Context Protocol server on stdin/stdout exposing one
tool, analyze_screenshot, which runs the audit on a local PNG or JPEG file.
Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

type analyzeInput struct {
	Path string `json:"path" jsonschema:"path to a PNG or JPEG screenshot of at most 1 MB"`
}

type analyzeOutput struct {
	ReportID string `json:"reportId"`
	Model    string `json:"model,omitempty"`
	Markdown string `json:"markdown"`
}

func runMCP(cmd *cobra.Command, args []string) error {
	analyzer, err := newAnalyzer(cmd.Context())
	if err != nil {
		return err
	}

	server := newMCPServer(analyzer)
	log.Info().Msg("MCP server listening on stdio")
	return server.Run(cmd.Context(), &mcp.StdioTransport{})
}

func newMCPServer(analyzer reportProducer) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "screen-audit", Version: commitHash}, nil)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "analyze_screenshot",
		Description: "Describe a web page screenshot and return a markdown report of likely vulnerabilities, each with the tests that confirm it.",
	}, analyzeScreenshotTool(analyzer))
	return server
}

func analyzeScreenshotTool(analyzer reportProducer) mcp.ToolHandlerFor[analyzeInput, analyzeOutput] {
	return func(ctx context.Context, req *mcp.CallToolRequest, in analyzeInput) (*mcp.CallToolResult, analyzeOutput, error) {
		if in.Path == "" {
			return nil, analyzeOutput{}, fmt.Errorf("path is required")
		}
		report, err := analyzeFile(ctx, analyzer, in.Path)
		if err != nil {
			return nil, analyzeOutput{}, err
		}
		out := analyzeOutput{ReportID: report.ID, Model: report.Model, Markdown: report.Markdown}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: report.Markdown}},
		}, out, nil
	}
}
