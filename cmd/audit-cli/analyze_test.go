package main

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fpang/screen-audit/internal/analysis"
	"github.com/fpang/screen-audit/internal/filehandler"
)

type stubModel struct {
	description string
	report      string
	err         error
	calls       int
}

func (m *stubModel) DescribeImage(_ context.Context, _ []byte, _, _ string) (string, error) {
	m.calls++
	return m.description, m.err
}

func (m *stubModel) GenerateText(_ context.Context, _ string) (string, error) {
	m.calls++
	return m.report, m.err
}

func writePNG(t *testing.T, dir, name string) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write png: %v", err)
	}
	return path
}

func TestAnalyzeFile(t *testing.T) {
	path := writePNG(t, t.TempDir(), "login.png")
	model := &stubModel{description: "A login form.", report: "# Report\n\n- SQL injection"}
	analyzer := analysis.NewAnalyzer(model, analysis.WithModelName("stub"))

	report, err := analyzeFile(context.Background(), analyzer, path)
	if err != nil {
		t.Fatalf("analyzeFile() error = %v", err)
	}
	if report.Markdown != model.report {
		t.Errorf("Markdown = %q, want %q", report.Markdown, model.report)
	}
	if report.Model != "stub" {
		t.Errorf("Model = %q, want stub", report.Model)
	}
	if model.calls != 2 {
		t.Errorf("model calls = %d, want 2", model.calls)
	}
}

func TestAnalyzeFileRejectsUnsupported(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	model := &stubModel{}

	_, err := analyzeFile(context.Background(), analysis.NewAnalyzer(model), path)
	if !errors.Is(err, filehandler.ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
	if model.calls != 0 {
		t.Errorf("model calls = %d, want 0", model.calls)
	}
}

func TestAnalyzeFileUpstreamError(t *testing.T) {
	path := writePNG(t, t.TempDir(), "shot.png")
	model := &stubModel{err: errors.New("connection reset")}

	_, err := analyzeFile(context.Background(), analysis.NewAnalyzer(model), path)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "analysis describe failed") {
		t.Errorf("error = %q, want the failing step named", err)
	}
	if kind, ok := analysis.KindOf(err); !ok || kind != analysis.KindUpstreamUnavailable {
		t.Errorf("KindOf = %v, %v; want upstream_unavailable", kind, ok)
	}
}

func TestFormatReport(t *testing.T) {
	report := &analysis.Report{Markdown: "# Title\n<script>alert(1)</script>"}

	if got := formatReport(report, false); got != report.Markdown {
		t.Errorf("markdown output = %q", got)
	}
	html := formatReport(report, true)
	if !strings.Contains(html, "<h1") {
		t.Errorf("html output missing heading: %q", html)
	}
	if strings.Contains(html, "<script") {
		t.Errorf("html output not sanitized: %q", html)
	}
}

func TestAnalyzeScreenshotTool(t *testing.T) {
	path := writePNG(t, t.TempDir(), "shot.png")
	model := &stubModel{description: "desc", report: "## Findings"}
	handler := analyzeScreenshotTool(analysis.NewAnalyzer(model))

	res, out, err := handler(context.Background(), &mcp.CallToolRequest{}, analyzeInput{Path: path})
	if err != nil {
		t.Fatalf("tool error = %v", err)
	}
	if out.Markdown != "## Findings" || out.ReportID == "" {
		t.Errorf("output = %+v", out)
	}
	if len(res.Content) != 1 {
		t.Fatalf("content parts = %d, want 1", len(res.Content))
	}
	if text, ok := res.Content[0].(*mcp.TextContent); !ok || text.Text != "## Findings" {
		t.Errorf("content = %#v", res.Content[0])
	}

	if _, _, err := handler(context.Background(), &mcp.CallToolRequest{}, analyzeInput{}); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestNewMCPServer(t *testing.T) {
	if newMCPServer(analysis.NewAnalyzer(&stubModel{})) == nil {
		t.Fatal("newMCPServer returned nil")
	}
}
