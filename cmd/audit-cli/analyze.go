package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/ncruces/zenity"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/screen-audit/internal/analysis"
	"github.com/fpang/screen-audit/internal/filehandler"
	"github.com/fpang/screen-audit/internal/markdown"
)

var (
	htmlFlag   bool
	outputFlag string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Generate a security test report for one screenshot",
	Long: `Analyze validates a PNG or JPEG screenshot (1 MB max), sends it to Gemini
and prints the markdown report. Without a file argument a native file picker
is opened.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&htmlFlag, "html", false, "Print sanitized HTML instead of markdown")
	analyzeCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Write the report to a file instead of stdout")
}

// reportProducer is the part of the analyzer the CLI needs.
type reportProducer interface {
	ProduceReport(ctx context.Context, img *filehandler.Image) (*analysis.Report, error)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	path := ""
	if len(args) == 1 {
		path = args[0]
	} else {
		picked, err := pickScreenshot()
		if err != nil {
			return err
		}
		path = picked
	}

	analyzer, err := newAnalyzer(ctx)
	if err != nil {
		return err
	}

	report, err := analyzeFile(ctx, analyzer, path)
	if err != nil {
		return err
	}

	out := formatReport(report, htmlFlag)
	if outputFlag == "" {
		fmt.Println(out)
		return nil
	}
	if err := os.WriteFile(outputFlag, []byte(out+"\n"), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	log.Info().Str("file", outputFlag).Str("reportId", report.ID).Msg("Report written")
	return nil
}

// analyzeFile loads and validates a local screenshot and runs the analysis.
func analyzeFile(ctx context.Context, analyzer reportProducer, path string) (*analysis.Report, error) {
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	img, err := filehandler.LoadLocalImage(path)
	if err != nil {
		return nil, err
	}
	log.Info().Str("file", path).Int64("size", img.Size).Msg("Analyzing screenshot")

	return analyzer.ProduceReport(ctx, img)
}

func formatReport(report *analysis.Report, html bool) string {
	if html {
		return markdown.Render(report.Markdown)
	}
	return report.Markdown
}

// pickScreenshot opens a native file dialog filtered to supported images.
func pickScreenshot() (string, error) {
	path, err := zenity.SelectFile(
		zenity.Title("Select a screenshot"),
		zenity.FileFilters{
			{Name: "Screenshots", Patterns: []string{"*.png", "*.jpg", "*.jpeg"}},
		},
	)
	if err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			return "", errors.New("no file selected")
		}
		return "", fmt.Errorf("file picker failed: %w", err)
	}
	return path, nil
}
