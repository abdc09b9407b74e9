package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/screen-audit/internal/analysis"
	"github.com/fpang/screen-audit/internal/auth"
	"github.com/fpang/screen-audit/internal/chat"
	"github.com/fpang/screen-audit/internal/config"
	"github.com/fpang/screen-audit/internal/lambdaboot"
	"github.com/fpang/screen-audit/internal/logging"
)

// CLI flags shared by all subcommands
var (
	modelFlag    string
	languageFlag string
)

var rootCmd = &cobra.Command{
	Use:   "audit-cli",
	Short: "Security test reports from web page screenshots",
	Long: `Audit CLI runs the screenshot security audit on local files. Gemini first
describes the screenshot, then turns the description into a markdown report of
likely vulnerabilities and the tests that confirm them.

Examples:
  audit-cli analyze login.png
  audit-cli analyze --html checkout.jpg > report.html
  audit-cli analyze              # opens a file picker
  audit-cli mcp                  # serve the analyze_screenshot tool over stdio`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "Gemini model to use (default $GEMINI_MODEL or "+chat.DefaultModelName+")")
	rootCmd.PersistentFlags().StringVar(&languageFlag, "language", "", "Report language (default $REPORT_LANGUAGE or "+config.DefaultReportLanguage+")")
	rootCmd.AddCommand(analyzeCmd, mcpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newAnalyzer resolves configuration and the API key and returns a ready
// Analyzer.
func newAnalyzer(ctx context.Context) (*analysis.Analyzer, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if modelFlag != "" {
		cfg.Model = modelFlag
	}
	if languageFlag != "" {
		cfg.ReportLanguage = languageFlag
	}

	var params auth.ParameterAPI
	if cfg.APIKey == "" && cfg.SSMAPIKeyParam != "" {
		params = lambdaboot.InitAWS(ctx).SSM
	}
	apiKey, err := auth.GetAPIKey(ctx, params, cfg.SSMAPIKeyParam)
	if err != nil {
		return nil, err
	}

	model, err := chat.NewGeminiModel(ctx, apiKey, cfg.Model, chat.WithTimeout(cfg.ModelTimeout))
	if err != nil {
		return nil, fmt.Errorf("create model client: %w", err)
	}
	log.Debug().Str("model", model.Name()).Str("language", cfg.ReportLanguage).Msg("Analyzer ready")

	return analysis.NewAnalyzer(model,
		analysis.WithLanguage(cfg.ReportLanguage),
		analysis.WithMaxDimension(cfg.MaxImageDimension),
	), nil
}
