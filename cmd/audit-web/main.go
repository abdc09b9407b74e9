package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/screen-audit/internal/analysis"
	"github.com/fpang/screen-audit/internal/auth"
	"github.com/fpang/screen-audit/internal/chat"
	"github.com/fpang/screen-audit/internal/config"
	"github.com/fpang/screen-audit/internal/lambdaboot"
	"github.com/fpang/screen-audit/internal/logging"
	"github.com/fpang/screen-audit/internal/metrics"
	"github.com/fpang/screen-audit/internal/ratelimit"
	"github.com/fpang/screen-audit/internal/server"
)

// CLI flags
var (
	portFlag        int
	modelFlag       string
	validateKeyFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "audit-web",
	Short: "Web UI for screenshot security audits",
	Long: `Audit Web starts a web server that accepts a screenshot of a web page,
asks Gemini to describe it, and turns the description into a list of likely
vulnerabilities with the tests that confirm them.

Examples:
  audit-web
  audit-web --port 9090
  audit-web --model gemini-2.5-pro --validate-key`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (default $PORT or 8080)")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Gemini model to use (default $GEMINI_MODEL or "+chat.DefaultModelName+")")
	rootCmd.Flags().BoolVar(&validateKeyFlag, "validate-key", false, "Make a test call at startup to verify the API key")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	initStart := time.Now()
	logging.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if portFlag != 0 {
		cfg.Port = portFlag
	}
	if modelFlag != "" {
		cfg.Model = modelFlag
	}

	ctx := context.Background()
	srvCfg := server.Config{
		AllowedOrigins: cfg.AllowedOrigins,
		BackendURL:     cfg.FrontendBackendURL,
		Version:        commitHash,
		Metrics:        metrics.NewMetrics(),
	}

	var params auth.ParameterAPI
	if cfg.SSMAPIKeyParam != "" || cfg.ArchiveBucket != "" || cfg.HistoryTable != "" {
		clients := lambdaboot.InitAWS(ctx)
		params = clients.SSM
		if archive := lambdaboot.InitArchiveOptional(clients.Config, cfg.ArchiveBucket); archive != nil {
			srvCfg.Archive = archive
		}
		if history := lambdaboot.InitHistoryOptional(clients.Config, cfg.HistoryTable); history != nil {
			srvCfg.History = history
		}
	}

	apiKey, err := auth.GetAPIKey(ctx, params, cfg.SSMAPIKeyParam)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get API key")
	}

	model, err := chat.NewGeminiModel(ctx, apiKey, cfg.Model, chat.WithTimeout(cfg.ModelTimeout))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini model client")
	}
	if validateKeyFlag {
		if err := auth.ValidateAPIKey(ctx, model); err != nil {
			log.Fatal().Err(err).Msg("Invalid API key")
		}
	}
	srvCfg.Analyzer = analysis.NewAnalyzer(model,
		analysis.WithLanguage(cfg.ReportLanguage),
		analysis.WithMaxDimension(cfg.MaxImageDimension),
	)
	if cfg.RateLimitEnabled() {
		limiter := ratelimit.New(cfg.RatePerMinute, cfg.RateBurst)
		if err := limiter.TrustProxies(cfg.TrustedProxies); err != nil {
			log.Fatal().Err(err).Msg("Invalid TRUSTED_PROXIES")
		}
		srvCfg.Limiter = limiter
	}

	app := server.New(srvCfg)
	defer app.Close()

	logging.NewStartupLogger("audit-web").
		Version(commitHash).
		InitDuration(time.Since(initStart)).
		S3Bucket("archive", cfg.ArchiveBucket).
		DynamoTable("history", cfg.HistoryTable).
		SSMParam("apiKey", cfg.SSMAPIKeyParam).
		Feature("rateLimit", cfg.RateLimitEnabled()).
		Feature("trustedProxies", len(cfg.TrustedProxies) > 0).
		Feature("downscale", cfg.MaxImageDimension > 0).
		Config("model", cfg.Model).
		Config("port", strconv.Itoa(cfg.Port)).
		Config("reportLanguage", cfg.ReportLanguage).
		Config("modelTimeout", cfg.ModelTimeout.String()).
		Config("buildTime", buildTime).
		Log()

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("Graceful shutdown incomplete")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Starting web server")
	fmt.Printf("\n  Screen Audit UI: http://localhost:%d\n\n", cfg.Port)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
