// Package main serves the screenshot audit API from AWS Lambda behind API
// Gateway (HTTP API, payload v2).
//
// Endpoints:
//
//	POST /upload            screenshot in, security-test report out
//	GET  /api/reports/{id}  report lookup (requires REPORT_HISTORY_TABLE)
//	GET  /api/health        health check
//	GET  /metrics           Prometheus exposition
//	GET  /env.js, /         embedded browser client
package main

import (
	"context"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/fpang/screen-audit/internal/analysis"
	"github.com/fpang/screen-audit/internal/chat"
	"github.com/fpang/screen-audit/internal/config"
	"github.com/fpang/screen-audit/internal/lambdaboot"
	"github.com/fpang/screen-audit/internal/logging"
	"github.com/fpang/screen-audit/internal/ratelimit"
	"github.com/fpang/screen-audit/internal/server"
)

var handler http.Handler

func init() {
	initStart := time.Now()
	logging.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := context.Background()
	clients := lambdaboot.InitAWS(ctx)
	paramName := cfg.SSMAPIKeyParam
	if paramName == "" {
		paramName = lambdaboot.DefaultAPIKeyParam
	}
	apiKey := lambdaboot.LoadGeminiKey(ctx, clients.SSM, paramName)

	model, err := chat.NewGeminiModel(ctx, apiKey, cfg.Model, chat.WithTimeout(cfg.ModelTimeout))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini model client")
	}

	srvCfg := server.Config{
		Analyzer: analysis.NewAnalyzer(model,
			analysis.WithLanguage(cfg.ReportLanguage),
			analysis.WithMaxDimension(cfg.MaxImageDimension),
		),
		AllowedOrigins: cfg.AllowedOrigins,
		BackendURL:     cfg.FrontendBackendURL,
		Version:        commitHash,
	}
	if archive := lambdaboot.InitArchiveOptional(clients.Config, cfg.ArchiveBucket); archive != nil {
		srvCfg.Archive = archive
	}
	if history := lambdaboot.InitHistoryOptional(clients.Config, cfg.HistoryTable); history != nil {
		srvCfg.History = history
	}
	// Buckets live per execution environment; API Gateway throttling is the
	// global limit. The adapter sets RemoteAddr to the API Gateway source IP,
	// so no forwarded header is trusted here.
	if cfg.RateLimitEnabled() {
		srvCfg.Limiter = ratelimit.New(cfg.RatePerMinute, cfg.RateBurst)
	}

	handler = server.New(srvCfg).Handler()

	lambdaboot.StartupLog("audit-lambda", initStart).
		Version(commitHash).
		S3Bucket("archive", cfg.ArchiveBucket).
		DynamoTable("history", cfg.HistoryTable).
		SSMParam("apiKey", paramName).
		Feature("rateLimit", cfg.RateLimitEnabled()).
		Feature("downscale", cfg.MaxImageDimension > 0).
		Config("model", cfg.Model).
		Config("reportLanguage", cfg.ReportLanguage).
		Config("buildTime", buildTime).
		Log()
}

func main() {
	adapter := httpadapter.NewV2(handler)
	lambda.Start(adapter.ProxyWithContext)
}
