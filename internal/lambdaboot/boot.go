// Package lambdaboot holds the Lambda cold-start wiring: AWS config, the
// Gemini key from SSM, and the optional archive bucket and history table.
package lambdaboot

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/screen-audit/internal/auth"
	"github.com/fpang/screen-audit/internal/logging"
	"github.com/fpang/screen-audit/internal/s3util"
	"github.com/fpang/screen-audit/internal/store"
)

// DefaultAPIKeyParam is read when SSM_API_KEY_PARAM is unset.
const DefaultAPIKeyParam = "/screen-audit/prod/gemini-api-key"

// AWSClients holds the AWS config and the SSM client.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// InitAWS loads the default AWS config. Fatals on error.
func InitAWS(ctx context.Context) AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// InitArchiveOptional returns an S3 archive for bucket, or nil when bucket
// is empty.
func InitArchiveOptional(cfg aws.Config, bucket string) *s3util.Archive {
	if bucket == "" {
		log.Info().Msg("REPORT_ARCHIVE_BUCKET not set, archiving disabled")
		return nil
	}
	client := s3.NewFromConfig(cfg)
	return s3util.NewArchive(client, s3.NewPresignClient(client), bucket)
}

// InitHistoryOptional returns a DynamoDB history store for table, or nil
// when table is empty.
func InitHistoryOptional(cfg aws.Config, table string) *store.DynamoStore {
	if table == "" {
		log.Info().Msg("REPORT_HISTORY_TABLE not set, history disabled")
		return nil
	}
	return store.NewDynamoStore(dynamodb.NewFromConfig(cfg), table)
}

// LoadGeminiKey returns the key from GEMINI_API_KEY or, failing that, from
// the SSM parameter paramName (DefaultAPIKeyParam when empty). Fatals when
// neither yields a key.
func LoadGeminiKey(ctx context.Context, ssmClient auth.ParameterAPI, paramName string) string {
	if paramName == "" {
		paramName = DefaultAPIKeyParam
	}
	key, err := auth.GetAPIKey(ctx, ssmClient, paramName)
	if err != nil {
		log.Fatal().Err(err).Str("param", paramName).Msg("Gemini API key unavailable")
	}
	return key
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
