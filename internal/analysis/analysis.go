// Package analysis runs the two-step screenshot audit: the model first
// describes the screenshot, then turns that description into a security-test
// report.
package analysis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/screen-audit/internal/assets"
	"github.com/fpang/screen-audit/internal/chat"
	"github.com/fpang/screen-audit/internal/config"
	"github.com/fpang/screen-audit/internal/filehandler"
)

// Report is the result of one analysis.
type Report struct {
	ID               string
	Description      string
	Markdown         string
	Model            string
	DescribeDuration time.Duration
	ReportDuration   time.Duration
}

// Analyzer sequences the model calls. It holds no per-request state and is
// safe for concurrent use.
type Analyzer struct {
	model        chat.Model
	modelName    string
	language     string
	maxDimension int
}

// Option customizes an Analyzer.
type Option func(*Analyzer)

// WithLanguage sets the natural language the report is written in.
func WithLanguage(language string) Option {
	return func(a *Analyzer) {
		if language != "" {
			a.language = language
		}
	}
}

// WithMaxDimension downscales images whose longest side exceeds px before
// they are sent. Zero disables downscaling.
func WithMaxDimension(px int) Option {
	return func(a *Analyzer) { a.maxDimension = px }
}

// WithModelName records the model id on produced reports.
func WithModelName(name string) Option {
	return func(a *Analyzer) { a.modelName = name }
}

// NewAnalyzer returns an Analyzer backed by model.
func NewAnalyzer(model chat.Model, opts ...Option) *Analyzer {
	a := &Analyzer{
		model:    model,
		language: config.DefaultReportLanguage,
	}
	if named, ok := model.(interface{ Name() string }); ok {
		a.modelName = named.Name()
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ProduceReport validates img, asks the model for a description, then asks
// for the security-test report built from that description. The second call
// is never made when the first fails.
func (a *Analyzer) ProduceReport(ctx context.Context, img *filehandler.Image) (*Report, error) {
	if err := img.Validate(); err != nil {
		return nil, validationError(err)
	}

	reportID := uuid.New().String()
	logger := log.With().Str("reportId", reportID).Logger()

	if img.MIMEType != "image/png" {
		if meta, err := filehandler.InspectEXIF(img.Data); err == nil && meta != nil {
			logger.Info().
				Str("camera_make", meta.CameraMake).
				Str("camera_model", meta.CameraModel).
				Bool("has_date", meta.HasDate).
				Bool("has_gps", meta.HasGPS).
				Msg("Upload carries device EXIF metadata")
		}
	}

	send := img
	if a.maxDimension > 0 {
		resized, err := filehandler.Downscale(img, a.maxDimension)
		if err != nil {
			logger.Warn().Err(err).Msg("Downscale failed, sending original image")
		} else {
			send = resized
		}
	}

	logger.Info().
		Str("mime_type", send.MIMEType).
		Int64("size", send.Size).
		Msg("Requesting screenshot description")

	start := time.Now()
	description, err := a.model.DescribeImage(ctx, send.Data, send.MIMEType, assets.DescribeImagePrompt)
	describeDuration := time.Since(start)
	if err != nil {
		logger.Error().Err(err).Dur("duration", describeDuration).Msg("Describe step failed")
		return nil, upstreamError(StepDescribe, err)
	}
	logger.Debug().
		Int("description_length", len(description)).
		Dur("duration", describeDuration).
		Msg("Screenshot description received")

	prompt, err := assets.RenderReportPrompt(description, a.language)
	if err != nil {
		logger.Error().Err(err).Msg("Report prompt could not be built")
		return nil, err
	}

	start = time.Now()
	markdown, err := a.model.GenerateText(ctx, prompt)
	reportDuration := time.Since(start)
	if err != nil {
		logger.Error().Err(err).Dur("duration", reportDuration).Msg("Report step failed")
		return nil, upstreamError(StepReport, err)
	}
	if strings.TrimSpace(markdown) == "" {
		err := errors.New("model returned an empty report")
		logger.Error().Err(err).Dur("duration", reportDuration).Msg("Report step failed")
		return nil, &Error{Kind: KindUpstreamMalformed, Step: StepReport, Err: err}
	}

	logger.Info().
		Int("report_length", len(markdown)).
		Dur("describe_duration", describeDuration).
		Dur("report_duration", reportDuration).
		Msg("Security report generated")

	return &Report{
		ID:               reportID,
		Description:      description,
		Markdown:         markdown,
		Model:            a.modelName,
		DescribeDuration: describeDuration,
		ReportDuration:   reportDuration,
	}, nil
}
