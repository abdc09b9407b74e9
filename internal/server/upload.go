package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fpang/screen-audit/internal/analysis"
	"github.com/fpang/screen-audit/internal/filehandler"
	"github.com/fpang/screen-audit/internal/markdown"
	"github.com/fpang/screen-audit/internal/store"
)

// multipartOverhead is the allowance on top of the file limit for multipart
// boundaries and part headers.
const multipartOverhead = 64 * 1024

// maxRequestBody bounds the whole upload request body.
const maxRequestBody = filehandler.MaxUploadSize + multipartOverhead

// recordTimeout bounds history and archive writes after the analysis.
const recordTimeout = 5 * time.Second

const (
	msgNoFile           = "no file uploaded: send the screenshot in the \"file\" field"
	msgTooLarge         = "file exceeds the 1 MiB limit"
	msgUnsupported      = "only jpg, jpeg and png images are accepted"
	msgUnavailable      = "the analysis service is unavailable, please try again later"
	msgMalformed        = "the analysis service returned an invalid response, please try again"
	msgInvalidMultipart = "request must be multipart/form-data"
)

// handleUpload validates the uploaded screenshot, runs the analysis and
// returns the report.
//
// Validation order: missing file, size, declared type, content. The first
// failure is returned and no model call is made.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	if err := r.ParseMultipartForm(maxRequestBody); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httpError(w, r, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, msgTooLarge)
			return
		}
		httpError(w, r, http.StatusBadRequest, CodeBadRequest, msgInvalidMultipart, err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		httpError(w, r, http.StatusBadRequest, CodeBadRequest, msgNoFile)
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if err := filehandler.Validate(header.Size, mimeType); err != nil {
		s.validationError(w, r, err)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		httpError(w, r, http.StatusBadRequest, CodeBadRequest, "could not read uploaded file", err.Error())
		return
	}

	img := &filehandler.Image{
		Filename: header.Filename,
		MIMEType: filehandler.NormalizeMIMEType(mimeType),
		Size:     header.Size,
		Data:     data,
	}
	logger.Info().
		Str("filename", img.Filename).
		Str("mime_type", img.MIMEType).
		Int64("size", img.Size).
		Msg("Screenshot received")

	start := time.Now()
	report, err := s.analyzer.ProduceReport(r.Context(), img)
	elapsed := time.Since(start)
	if err != nil {
		s.analysisError(w, r, img, err, elapsed)
		return
	}

	s.metrics.ObserveAnalysis(statusSuccess, img.Size, report.DescribeDuration, report.ReportDuration)
	s.record(r.Context(), img, report, elapsed)

	respondJSON(w, http.StatusOK, uploadResponse{
		TestsDescriptions: report.Markdown,
		ReportHTML:        markdown.Render(report.Markdown),
		Status:            statusSuccess,
		ReportID:          report.ID,
	})
}

func (s *Server) validationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, filehandler.ErrTooLarge):
		httpError(w, r, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, msgTooLarge)
	case errors.Is(err, filehandler.ErrEmpty):
		httpError(w, r, http.StatusBadRequest, CodeBadRequest, msgNoFile)
	default:
		httpError(w, r, http.StatusUnsupportedMediaType, CodeUnsupportedMedia, msgUnsupported)
	}
}

// analysisError maps an orchestrator failure to a response. The upstream
// cause is logged, never returned.
func (s *Server) analysisError(w http.ResponseWriter, r *http.Request, img *filehandler.Image, err error, elapsed time.Duration) {
	var aerr *analysis.Error
	if !errors.As(err, &aerr) {
		s.metrics.ObserveAnalysis(CodeInternal, img.Size, 0, 0)
		httpError(w, r, http.StatusInternalServerError, CodeInternal, "internal error", err.Error())
		return
	}

	switch aerr.Kind {
	case analysis.KindValidation:
		s.validationError(w, r, aerr.Err)
		return
	case analysis.KindUpstreamMalformed:
		s.metrics.ObserveAnalysis(CodeUpstreamMalformed, img.Size, 0, 0)
		s.recordFailure(r.Context(), img, CodeUpstreamMalformed, elapsed)
		httpError(w, r, http.StatusBadGateway, CodeUpstreamMalformed, msgMalformed, err.Error())
	default:
		s.metrics.ObserveAnalysis(CodeUpstreamUnavailable, img.Size, 0, 0)
		s.recordFailure(r.Context(), img, CodeUpstreamUnavailable, elapsed)
		httpError(w, r, http.StatusBadGateway, CodeUpstreamUnavailable, msgUnavailable, err.Error())
	}
}

// record archives and stores a successful analysis. Failures are logged and
// never change the response.
func (s *Server) record(ctx context.Context, img *filehandler.Image, report *analysis.Report, elapsed time.Duration) {
	if s.history == nil && s.archive == nil {
		return
	}
	logger := zerolog.Ctx(ctx)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	createdAt := time.Now()
	rec := &store.ReportRecord{
		ID:         report.ID,
		CreatedAt:  createdAt.Unix(),
		Filename:   img.Filename,
		MIMEType:   img.MIMEType,
		Size:       img.Size,
		Status:     store.StatusSuccess,
		Model:      report.Model,
		DurationMs: elapsed.Milliseconds(),
		Markdown:   report.Markdown,
	}

	if s.archive != nil {
		prefix, err := s.archive.Put(ctx, report.ID, createdAt, img.Data, img.MIMEType, report.Markdown)
		if err != nil {
			logger.Warn().Err(err).Str("reportId", report.ID).Msg("Failed to archive report")
		} else {
			rec.ArchiveKey = prefix
			rec.Markdown = ""
		}
	}

	if s.history != nil {
		if err := s.history.PutReport(ctx, rec); err != nil {
			logger.Warn().Err(err).Str("reportId", report.ID).Msg("Failed to record report history")
		}
	}
}

func (s *Server) recordFailure(ctx context.Context, img *filehandler.Image, code string, elapsed time.Duration) {
	if s.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	rec := &store.ReportRecord{
		ID:         uuid.New().String(),
		Filename:   img.Filename,
		MIMEType:   img.MIMEType,
		Size:       img.Size,
		Status:     store.StatusError,
		ErrorCode:  code,
		DurationMs: elapsed.Milliseconds(),
	}
	if err := s.history.PutReport(ctx, rec); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to record failed analysis")
	}
}
