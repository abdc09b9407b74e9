package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fpang/screen-audit/internal/markdown"
)

// imageURLExpiry is the lifetime of pre-signed screenshot URLs.
const imageURLExpiry = 15 * time.Minute

// reportResponse is the body of GET /api/reports/{id}.
type reportResponse struct {
	ReportID          string `json:"reportId"`
	CreatedAt         string `json:"createdAt"`
	Status            string `json:"status"`
	ErrorCode         string `json:"errorCode,omitempty"`
	Model             string `json:"model,omitempty"`
	TestsDescriptions string `json:"testsDescriptions,omitempty"`
	ReportHTML        string `json:"reportHtml,omitempty"`
	ImageURL          string `json:"imageUrl,omitempty"`
}

// handleGetReport returns a previously produced report from the history.
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		httpError(w, r, http.StatusBadRequest, CodeBadRequest, "invalid report id")
		return
	}
	if s.history == nil {
		httpError(w, r, http.StatusNotFound, CodeNotFound, "report history is not enabled")
		return
	}

	rec, err := s.history.GetReport(r.Context(), id)
	if err != nil {
		httpError(w, r, http.StatusInternalServerError, CodeInternal, "could not load report", err.Error())
		return
	}
	if rec == nil {
		httpError(w, r, http.StatusNotFound, CodeNotFound, "report not found")
		return
	}

	logger := zerolog.Ctx(r.Context())
	md := rec.Markdown
	var imageURL string
	if rec.ArchiveKey != "" && s.archive != nil {
		if md == "" {
			if md, err = s.archive.GetReport(r.Context(), rec.ArchiveKey); err != nil {
				logger.Warn().Err(err).Str("reportId", id).Msg("Failed to read archived report")
			}
		}
		if imageURL, err = s.archive.ImageURL(r.Context(), rec.ArchiveKey, rec.MIMEType, imageURLExpiry); err != nil {
			logger.Warn().Err(err).Str("reportId", id).Msg("Failed to presign archived image")
		}
	}

	respondJSON(w, http.StatusOK, reportResponse{
		ReportID:          id,
		CreatedAt:         time.Unix(rec.CreatedAt, 0).UTC().Format(time.RFC3339),
		Status:            rec.Status,
		ErrorCode:         rec.ErrorCode,
		Model:             rec.Model,
		TestsDescriptions: md,
		ReportHTML:        markdown.Render(md),
		ImageURL:          imageURL,
	})
}
