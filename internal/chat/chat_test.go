package chat

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/genai"
)

// fakeGemini serves generateContent with a canned status and body and keeps
// the last decoded request for inspection.
type fakeGemini struct {
	status int
	body   string
	last   map[string]any
	path   string
	calls  int
}

func (f *fakeGemini) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls++
	f.path = r.URL.Path
	raw, _ := io.ReadAll(r.Body)
	f.last = nil
	_ = json.Unmarshal(raw, &f.last)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.status)
	fmt.Fprint(w, f.body)
}

func textResponse(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": text}},
				},
				"finishReason": "STOP",
			},
		},
	})
	return string(b)
}

func newTestModel(t *testing.T, fake *fakeGemini) *GeminiModel {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	m, err := NewGeminiModel(context.Background(), "test-key", "", WithBaseURL(srv.URL+"/"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return m
}

func TestNewGeminiModelRequiresKey(t *testing.T) {
	if _, err := NewGeminiModel(context.Background(), "", ""); err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestNewGeminiModelDefaultsModelName(t *testing.T) {
	m := newTestModel(t, &fakeGemini{status: http.StatusOK, body: textResponse("ok")})
	if m.Name() != DefaultModelName {
		t.Errorf("expected %q, got %q", DefaultModelName, m.Name())
	}
}

func TestGenerateText(t *testing.T) {
	fake := &fakeGemini{status: http.StatusOK, body: textResponse("### SQLi\nreport")}
	m := newTestModel(t, fake)

	got, err := m.GenerateText(context.Background(), "describe the risks")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "### SQLi\nreport" {
		t.Errorf("unexpected text %q", got)
	}
	if !strings.HasSuffix(fake.path, "models/"+DefaultModelName+":generateContent") {
		t.Errorf("unexpected request path %q", fake.path)
	}
}

func TestDescribeImageSendsPromptAndInlineImage(t *testing.T) {
	fake := &fakeGemini{status: http.StatusOK, body: textResponse("A login form.")}
	m := newTestModel(t, fake)

	img := []byte{0x89, 'P', 'N', 'G'}
	got, err := m.DescribeImage(context.Background(), img, "image/png", "describe it")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "A login form." {
		t.Errorf("unexpected text %q", got)
	}

	body, _ := json.Marshal(fake.last)
	if !strings.Contains(string(body), "describe it") {
		t.Errorf("request body missing prompt: %s", body)
	}
	if !strings.Contains(string(body), base64.StdEncoding.EncodeToString(img)) {
		t.Errorf("request body missing base64 image data: %s", body)
	}
	if !strings.Contains(string(body), "image/png") {
		t.Errorf("request body missing MIME type: %s", body)
	}
}

func TestGenerateTextEmptyCandidatesYieldsEmptyString(t *testing.T) {
	fake := &fakeGemini{status: http.StatusOK, body: `{"candidates":[]}`}
	m := newTestModel(t, fake)

	got, err := m.GenerateText(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty text, got %q", got)
	}
}

func TestGenerateTextBlockedPromptIsMalformed(t *testing.T) {
	fake := &fakeGemini{status: http.StatusOK, body: `{"promptFeedback":{"blockReason":"SAFETY"}}`}
	m := newTestModel(t, fake)

	_, err := m.GenerateText(context.Background(), "prompt")
	var chatErr *Error
	if !errors.As(err, &chatErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if chatErr.Kind != KindMalformed {
		t.Errorf("expected malformed, got %v", chatErr.Kind)
	}
}

func TestGenerateTextServerErrorIsUnavailable(t *testing.T) {
	fake := &fakeGemini{
		status: http.StatusServiceUnavailable,
		body:   `{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`,
	}
	m := newTestModel(t, fake)

	_, err := m.GenerateText(context.Background(), "prompt")
	var chatErr *Error
	if !errors.As(err, &chatErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if chatErr.Kind != KindUnavailable {
		t.Errorf("expected unavailable, got %v", chatErr.Kind)
	}
	if chatErr.Code != 503 {
		t.Errorf("expected code 503, got %d", chatErr.Code)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"server error", genai.APIError{Code: 503}, KindUnavailable},
		{"quota", genai.APIError{Code: 429}, KindUnavailable},
		{"auth", genai.APIError{Code: 401}, KindUnavailable},
		{"bad request", genai.APIError{Code: 400}, KindMalformed},
		{"wrapped", fmt.Errorf("call: %w", genai.APIError{Code: 500}), KindUnavailable},
		{"canceled", context.Canceled, KindUnavailable},
		{"deadline", fmt.Errorf("wrap: %w", context.DeadlineExceeded), KindUnavailable},
		{"decode", errors.New("invalid character '<' looking for beginning of value"), KindMalformed},
		{"unknown", errors.New("boom"), KindUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(tt.err)
			if got.Kind != tt.want {
				t.Errorf("classifyError(%v) kind = %v, want %v", tt.err, got.Kind, tt.want)
			}
			if got.Err == nil {
				t.Error("expected the original cause to be kept")
			}
		})
	}
}
