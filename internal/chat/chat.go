// Package chat wraps the Gemini generative-content API behind the two request
// shapes the analysis needs: describing an image and generating text from a
// prompt.
package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// Model is the generative-model surface used by the analysis orchestrator.
// Implementations return the text portion of the response, or "" when the
// model produced none.
type Model interface {
	DescribeImage(ctx context.Context, data []byte, mimeType, prompt string) (string, error)
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// GeminiModel issues requests against one Gemini model with a fixed credential.
type GeminiModel struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// Compile-time interface check.
var _ Model = (*GeminiModel)(nil)

// Option customizes a GeminiModel.
type Option func(*options)

type options struct {
	timeout     time.Duration
	httpOptions genai.HTTPOptions
}

// WithTimeout bounds each model call. Zero keeps the transport default.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithBaseURL points the client at a different API endpoint. Tests use it to
// talk to an httptest server.
func WithBaseURL(url string) Option {
	return func(o *options) { o.httpOptions.BaseURL = url }
}

func newClient(ctx context.Context, apiKey string, httpOptions genai.HTTPOptions) (*genai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: httpOptions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// NewGeminiModel builds a Model for modelName using the injected credential.
// An empty modelName selects DefaultModelName.
func NewGeminiModel(ctx context.Context, apiKey, modelName string, opts ...Option) (*GeminiModel, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if modelName == "" {
		modelName = DefaultModelName
	}

	client, err := newClient(ctx, apiKey, o.httpOptions)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("model", modelName).Dur("timeout", o.timeout).Msg("Gemini model client initialized")
	return &GeminiModel{client: client, model: modelName, timeout: o.timeout}, nil
}

// Name returns the model identifier requests are sent to.
func (m *GeminiModel) Name() string {
	return m.model
}

// DescribeImage sends the instruction prompt followed by the inlined image.
func (m *GeminiModel) DescribeImage(ctx context.Context, data []byte, mimeType, prompt string) (string, error) {
	parts := []*genai.Part{
		{Text: prompt},
		{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}},
	}
	log.Debug().
		Str("model", m.model).
		Str("mime_type", mimeType).
		Int("image_bytes", len(data)).
		Int("prompt_length", len(prompt)).
		Msg("Starting Gemini API call for image description")

	return m.generate(ctx, "describe", []*genai.Content{{Role: genai.RoleUser, Parts: parts}})
}

// GenerateText sends a single text prompt.
func (m *GeminiModel) GenerateText(ctx context.Context, prompt string) (string, error) {
	log.Debug().
		Str("model", m.model).
		Int("prompt_length", len(prompt)).
		Msg("Starting Gemini API call for text generation")

	return m.generate(ctx, "generate", genai.Text(prompt))
}

func (m *GeminiModel) generate(ctx context.Context, op string, contents []*genai.Content) (string, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := m.client.Models.GenerateContent(ctx, m.model, contents, nil)
	duration := time.Since(start)
	if err != nil {
		log.Error().Err(err).Str("op", op).Dur("duration", duration).Msg("Failed to generate content")
		return "", classifyError(err)
	}

	text, err := responseText(resp)
	if err != nil {
		log.Warn().Err(err).Str("op", op).Dur("duration", duration).Msg("Unusable response from Gemini")
		return "", err
	}

	log.Debug().
		Str("op", op).
		Int("response_length", len(text)).
		Dur("duration", duration).
		Msg("Gemini API response received")
	return text, nil
}

// responseText extracts the text of a response. A missing response or a
// prompt rejected by safety filters is malformed; a response that simply
// carries no text yields "".
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", &Error{Kind: KindMalformed, Message: "received empty response from Gemini API"}
	}
	if len(resp.Candidates) == 0 && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", &Error{
			Kind:    KindMalformed,
			Message: fmt.Sprintf("prompt blocked: %s", resp.PromptFeedback.BlockReason),
		}
	}
	return resp.Text(), nil
}
