package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used when none is configured.
const DefaultModelName = "gemini-2.5-flash"

// GeminiConfig configures the Gemini client.
type GeminiConfig struct {
	APIKey string
	Model  string

	// Timeout bounds every Generate call. Zero means the caller's context alone.
	Timeout time.Duration
}

// Gemini is the Model implementation backed by the Gemini API.
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGemini creates a Gemini client. The API key must be set; callers decide
// what an unconfigured provider means for them before getting here.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("NewGemini: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModelName
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("NewGemini: create genai client: %w", err)
	}

	return &Gemini{
		client:  client,
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

// Generate implements Model. It makes exactly one GenerateContent call.
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	model := req.Model
	if model == "" {
		model = g.model
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, buildContents(req), buildConfig(model, req))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func buildContents(req Request) []*genai.Content {
	parts := []*genai.Part{
		{Text: req.Prompt},
	}
	if req.Image != nil {
		// The SDK base64-encodes inline data on the wire.
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: req.Image.MIMEType,
				Data:     req.Image.Data,
			},
		})
	}

	return []*genai.Content{
		{
			Role:  "user",
			Parts: parts,
		},
	}
}

// minProThinkingBudget is the smallest budget the pro models accept. They
// cannot turn thinking off.
const minProThinkingBudget = 128

func buildConfig(model string, req Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: req.MaxOutputTokens,
		Temperature:     req.Temperature,
		ThinkingConfig:  thinkingConfig(model),
	}
	// Thinking tokens count against MaxOutputTokens, so a forced budget is
	// added on top of the caller's answer allowance.
	if tc := cfg.ThinkingConfig; tc != nil && cfg.MaxOutputTokens > 0 && *tc.ThinkingBudget > 0 {
		cfg.MaxOutputTokens += *tc.ThinkingBudget
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	return cfg
}

// thinkingConfig keeps thinking as small as model allows. Flash models can
// disable it, pro models only shrink it, and pre-2.5 models reject the field.
func thinkingConfig(model string) *genai.ThinkingConfig {
	name := strings.ToLower(strings.TrimPrefix(model, "models/"))
	switch {
	case !strings.HasPrefix(name, "gemini-") ||
		strings.HasPrefix(name, "gemini-1.") || strings.HasPrefix(name, "gemini-2.0"):
		return nil
	case strings.Contains(name, "-pro"):
		return &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](minProThinkingBudget)}
	default:
		return &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](0)}
	}
}
