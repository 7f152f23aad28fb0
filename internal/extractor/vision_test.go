package extractor

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dvloznov/payment-snap/internal/llm"
)

// MockModel is a mock implementation of llm.Model for testing.
type MockModel struct {
	GenerateFunc func(ctx context.Context, req llm.Request) (string, error)
	Calls        []llm.Request
}

func (m *MockModel) Generate(ctx context.Context, req llm.Request) (string, error) {
	m.Calls = append(m.Calls, req)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return "", nil
}

func replying(reply string, err error) *MockModel {
	return &MockModel{
		GenerateFunc: func(ctx context.Context, req llm.Request) (string, error) {
			return reply, err
		},
	}
}

// pngHeader is enough for content sniffing to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func newTestExtractor(model llm.Model) *VisionExtractor {
	return NewVisionExtractor(model, Config{APIKey: "test-key", Model: "gemini-test"}, zerolog.New(io.Discard))
}

func TestVisionExtractor_Success(t *testing.T) {
	model := replying("```json\n{\"amount\": 450, \"note\": \"lunch\", \"merchant\": \"Cafe X\", \"date\": null}\n```", nil)
	e := newTestExtractor(model)

	info, err := e.Extract(context.Background(), pngHeader)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if info.Failed() {
		t.Fatalf("info.Error = %q", info.Error)
	}
	if info.Amount == nil || info.Amount.String() != "450" {
		t.Errorf("Amount = %v, want 450", info.Amount)
	}
	if info.NoteText() != "lunch" || info.MerchantText() != "Cafe X" || info.Date != nil {
		t.Errorf("unexpected info %+v", info)
	}

	if len(model.Calls) != 1 {
		t.Fatalf("model called %d times, want 1", len(model.Calls))
	}
	call := model.Calls[0]
	if call.Image == nil || call.Image.MIMEType != "image/png" {
		t.Errorf("Image = %+v, want image/png", call.Image)
	}
	if call.MaxOutputTokens != 500 {
		t.Errorf("MaxOutputTokens = %d, want 500", call.MaxOutputTokens)
	}
	if !call.JSON {
		t.Error("expected JSON response mode")
	}
	if call.Model != "gemini-test" {
		t.Errorf("Model = %q", call.Model)
	}
}

func TestVisionExtractor_MalformedReply(t *testing.T) {
	raw := "Sorry, I can't help with that."
	model := replying(raw, nil)
	e := newTestExtractor(model)

	info, err := e.Extract(context.Background(), pngHeader)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("errors.Is(err, ErrMalformedResponse) = false, err = %v", err)
	}

	var xerr *ExtractionError
	if !errors.As(err, &xerr) || xerr.Kind != KindMalformedResponse {
		t.Fatalf("err = %#v, want malformed ExtractionError", err)
	}
	if xerr.RawContent != raw || info.RawContent != raw {
		t.Errorf("raw content not preserved: err=%q info=%q", xerr.RawContent, info.RawContent)
	}
	if info.Error != "Failed to parse response" {
		t.Errorf("info.Error = %q", info.Error)
	}
	if info.Amount != nil || info.Note != nil {
		t.Error("failed extraction must not carry fields")
	}
}

func TestVisionExtractor_ProviderFailure(t *testing.T) {
	providerErr := errors.New("503 service unavailable")
	model := replying("", providerErr)
	e := newTestExtractor(model)

	info, err := e.Extract(context.Background(), pngHeader)
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("errors.Is(err, ErrProviderUnavailable) = false, err = %v", err)
	}
	if !errors.Is(err, providerErr) {
		t.Errorf("provider error not wrapped: %v", err)
	}
	if !info.Failed() || info.Error != providerErr.Error() {
		t.Errorf("info.Error = %q", info.Error)
	}
	if len(model.Calls) != 1 {
		t.Errorf("model called %d times, want 1 (no retries)", len(model.Calls))
	}
}

func TestVisionExtractor_EmptyReplyIsMalformed(t *testing.T) {
	e := newTestExtractor(replying("", llm.ErrEmptyResponse))

	_, err := e.Extract(context.Background(), pngHeader)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("err = %v, want malformed response", err)
	}
}

func TestVisionExtractor_NoCredential(t *testing.T) {
	model := replying(`{"amount": 1}`, nil)
	e := NewVisionExtractor(model, Config{}, zerolog.New(io.Discard))

	info, err := e.Extract(context.Background(), pngHeader)
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("err = %v, want provider unavailable", err)
	}
	if !info.Failed() {
		t.Error("expected failed info")
	}
	if len(model.Calls) != 0 {
		t.Errorf("model called %d times, want 0", len(model.Calls))
	}
}

func TestVisionExtractor_EmptyImage(t *testing.T) {
	model := replying(`{"amount": 1}`, nil)
	e := newTestExtractor(model)

	if _, err := e.Extract(context.Background(), nil); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("err = %v, want ErrEmptyImage", err)
	}
	if len(model.Calls) != 0 {
		t.Errorf("model called %d times, want 0", len(model.Calls))
	}
}

func TestDetectImageType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"png", pngHeader, "image/png"},
		{"jpeg", []byte("\xFF\xD8\xFF\xE0\x00\x10JFIF"), "image/jpeg"},
		{"gif", []byte("GIF89a"), "image/gif"},
		{"heic", []byte("\x00\x00\x00\x18ftypheic\x00\x00\x00\x00mif1heic"), "image/heic"},
		{"heif", []byte("\x00\x00\x00\x18ftypmif1\x00\x00\x00\x00mif1heic"), "image/heif"},
		{"mp4 is not heif", []byte("\x00\x00\x00\x18ftypisom\x00\x00\x02\x00"), "image/jpeg"},
		{"unknown bytes", []byte("not an image"), "image/jpeg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectImageType(tt.data); got != tt.want {
				t.Errorf("DetectImageType() = %q, want %q", got, tt.want)
			}
		})
	}
}
