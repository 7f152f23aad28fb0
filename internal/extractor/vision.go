package extractor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/payment-snap/internal/domain"
	"github.com/dvloznov/payment-snap/internal/llm"
)

const (
	visionMaxOutputTokens = 500
	defaultImageMIMEType  = "image/jpeg"

	visionInstruction = `This is a payment screenshot from GPay, Paytm, PhonePe, or similar payment app. Extract the following information and return as JSON: amount (numeric value only), note/description (payment purpose/note), merchant/payee name, date if visible. If any field is not found, set it to null. Return only valid JSON without markdown formatting.

Use exactly these keys: "amount", "note", "merchant", "date".`
)

// ErrEmptyImage is returned when Extract is called without image bytes.
var ErrEmptyImage = errors.New("no image provided")

// Config configures the vision extractor.
type Config struct {
	// APIKey is the provider credential. Empty fails every extraction
	// with KindProviderUnavailable without contacting the provider.
	APIKey string

	// Model overrides the vision model name.
	Model string
}

// VisionExtractor reads payment fields off a screenshot with a
// vision-capable model.
type VisionExtractor struct {
	model llm.Model
	cfg   Config
	log   zerolog.Logger
}

// NewVisionExtractor creates an extractor backed by model.
func NewVisionExtractor(model llm.Model, cfg Config, log zerolog.Logger) *VisionExtractor {
	return &VisionExtractor{
		model: model,
		cfg:   cfg,
		log:   log,
	}
}

// Extract sends the image to the model once and parses the reply.
//
// On failure the returned info carries Error (and RawContent for malformed
// replies) and err is an *ExtractionError. Callers must not persist a failed
// extraction.
func (e *VisionExtractor) Extract(ctx context.Context, image []byte) (*domain.ExtractedPaymentInfo, error) {
	if len(image) == 0 {
		return &domain.ExtractedPaymentInfo{Error: ErrEmptyImage.Error()}, ErrEmptyImage
	}

	if e.cfg.APIKey == "" || e.model == nil {
		return e.fail(&ExtractionError{
			Kind: KindProviderUnavailable,
			Err:  fmt.Errorf("%w: no API key configured", ErrProviderUnavailable),
		})
	}

	mimeType := DetectImageType(image)
	log := e.log.With().Str("mime_type", mimeType).Int("image_bytes", len(image)).Logger()

	reply, err := e.model.Generate(ctx, llm.Request{
		Model:           e.cfg.Model,
		Prompt:          visionInstruction,
		Image:           &llm.Image{MIMEType: mimeType, Data: image},
		MaxOutputTokens: visionMaxOutputTokens,
		JSON:            true,
	})
	if err != nil {
		if errors.Is(err, llm.ErrEmptyResponse) {
			log.Error().Msg("Vision model returned an empty reply")
			return e.fail(&ExtractionError{Kind: KindMalformedResponse, Err: err})
		}
		log.Error().Err(err).Msg("Error extracting payment info")
		return e.fail(&ExtractionError{Kind: KindProviderUnavailable, Err: err})
	}

	info, err := parsePaymentInfo(reply)
	if err != nil {
		log.Error().Err(err).Str("raw_content", reply).Msg("Failed to parse vision reply")
		return e.fail(&ExtractionError{Kind: KindMalformedResponse, Err: err, RawContent: reply})
	}

	log.Debug().
		Bool("has_amount", info.Amount != nil).
		Bool("has_note", info.Note != nil).
		Bool("has_merchant", info.Merchant != nil).
		Bool("has_date", info.Date != nil).
		Msg("Extracted payment info")

	return info, nil
}

func (e *VisionExtractor) fail(xerr *ExtractionError) (*domain.ExtractedPaymentInfo, error) {
	info := &domain.ExtractedPaymentInfo{RawContent: xerr.RawContent}
	if xerr.Kind == KindMalformedResponse {
		info.Error = "Failed to parse response"
	} else {
		info.Error = xerr.Err.Error()
	}
	return info, xerr
}

// heifBrands maps ISO BMFF major brands to the MIME type Gemini accepts.
// http.DetectContentType does not know HEIF containers.
var heifBrands = map[string]string{
	"heic": "image/heic",
	"heix": "image/heic",
	"heim": "image/heic",
	"heis": "image/heic",
	"hevc": "image/heic",
	"hevx": "image/heic",
	"mif1": "image/heif",
	"msf1": "image/heif",
}

// DetectImageType sniffs the MIME type, falling back to JPEG for anything
// that does not look like an image.
func DetectImageType(data []byte) string {
	if len(data) >= 12 && string(data[4:8]) == "ftyp" {
		if mt, ok := heifBrands[string(data[8:12])]; ok {
			return mt
		}
	}
	mt := http.DetectContentType(data)
	if strings.HasPrefix(mt, "image/") {
		return mt
	}
	return defaultImageMIMEType
}
