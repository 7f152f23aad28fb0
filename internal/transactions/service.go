package transactions

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/payment-snap/internal/domain"
	"github.com/dvloznov/payment-snap/internal/events"
	"github.com/dvloznov/payment-snap/internal/extractor"
	"github.com/dvloznov/payment-snap/internal/gcsuploader"
	"github.com/dvloznov/payment-snap/internal/pipeline"
	"github.com/dvloznov/payment-snap/internal/store"
)

// Pagination defaults.
const (
	DefaultPerPage = 50
	MaxPerPage     = 100
)

// ErrNoImage is returned by CreateFromImage when no image bytes are given.
var ErrNoImage = errors.New("no image provided")

// Processor turns a screenshot into a categorized payment.
type Processor interface {
	Process(ctx context.Context, image []byte) (*pipeline.Result, error)
}

// Service creates, lists and deletes transactions.
type Service struct {
	repo        store.TransactionRepository
	processor   Processor
	categorizer pipeline.Categorizer
	blobs       gcsuploader.BlobStore
	publisher   events.Publisher
	log         zerolog.Logger
}

// NewService wires the service. Nil blobs or publisher disable attachments
// and events respectively.
func NewService(
	repo store.TransactionRepository,
	processor Processor,
	categorizer pipeline.Categorizer,
	blobs gcsuploader.BlobStore,
	publisher events.Publisher,
	log zerolog.Logger,
) *Service {
	if blobs == nil {
		blobs = gcsuploader.Noop{}
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Service{
		repo:        repo,
		processor:   processor,
		categorizer: categorizer,
		blobs:       blobs,
		publisher:   publisher,
		log:         log,
	}
}

// CreateInput is a transaction entered as text.
type CreateInput struct {
	Note     string
	Amount   decimal.Decimal
	Merchant string
}

// Create categorizes the note and merchant and stores the transaction.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Transaction, error) {
	category := s.categorizer.Categorize(ctx, domain.NewCategorizationRequest(in.Note, in.Merchant))

	tx := &domain.Transaction{
		Note:     in.Note,
		Amount:   in.Amount,
		Merchant: in.Merchant,
		Category: category,
	}
	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	s.publish(ctx, tx, events.SourceText)
	return tx, nil
}

// ImageResult is the outcome of CreateFromImage.
type ImageResult struct {
	Transaction   *domain.Transaction
	Extracted     *domain.ExtractedPaymentInfo
	AttachmentURL string
}

// CreateFromImage runs the payment pipeline on image, stores the screenshot
// and the resulting transaction. When extraction fails nothing is stored;
// the error comes back unchanged and the result carries the failed
// extraction info.
func (s *Service) CreateFromImage(ctx context.Context, image []byte, contentType string) (*ImageResult, error) {
	if len(image) == 0 {
		return nil, ErrNoImage
	}

	res, err := s.processor.Process(ctx, image)
	if err != nil {
		out := &ImageResult{}
		if res != nil {
			out.Extracted = res.Extracted
		}
		return out, err
	}

	tx := &domain.Transaction{
		ID:       uuid.NewString(),
		Note:     res.Note,
		Amount:   res.Amount,
		Merchant: res.Extracted.MerchantText(),
		Category: res.Category,
	}
	log := s.log.With().Str("transaction_id", tx.ID).Logger()

	if !strings.HasPrefix(contentType, "image/") {
		contentType = extractor.DetectImageType(image)
	}
	key, err := s.blobs.Attach(ctx, tx.ID, image, contentType)
	if err != nil {
		return nil, fmt.Errorf("CreateFromImage: storing screenshot: %w", err)
	}
	tx.AttachmentKey = key

	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			log.Warn().Err(delErr).Str("object", key).Msg("Failed to remove orphaned screenshot")
		}
		return nil, fmt.Errorf("CreateFromImage: %w", err)
	}

	url, err := s.blobs.Resolve(ctx, key)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to resolve screenshot URL")
	}

	s.publish(ctx, tx, events.SourceImage)

	return &ImageResult{
		Transaction:   tx,
		Extracted:     res.Extracted,
		AttachmentURL: url,
	}, nil
}

// Item is a stored transaction with its screenshot URL, if any.
type Item struct {
	*domain.Transaction
	PaymentScreenshotURL *string `json:"payment_screenshot_url"`
}

// Meta describes one page of a listing.
type Meta struct {
	CurrentPage int  `json:"current_page"`
	PerPage     int  `json:"per_page"`
	TotalCount  int  `json:"total_count"`
	TotalPages  int  `json:"total_pages"`
	HasMore     bool `json:"has_more"`
}

// Page is one page of transactions, newest first.
type Page struct {
	Transactions []Item `json:"transactions"`
	Meta         Meta   `json:"meta"`
}

// NormalizePage applies pagination defaults: page below 1 becomes 1, and
// perPage outside 1..MaxPerPage becomes DefaultPerPage.
func NormalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 || perPage > MaxPerPage {
		perPage = DefaultPerPage
	}
	return page, perPage
}

// NewMeta computes page metadata for total items.
func NewMeta(page, perPage, total int) Meta {
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Meta{
		CurrentPage: page,
		PerPage:     perPage,
		TotalCount:  total,
		TotalPages:  totalPages,
		HasMore:     page < totalPages,
	}
}

// List returns one page of transactions.
func (s *Service) List(ctx context.Context, page, perPage int) (*Page, error) {
	page, perPage = NormalizePage(page, perPage)

	total, err := s.repo.CountTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}

	txs, err := s.repo.ListTransactions(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}

	items := make([]Item, 0, len(txs))
	for _, tx := range txs {
		item := Item{Transaction: tx}
		if tx.HasAttachment() {
			url, err := s.blobs.Resolve(ctx, tx.AttachmentKey)
			if err != nil {
				s.log.Warn().Err(err).Str("transaction_id", tx.ID).Msg("Failed to resolve screenshot URL")
			} else if url != "" {
				item.PaymentScreenshotURL = &url
			}
		}
		items = append(items, item)
	}

	return &Page{
		Transactions: items,
		Meta:         NewMeta(page, perPage, total),
	}, nil
}

// Delete removes a transaction and, best effort, its screenshot.
// It returns store.ErrNotFound when id does not exist.
func (s *Service) Delete(ctx context.Context, id string) error {
	tx, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteTransaction(ctx, id); err != nil {
		return err
	}

	if tx.HasAttachment() {
		if err := s.blobs.Delete(ctx, tx.AttachmentKey); err != nil {
			s.log.Warn().Err(err).Str("transaction_id", id).Msg("Failed to delete screenshot")
		}
	}
	return nil
}

func (s *Service) publish(ctx context.Context, tx *domain.Transaction, source string) {
	if err := s.publisher.PublishTransactionCreated(ctx, events.NewTransactionCreated(tx, source)); err != nil {
		s.log.Warn().Err(err).Str("transaction_id", tx.ID).Msg("Failed to publish transaction event")
	}
}
