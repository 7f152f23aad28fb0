package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/payment-snap/internal/api/middleware"
	"github.com/dvloznov/payment-snap/internal/domain"
	"github.com/dvloznov/payment-snap/internal/logger"
	"github.com/dvloznov/payment-snap/internal/store"
	"github.com/dvloznov/payment-snap/internal/transactions"
)

// maxImageBytes caps the multipart body of create_from_image.
const maxImageBytes = 10 << 20

// TransactionService is the part of transactions.Service the handlers use.
type TransactionService interface {
	Create(ctx context.Context, in transactions.CreateInput) (*domain.Transaction, error)
	CreateFromImage(ctx context.Context, image []byte, contentType string) (*transactions.ImageResult, error)
	List(ctx context.Context, page, perPage int) (*transactions.Page, error)
	Delete(ctx context.Context, id string) error
}

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	svc TransactionService
	log zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(svc TransactionService, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		svc: svc,
		log: log,
	}
}

// Register adds the transaction routes to mux.
func (h *TransactionsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/transactions", h.ListTransactions)
	mux.HandleFunc("POST /api/v1/transactions", h.CreateTransaction)
	mux.HandleFunc("POST /api/v1/transactions/create_from_image", h.CreateFromImage)
	mux.HandleFunc("DELETE /api/v1/transactions/{id}", h.DeleteTransaction)
}

// ListTransactions handles GET /api/v1/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	// Unparseable values become 0 and fall back to the defaults.
	page, _ := strconv.Atoi(query.Get("page"))
	perPage, _ := strconv.Atoi(query.Get("per_page"))

	result, err := h.svc.List(r.Context(), page, perPage)
	if err != nil {
		log := h.logger(r)
		log.Error().Err(err).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

// CreateTransaction handles POST /api/v1/transactions
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Note     string          `json:"note"`
		Amount   decimal.Decimal `json:"amount"`
		Merchant string          `json:"merchant"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tx, err := h.svc.Create(r.Context(), transactions.CreateInput{
		Note:     req.Note,
		Amount:   req.Amount,
		Merchant: req.Merchant,
	})
	if err != nil {
		log := h.logger(r)
		log.Error().Err(err).Msg("Failed to create transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create transaction")
		return
	}

	log := h.logger(r)
	log.Info().
		Str(logger.FieldTransactionID, tx.ID).
		Str(logger.FieldCategory, string(tx.Category)).
		Msg("Transaction created")

	middleware.WriteJSON(w, http.StatusCreated, tx)
}

// CreateFromImage handles POST /api/v1/transactions/create_from_image
// The screenshot is the multipart field "image".
func (h *TransactionsHandler) CreateFromImage(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r)

	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
	image, contentType, err := readImage(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Image too large")
			return
		}
		log.Debug().Err(err).Msg("No image in request")
	}
	if len(image) == 0 {
		middleware.WriteError(w, http.StatusUnprocessableEntity, "No image provided")
		return
	}

	res, err := h.svc.CreateFromImage(r.Context(), image, contentType)
	if err != nil {
		switch {
		case errors.Is(err, transactions.ErrNoImage):
			middleware.WriteError(w, http.StatusUnprocessableEntity, "No image provided")
		case res != nil && res.Extracted != nil && res.Extracted.Error != "":
			log.Warn().Err(err).Msg("Failed to extract payment info")
			middleware.WriteJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error":   "Failed to extract payment info",
				"details": res.Extracted.Error,
			})
		default:
			log.Error().Err(err).Msg("Error processing payment image")
			middleware.WriteJSON(w, http.StatusInternalServerError, map[string]string{
				"error":   "Failed to process payment image",
				"details": err.Error(),
			})
		}
		return
	}

	item := transactions.Item{Transaction: res.Transaction}
	if res.AttachmentURL != "" {
		item.PaymentScreenshotURL = &res.AttachmentURL
	}

	log.Info().
		Str(logger.FieldTransactionID, res.Transaction.ID).
		Str(logger.FieldCategory, string(res.Transaction.Category)).
		Msg("Transaction created from payment screenshot")

	middleware.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"transaction":    item,
		"extracted_info": res.Extracted,
		"message":        "Transaction created successfully from payment screenshot",
	})
}

// DeleteTransaction handles DELETE /api/v1/transactions/{id}
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Transaction ID is required")
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		log := h.logger(r)
		log.Error().Err(err).Str(logger.FieldTransactionID, id).Msg("Failed to delete transaction")
		middleware.WriteError(w, http.StatusUnprocessableEntity, "Failed to delete transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Transaction deleted successfully",
	})
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// NewRouter builds the mux with all routes registered.
func NewRouter(svc TransactionService, log zerolog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	NewTransactionsHandler(svc, log).Register(mux)
	mux.HandleFunc("GET /health", Health)
	return mux
}

// logger returns the request-scoped logger set by middleware.Logger, or the
// handler's own logger outside that middleware.
func (h *TransactionsHandler) logger(r *http.Request) zerolog.Logger {
	if l, ok := r.Context().Value(logger.LoggerKey).(zerolog.Logger); ok {
		return l
	}
	return h.log
}

func readImage(r *http.Request) ([]byte, string, error) {
	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}
	return data, header.Header.Get("Content-Type"), nil
}
