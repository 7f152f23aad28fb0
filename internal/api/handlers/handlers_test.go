package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/payment-snap/internal/domain"
	"github.com/dvloznov/payment-snap/internal/extractor"
	"github.com/dvloznov/payment-snap/internal/store"
	"github.com/dvloznov/payment-snap/internal/transactions"
)

// MockService is a mock implementation of TransactionService.
type MockService struct {
	CreateFunc          func(ctx context.Context, in transactions.CreateInput) (*domain.Transaction, error)
	CreateFromImageFunc func(ctx context.Context, image []byte, contentType string) (*transactions.ImageResult, error)
	ListFunc            func(ctx context.Context, page, perPage int) (*transactions.Page, error)
	DeleteFunc          func(ctx context.Context, id string) error
}

func (m *MockService) Create(ctx context.Context, in transactions.CreateInput) (*domain.Transaction, error) {
	return m.CreateFunc(ctx, in)
}

func (m *MockService) CreateFromImage(ctx context.Context, image []byte, contentType string) (*transactions.ImageResult, error) {
	return m.CreateFromImageFunc(ctx, image, contentType)
}

func (m *MockService) List(ctx context.Context, page, perPage int) (*transactions.Page, error) {
	return m.ListFunc(ctx, page, perPage)
}

func (m *MockService) Delete(ctx context.Context, id string) error {
	return m.DeleteFunc(ctx, id)
}

func serve(t *testing.T, svc TransactionService, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	NewRouter(svc, zerolog.New(io.Discard)).ServeHTTP(rec, req)

	var body map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("response is not a JSON object: %v (%s)", err, rec.Body.String())
		}
	}
	return rec, body
}

func imageRequest(t *testing.T, field string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, "shot.png")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(data)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions/create_from_image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestListTransactions(t *testing.T) {
	var gotPage, gotPerPage int
	svc := &MockService{
		ListFunc: func(ctx context.Context, page, perPage int) (*transactions.Page, error) {
			gotPage, gotPerPage = page, perPage
			return &transactions.Page{
				Transactions: []transactions.Item{{Transaction: &domain.Transaction{ID: "tx-1", Category: domain.CategoryOther}}},
				Meta:         transactions.NewMeta(2, 10, 11),
			}, nil
		},
	}

	rec, body := serve(t, svc, httptest.NewRequest(http.MethodGet, "/api/v1/transactions?page=2&per_page=10", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if gotPage != 2 || gotPerPage != 10 {
		t.Errorf("List called with (%d, %d)", gotPage, gotPerPage)
	}
	meta := body["meta"].(map[string]any)
	if meta["total_pages"] != float64(2) || meta["has_more"] != false || meta["current_page"] != float64(2) {
		t.Errorf("meta = %v", meta)
	}
	txs := body["transactions"].([]any)
	first := txs[0].(map[string]any)
	if first["id"] != "tx-1" {
		t.Errorf("transactions = %v", txs)
	}
	if v, ok := first["payment_screenshot_url"]; !ok || v != nil {
		t.Errorf("payment_screenshot_url should be present and null, got %v", v)
	}
}

func TestListTransactions_InvalidParamsUseDefaults(t *testing.T) {
	var gotPage, gotPerPage int
	svc := &MockService{
		ListFunc: func(ctx context.Context, page, perPage int) (*transactions.Page, error) {
			gotPage, gotPerPage = page, perPage
			return &transactions.Page{Transactions: []transactions.Item{}}, nil
		},
	}

	serve(t, svc, httptest.NewRequest(http.MethodGet, "/api/v1/transactions?page=abc", nil))

	if gotPage != 0 || gotPerPage != 0 {
		t.Errorf("List called with (%d, %d), want zeros for the service to normalize", gotPage, gotPerPage)
	}
}

func TestCreateTransaction(t *testing.T) {
	var got transactions.CreateInput
	svc := &MockService{
		CreateFunc: func(ctx context.Context, in transactions.CreateInput) (*domain.Transaction, error) {
			got = in
			return &domain.Transaction{ID: "tx-9", Note: in.Note, Amount: in.Amount, Category: domain.CategoryRent}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions",
		strings.NewReader(`{"note":"march rent","amount":"15000.00","merchant":"Landlord"}`))
	rec, body := serve(t, svc, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	if got.Note != "march rent" || got.Merchant != "Landlord" || !got.Amount.Equal(decimal.NewFromInt(15000)) {
		t.Errorf("Create called with %+v", got)
	}
	if body["category"] != "Rent" || body["id"] != "tx-9" {
		t.Errorf("body = %v", body)
	}
}

func TestCreateTransaction_BadBody(t *testing.T) {
	rec, _ := serve(t, &MockService{}, httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader("{")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCreateFromImage(t *testing.T) {
	amount := decimal.NewFromInt(450)
	note, merchant := "lunch", "Cafe X"

	tests := []struct {
		name       string
		req        func(t *testing.T) *http.Request
		result     *transactions.ImageResult
		err        error
		wantStatus int
		wantError  string
		wantDetail string
	}{
		{
			name: "success",
			req:  func(t *testing.T) *http.Request { return imageRequest(t, "image", []byte("png")) },
			result: &transactions.ImageResult{
				Transaction:   &domain.Transaction{ID: "tx-1", Note: "lunch to Cafe X", Amount: amount, Category: domain.CategoryFoodDining},
				Extracted:     &domain.ExtractedPaymentInfo{Amount: &amount, Note: &note, Merchant: &merchant},
				AttachmentURL: "https://storage.googleapis.com/b/screenshots/tx-1.png",
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing image field",
			req:        func(t *testing.T) *http.Request { return imageRequest(t, "", nil) },
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "No image provided",
		},
		{
			name:       "not multipart",
			req:        func(t *testing.T) *http.Request { return httptest.NewRequest(http.MethodPost, "/api/v1/transactions/create_from_image", nil) },
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "No image provided",
		},
		{
			name:       "extraction failure",
			req:        func(t *testing.T) *http.Request { return imageRequest(t, "image", []byte("png")) },
			result:     &transactions.ImageResult{Extracted: &domain.ExtractedPaymentInfo{Error: "Failed to parse response", RawContent: "hello"}},
			err:        &extractor.ExtractionError{Kind: extractor.KindMalformedResponse, Err: errors.New("bad")},
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "Failed to extract payment info",
			wantDetail: "Failed to parse response",
		},
		{
			name:       "storage failure",
			req:        func(t *testing.T) *http.Request { return imageRequest(t, "image", []byte("png")) },
			err:        errors.New("CreateFromImage: db down"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "Failed to process payment image",
			wantDetail: "CreateFromImage: db down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			svc := &MockService{
				CreateFromImageFunc: func(ctx context.Context, image []byte, contentType string) (*transactions.ImageResult, error) {
					called = true
					if string(image) != "png" {
						t.Errorf("image = %q", image)
					}
					return tt.result, tt.err
				},
			}

			rec, body := serve(t, svc, tt.req(t))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%v)", rec.Code, tt.wantStatus, body)
			}
			if tt.wantError != "" && body["error"] != tt.wantError {
				t.Errorf("error = %v, want %q", body["error"], tt.wantError)
			}
			if tt.wantDetail != "" && body["details"] != tt.wantDetail {
				t.Errorf("details = %v, want %q", body["details"], tt.wantDetail)
			}
			if tt.wantError == "No image provided" && called {
				t.Error("service must not be called without an image")
			}

			if tt.wantStatus == http.StatusCreated {
				if body["message"] != "Transaction created successfully from payment screenshot" {
					t.Errorf("message = %v", body["message"])
				}
				tx := body["transaction"].(map[string]any)
				if tx["payment_screenshot_url"] != tt.result.AttachmentURL || tx["category"] != "Food & Dining" {
					t.Errorf("transaction = %v", tx)
				}
				info := body["extracted_info"].(map[string]any)
				if info["merchant"] != "Cafe X" || info["amount"] != float64(450) {
					t.Errorf("extracted_info = %v", info)
				}
			}
		})
	}
}

func TestDeleteTransaction(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKey    string
		wantValue  string
	}{
		{"deleted", nil, http.StatusOK, "message", "Transaction deleted successfully"},
		{"not found", store.ErrNotFound, http.StatusNotFound, "error", "Transaction not found"},
		{"failure", errors.New("boom"), http.StatusUnprocessableEntity, "error", "Failed to delete transaction"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID string
			svc := &MockService{
				DeleteFunc: func(ctx context.Context, id string) error {
					gotID = id
					return tt.err
				},
			}

			rec, body := serve(t, svc, httptest.NewRequest(http.MethodDelete, "/api/v1/transactions/tx-42", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if gotID != "tx-42" {
				t.Errorf("Delete called with %q", gotID)
			}
			if body[tt.wantKey] != tt.wantValue {
				t.Errorf("body = %v", body)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	rec, body := serve(t, &MockService{}, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || body["status"] != "healthy" {
		t.Errorf("health = %d %v", rec.Code, body)
	}
}

func TestRouter_LogsServiceErrors(t *testing.T) {
	fail := errors.New("store down")
	svc := &MockService{
		ListFunc: func(ctx context.Context, page, perPage int) (*transactions.Page, error) {
			return nil, fail
		},
		CreateFunc: func(ctx context.Context, in transactions.CreateInput) (*domain.Transaction, error) {
			return nil, fail
		},
		DeleteFunc: func(ctx context.Context, id string) error {
			return fail
		},
	}

	tests := []struct {
		name       string
		req        *http.Request
		wantStatus int
		wantLog    string
	}{
		{
			name:       "list",
			req:        httptest.NewRequest(http.MethodGet, "/api/v1/transactions", nil),
			wantStatus: http.StatusInternalServerError,
			wantLog:    "Failed to list transactions",
		},
		{
			name:       "create",
			req:        httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(`{"note":"x","amount":"1"}`)),
			wantStatus: http.StatusInternalServerError,
			wantLog:    "Failed to create transaction",
		},
		{
			name:       "delete",
			req:        httptest.NewRequest(http.MethodDelete, "/api/v1/transactions/tx-1", nil),
			wantStatus: http.StatusUnprocessableEntity,
			wantLog:    `"transaction_id":"tx-1"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			rec := httptest.NewRecorder()
			NewRouter(svc, zerolog.New(&logs)).ServeHTTP(rec, tt.req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(logs.String(), tt.wantLog) || !strings.Contains(logs.String(), `"level":"error"`) {
				t.Errorf("log output = %s, want error entry with %s", logs.String(), tt.wantLog)
			}
		})
	}
}
