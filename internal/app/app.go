// Package app wires configuration into the services shared by the binaries.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/payment-snap/internal/categorizer"
	"github.com/dvloznov/payment-snap/internal/config"
	"github.com/dvloznov/payment-snap/internal/domain"
	"github.com/dvloznov/payment-snap/internal/events"
	"github.com/dvloznov/payment-snap/internal/extractor"
	"github.com/dvloznov/payment-snap/internal/gcsuploader"
	infraBQ "github.com/dvloznov/payment-snap/internal/infra/bigquery"
	"github.com/dvloznov/payment-snap/internal/infra/postgres"
	"github.com/dvloznov/payment-snap/internal/llm"
	"github.com/dvloznov/payment-snap/internal/logger"
	"github.com/dvloznov/payment-snap/internal/pipeline"
	"github.com/dvloznov/payment-snap/internal/store"
	"github.com/dvloznov/payment-snap/internal/transactions"
)

// Categorization holds the classifier stack and the screenshot pipeline.
// It needs no storage.
type Categorization struct {
	Extractor   *extractor.VisionExtractor
	Categorizer *categorizer.Orchestrator
	Pipeline    *pipeline.PaymentPipeline
}

// NewCategorization builds the Gemini clients, classifiers and pipeline.
// Without an API key the models stay nil: categorization falls back to
// keywords and every extraction fails.
func NewCategorization(ctx context.Context, cfg config.InferenceConfig, log zerolog.Logger) (*Categorization, error) {
	var visionModel, textModel llm.Model
	if cfg.APIKey != "" {
		vision, err := llm.NewGemini(ctx, llm.GeminiConfig{APIKey: cfg.APIKey, Model: cfg.VisionModel, Timeout: cfg.Timeout})
		if err != nil {
			return nil, fmt.Errorf("vision model: %w", err)
		}
		text, err := llm.NewGemini(ctx, llm.GeminiConfig{APIKey: cfg.APIKey, Model: cfg.TextModel, Timeout: cfg.Timeout})
		if err != nil {
			return nil, fmt.Errorf("text model: %w", err)
		}
		visionModel, textModel = vision, text
	} else {
		log.Warn().Msg("GEMINI_API_KEY not set - using keyword categorization, screenshot extraction disabled")
	}

	taxonomy := domain.DefaultTaxonomy

	ai := categorizer.NewAIClassifier(textModel,
		categorizer.AIConfig{APIKey: cfg.APIKey, Model: cfg.TextModel},
		taxonomy, logger.WithComponent(log, logger.ComponentCategorizer))
	orch := categorizer.NewOrchestrator(ai, categorizer.NewKeywordClassifier(taxonomy),
		taxonomy, logger.WithComponent(log, logger.ComponentCategorizer))

	ext := extractor.NewVisionExtractor(visionModel,
		extractor.Config{APIKey: cfg.APIKey, Model: cfg.VisionModel},
		logger.WithComponent(log, logger.ComponentExtractor))

	return &Categorization{
		Extractor:   ext,
		Categorizer: orch,
		Pipeline:    pipeline.NewPaymentPipeline(ext, orch, logger.WithComponent(log, logger.ComponentPipeline)),
	}, nil
}

// OpenStore opens the configured record store. When prepare is set the
// schema is brought up to date first: migrations for Postgres, dataset and
// table creation for BigQuery.
func OpenStore(ctx context.Context, cfg *config.Config, prepare bool, log zerolog.Logger) (store.TransactionRepository, error) {
	log = logger.WithComponent(log, logger.ComponentStore)

	switch cfg.StoreBackend {
	case config.BackendPostgres:
		dsn := cfg.Postgres.DSN()
		if prepare {
			if err := postgres.RunMigrations(dsn); err != nil {
				return nil, fmt.Errorf("run migrations: %w", err)
			}
			log.Info().Msg("Postgres migrations applied")
		}
		return postgres.NewTransactionRepository(ctx, postgres.Config{DSN: dsn, MaxConns: cfg.Postgres.MaxConns})

	case config.BackendBigQuery:
		repo, err := infraBQ.NewTransactionRepository(ctx, infraBQ.Config{
			ProjectID: cfg.BigQuery.Project,
			DatasetID: cfg.BigQuery.Dataset,
			TableID:   cfg.BigQuery.Table,
		})
		if err != nil {
			return nil, err
		}
		if prepare {
			if err := repo.EnsureTable(ctx); err != nil {
				repo.Close()
				return nil, fmt.Errorf("ensure table: %w", err)
			}
			log.Info().Str("dataset", cfg.BigQuery.Dataset).Str("table", cfg.BigQuery.Table).Msg("BigQuery table ready")
		}
		return repo, nil
	}

	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// App is everything a binary needs to create and list transactions.
type App struct {
	*Categorization
	Service *transactions.Service

	closers []func() error
}

// New wires the full application from cfg. Close releases every client it opened.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{}

	cat, err := NewCategorization(ctx, cfg.Inference, log)
	if err != nil {
		return nil, err
	}
	a.Categorization = cat

	repo, err := OpenStore(ctx, cfg, true, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.closers = append(a.closers, repo.Close)

	var blobs gcsuploader.BlobStore = gcsuploader.Noop{}
	if cfg.Blobs.Bucket != "" {
		gcs, err := gcsuploader.NewGCSBlobStore(ctx, gcsuploader.Config{
			Bucket:       cfg.Blobs.Bucket,
			SignedURLTTL: cfg.Blobs.SignedURLTTL,
			PublicURLs:   cfg.Blobs.PublicURLs,
		}, logger.WithComponent(log, logger.ComponentBlobs))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open blob store: %w", err)
		}
		a.closers = append(a.closers, gcs.Close)
		blobs = gcs
	} else {
		log.Warn().Msg("No GCS bucket configured - screenshots will not be stored")
	}

	var publisher events.Publisher = events.Noop{}
	if cfg.AMQP.URL != "" {
		amqp, err := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.Queue,
			logger.WithComponent(log, logger.ComponentEvents))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open event publisher: %w", err)
		}
		a.closers = append(a.closers, amqp.Close)
		publisher = amqp
	}

	a.Service = transactions.NewService(repo, cat.Pipeline, cat.Categorizer, blobs, publisher,
		logger.WithComponent(log, logger.ComponentTransactions))

	return a, nil
}

// Close releases clients in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
