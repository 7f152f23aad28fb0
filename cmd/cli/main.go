package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/payment-snap/internal/app"
	"github.com/dvloznov/payment-snap/internal/config"
	"github.com/dvloznov/payment-snap/internal/domain"
	"github.com/dvloznov/payment-snap/internal/gcsuploader"
	"github.com/dvloznov/payment-snap/internal/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load(os.Getenv("ENV_FILE"))
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.WithComponent(
		logger.NewWithOptions(os.Stderr, logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat}),
		logger.ComponentCLI,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	switch os.Args[1] {
	case "extract":
		runExtract(ctx, cfg, log)
	case "categorize":
		runCategorize(ctx, cfg, log)
	case "ingest":
		runIngest(ctx, cfg, log)
	case "migrate":
		runMigrate(ctx, cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Payment Snap CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  extract     Extract and categorize a payment screenshot without storing it")
	fmt.Println("  categorize  Categorize a note and merchant")
	fmt.Println("  ingest      Create transactions from every screenshot in a directory")
	fmt.Println("  migrate     Create or migrate the configured record store")
	fmt.Println("  help        Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
	fmt.Println("Configuration is read from the environment and an optional .env file (ENV_FILE overrides the path).")
}

func runExtract(ctx context.Context, cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	file := fs.String("file", "", "Local path or gs:// URI of the screenshot")
	fs.Parse(os.Args[2:])

	if *file == "" {
		log.Fatal().Msg("Error: -file is required")
	}

	image, _, err := readImage(ctx, *file)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read image")
	}

	cat, err := app.NewCategorization(ctx, cfg.Inference, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize inference")
	}

	res, err := cat.Pipeline.Process(ctx, image)
	if err != nil {
		if res != nil && res.Extracted != nil {
			printJSON(res.Extracted)
		}
		log.Fatal().Err(err).Msg("Extraction failed")
	}

	printJSON(map[string]interface{}{
		"note":           res.Note,
		"amount":         res.Amount,
		"category":       res.Category,
		"extracted_info": res.Extracted,
	})
}

func runCategorize(ctx context.Context, cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("categorize", flag.ExitOnError)
	note := fs.String("note", "", "Payment note or description")
	merchant := fs.String("merchant", "", "Merchant or payee")
	fs.Parse(os.Args[2:])

	cat, err := app.NewCategorization(ctx, cfg.Inference, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize inference")
	}

	category := cat.Categorizer.Categorize(ctx, domain.NewCategorizationRequest(*note, *merchant))
	fmt.Println(category)
}

func runIngest(ctx context.Context, cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	dir := fs.String("dir", "", "Directory of payment screenshots")
	workers := fs.Int("workers", 4, "Screenshots processed concurrently")
	fs.Parse(os.Args[2:])

	if *dir == "" {
		log.Fatal().Msg("Error: -dir is required")
	}
	if *workers < 1 {
		*workers = 1
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	files, err := listImages(*dir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list screenshots")
	}
	if len(files) == 0 {
		fmt.Println("No screenshots found.")
		return
	}

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	start := time.Now()
	var created, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*workers)

	for _, path := range files {
		g.Go(func() error {
			fileLog := log.With().Str("file", filepath.Base(path)).Logger()

			image, contentType, err := readImage(gctx, path)
			if err != nil {
				failed.Add(1)
				fileLog.Error().Err(err).Msg("Failed to read screenshot")
				return nil
			}

			res, err := application.Service.CreateFromImage(gctx, image, contentType)
			if err != nil {
				failed.Add(1)
				ev := fileLog.Error().Err(err)
				if res != nil && res.Extracted != nil && res.Extracted.Error != "" {
					ev = ev.Str("details", res.Extracted.Error)
				}
				ev.Msg("Failed to create transaction")
				// Stop scheduling new files once interrupted.
				return gctx.Err()
			}

			created.Add(1)
			fileLog.Info().
				Str(logger.FieldTransactionID, res.Transaction.ID).
				Str(logger.FieldCategory, string(res.Transaction.Category)).
				Str("amount", res.Transaction.Amount.String()).
				Msg("Transaction created")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Ingestion interrupted")
	}

	fmt.Printf("Ingested %d of %d screenshots (%d failed) in %s.\n",
		created.Load(), len(files), failed.Load(), time.Since(start).Round(time.Millisecond))
	if failed.Load() > 0 {
		os.Exit(1)
	}
}

func runMigrate(ctx context.Context, cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	repo, err := app.OpenStore(ctx, cfg, true, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
	defer repo.Close()

	fmt.Printf("Record store %q is up to date.\n", cfg.StoreBackend)
}

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".gif":  true,
	".heic": true,
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// readImage loads a screenshot from disk or GCS and guesses its content type.
func readImage(ctx context.Context, path string) ([]byte, string, error) {
	var (
		data []byte
		name = filepath.Base(path)
		err  error
	)
	if strings.HasPrefix(path, "gs://") {
		name = gcsuploader.FilenameFromGCSURI(path)
		data, err = gcsuploader.FetchFromGCS(ctx, path)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, "", err
	}

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
