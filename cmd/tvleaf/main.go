package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tvleaf/tvleaf/internal/adapter"
	"github.com/tvleaf/tvleaf/internal/catalog"
	"github.com/tvleaf/tvleaf/internal/download"
	"github.com/tvleaf/tvleaf/internal/repository"
	"github.com/tvleaf/tvleaf/internal/store"
	"github.com/tvleaf/tvleaf/internal/thumb"
)

// Version is set at build time via -ldflags
var Version = "dev"

// sweepInterval is how often completed downloads are scanned for missing
// thumbnails.
const sweepInterval = 10 * time.Minute

func main() {
	var showVersion bool
	var searchQuery string
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.StringVar(&searchQuery, "search", "", "query the catalog and print results")
	flag.Parse()

	if showVersion {
		fmt.Printf("tvleaf %s\n", Version)
		return
	}

	if err := run(searchQuery); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(searchQuery string) error {
	cfg, err := adapter.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := adapter.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = adapter.NullLogger()
	}
	slog.SetDefault(logger)

	logger.Info("starting tvleaf", "version", Version)

	if searchQuery != "" {
		return runSearch(cfg, searchQuery, logger)
	}

	st, err := store.NewMediaStore(cfg.Paths.Data, logger)
	if err != nil {
		return fmt.Errorf("failed to open media store: %w", err)
	}
	defer st.Close()

	extractor := adapter.NewFFmpegExtractor(cfg.Thumbnails.FFmpegBinary, logger)
	thumbs, err := thumb.New(extractor, thumb.Options{
		Dir:          cfg.Paths.Thumbnails,
		DiskBudget:   int64(cfg.Thumbnails.DiskBudgetMB) << 20,
		MemoryBudget: int64(cfg.Thumbnails.MemoryBudgetMB) << 20,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create thumbnail cache: %w", err)
	}

	transport := adapter.NewHTTPTransport(
		time.Duration(cfg.Downloads.ProgressIntervalMs)*time.Millisecond, logger)

	manager, err := download.NewManager(st, transport, thumbs, download.Options{
		Dir:          cfg.Paths.Downloads,
		ProbeTimeout: time.Duration(cfg.Downloads.ProbeTimeoutSeconds) * time.Second,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create download manager: %w", err)
	}
	defer manager.Close()

	repo := repository.New(st, manager, thumbs, logger)
	defer repo.Close()

	logger.Info("media repository ready",
		"bookmarks", len(repo.Bookmarks()),
		"continueWatching", len(repo.ContinueWatching()),
		"downloads", len(repo.Downloads()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Backfill thumbnails for downloads completed while capture was failing.
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	if err := manager.SweepThumbnails(ctx); err != nil {
		logger.Debug("thumbnail sweep interrupted", "error", err)
	}

	for {
		select {
		case <-ticker.C:
			if err := manager.SweepThumbnails(ctx); err != nil {
				logger.Debug("thumbnail sweep interrupted", "error", err)
			}
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		}
	}
}

// runSearch queries the catalog once and prints the results.
func runSearch(cfg *adapter.Config, query string, logger *slog.Logger) error {
	client := catalog.NewClient(cfg.Catalog.URL, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	page, err := client.Search(ctx, catalog.Query{Text: query, Size: 25})
	if err != nil {
		return fmt.Errorf("catalog search failed: %w", err)
	}

	fmt.Printf("%d results (showing %d)\n", page.Total, len(page.Shows))
	for _, show := range page.Shows {
		fmt.Printf("  [%s] %s - %s (%s)\n", show.Channel, show.Topic, show.Title, show.FormattedDuration())
	}
	return nil
}
