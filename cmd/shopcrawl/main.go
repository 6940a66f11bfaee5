package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shopcrawl/shopcrawl/config"
	"github.com/shopcrawl/shopcrawl/models"
	"github.com/shopcrawl/shopcrawl/pipeline"
	"github.com/shopcrawl/shopcrawl/scraper"
)

func main() {
	defaultCfg := config.DefaultConfig()
	pagesDefault := defaultCfg.MaxPages
	if value, ok, err := config.EnvInt("SHOPCRAWL_PAGES"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SHOPCRAWL_PAGES: %v\n", err)
		os.Exit(1)
	} else if ok {
		pagesDefault = value
	}
	outputDefault := defaultCfg.OutputFile
	if value, ok := config.EnvString("SHOPCRAWL_OUTPUT"); ok {
		outputDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("SHOPCRAWL_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	platform := flag.String("platform", "", "Platform strategy: woocommerce, shopify, or generic")
	targetURL := flag.String("url", "", "Target URL (shop listing, store root, or listing page)")
	maxPages := flag.Int("pages", pagesDefault, "Maximum listing pages to visit (0 = unbounded)")
	delayMs := flag.Int("delay", int(defaultCfg.Delay/time.Millisecond), "Fixed delay between requests (milliseconds)")
	timeoutS := flag.Int("timeout", int(defaultCfg.Timeout/time.Second), "Per-request timeout (seconds)")
	cardSel := flag.String("card-selector", "", "Generic: product-card selector")
	nameSel := flag.String("name-selector", "", "Generic: name selector (scoped to the card)")
	priceSel := flag.String("price-selector", "", "Generic: price selector (scoped to the card)")
	categorySel := flag.String("category-selector", "", "Generic: optional category selector")
	imageSel := flag.String("image-selector", "", "Generic: optional image selector")
	outputFile := flag.String("output", outputDefault, "Output workbook path")
	outputFormat := flag.String("format", defaultCfg.OutputFormat, "Output format: xlsx, csv, or dual")
	currency := flag.String("currency", defaultCfg.CurrencySymbol, "Currency symbol for price normalization")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := defaultCfg
	cfg.Platform = config.Platform(strings.ToLower(*platform))
	cfg.TargetURL = *targetURL
	cfg.MaxPages = *maxPages
	cfg.Delay = time.Duration(*delayMs) * time.Millisecond
	cfg.Timeout = time.Duration(*timeoutS) * time.Second
	cfg.Selectors = config.Selectors{
		Card:     *cardSel,
		Name:     *nameSel,
		Price:    *priceSel,
		Category: *categorySel,
		Image:    *imageSel,
	}
	cfg.OutputFile = *outputFile
	cfg.OutputFormat = strings.ToLower(*outputFormat)
	cfg.CurrencySymbol = *currency
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("starting extraction",
		slog.String("platform", string(cfg.Platform)),
		slog.String("url", cfg.TargetURL),
		slog.Int("pages", cfg.MaxPages),
	)

	metrics := scraper.NewMetrics()
	extractor, err := scraper.New(cfg, metrics)
	if err != nil {
		slog.Error("initialising extractor", slog.Any("error", err))
		os.Exit(1)
	}

	writer, err := createWriter(cfg)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	p, err := pipeline.NewPipeline(writer, cfg)
	if err != nil {
		slog.Error("initialising pipeline", slog.Any("error", err))
		os.Exit(1)
	}

	startTime := time.Now()
	result, err := scraper.Run(ctx, extractor, p)
	if err != nil {
		slog.Error("extraction failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := p.Close(); err != nil {
		slog.Error("writing output failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := writer.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(result, p.GetMetrics(), time.Since(startTime), cfg.OutputFile)
}

func createWriter(cfg *config.Config) (pipeline.OutputWriter, error) {
	switch cfg.OutputFormat {
	case "xlsx":
		return pipeline.NewXLSXWriter(cfg.OutputFile, cfg.CurrencySymbol)
	case "csv":
		return pipeline.NewCSVWriter(cfg.OutputFile)
	case "dual":
		return pipeline.NewDualWriter(cfg.OutputFile, cfg.CurrencySymbol)
	default:
		return nil, fmt.Errorf("unsupported format: %s", cfg.OutputFormat)
	}
}

func printSummary(result *models.ExtractResult, metrics map[string]interface{}, duration time.Duration, outputFile string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Extraction complete")

	totalItems := int64(0)
	if processed, ok := metrics["processed_records"].(int64); ok {
		totalItems = processed
	}

	fmt.Printf("  Total items:   %d\n", totalItems)
	fmt.Printf("  Pages:         %d\n", result.PageCount)
	fmt.Printf("  Requests:      %d\n", result.RequestCount)
	fmt.Printf("  Skipped:       %d\n", result.SkippedCount)
	fmt.Printf("  Errors:        %d\n", result.ErrorCount)
	if len(result.FailedURLs) > 0 {
		fmt.Printf("  Failed URLs:   %d\n", len(result.FailedURLs))
	}
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
	}
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Printf("  Validation:    %v\n", valErrors)
	}
	fmt.Printf("  Duration:      %v\n", duration)
	fmt.Printf("  Output file:   %s\n", outputFile)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
