package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Platform selects one of the extraction strategies.
type Platform string

const (
	PlatformWooCommerce Platform = "woocommerce"
	PlatformShopify     Platform = "shopify"
	PlatformGeneric     Platform = "generic"
)

// ParsePlatform maps a user-supplied platform name to a Platform.
func ParsePlatform(name string) (Platform, error) {
	switch Platform(strings.ToLower(strings.TrimSpace(name))) {
	case PlatformWooCommerce:
		return PlatformWooCommerce, nil
	case PlatformShopify:
		return PlatformShopify, nil
	case PlatformGeneric:
		return PlatformGeneric, nil
	default:
		return "", fmt.Errorf("unknown platform %q (want woocommerce, shopify, or generic)", name)
	}
}

// Selectors configures the generic strategy. Card, Name and Price are
// required; Category and Image are optional.
type Selectors struct {
	Card     string
	Name     string
	Price    string
	Category string
	Image    string
}

// Config holds extractor configuration.
type Config struct {
	Platform       Platform
	TargetURL      string
	MaxPages       int // 0 means unbounded
	Delay          time.Duration
	Timeout        time.Duration
	Selectors      Selectors
	OutputFile     string
	OutputFormat   string // xlsx, csv, or dual
	CurrencySymbol string
	DedupeMaxSize  int
	UserAgent      string
	MetricsAddr    string
	Verbose        bool
}

// DefaultConfig returns conservative defaults.
func DefaultConfig() *Config {
	return &Config{
		Platform:       PlatformWooCommerce,
		MaxPages:       0,
		Delay:          500 * time.Millisecond,
		Timeout:        20 * time.Second,
		OutputFile:     "catalog.xlsx",
		OutputFormat:   "xlsx",
		CurrencySymbol: "₹",
		DedupeMaxSize:  100000,
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		MetricsAddr:    "",
		Verbose:        false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if _, err := ParsePlatform(string(c.Platform)); err != nil {
		return err
	}

	if c.TargetURL == "" {
		return fmt.Errorf("target URL cannot be empty")
	}
	parsedURL, err := url.Parse(c.TargetURL)
	if err != nil {
		return fmt.Errorf("invalid target URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("target URL must include a host")
	}

	if c.MaxPages < 0 {
		return fmt.Errorf("max pages cannot be negative")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}

	if c.Platform == PlatformGeneric {
		if c.Selectors.Card == "" {
			return fmt.Errorf("generic platform requires a product-card selector")
		}
		if c.Selectors.Name == "" {
			return fmt.Errorf("generic platform requires a name selector")
		}
		if c.Selectors.Price == "" {
			return fmt.Errorf("generic platform requires a price selector")
		}
	}

	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "xlsx" && c.OutputFormat != "csv" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be xlsx, csv, or dual")
	}
	if c.CurrencySymbol == "" {
		return fmt.Errorf("currency symbol cannot be empty")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}

// EnvInt reads an integer environment override.
func EnvInt(key string) (int, bool, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return value, true, nil
}

// EnvString reads a string environment override.
func EnvString(key string) (string, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return "", false
	}
	return raw, true
}
