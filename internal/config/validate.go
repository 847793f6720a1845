package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Fetcher.MinDelay < 0 || cfg.Fetcher.MaxDelay < 0 {
		return fmt.Errorf("fetcher delays must be >= 0")
	}
	if cfg.Fetcher.MinDelay > cfg.Fetcher.MaxDelay {
		return fmt.Errorf("fetcher.min_delay (%s) must be <= fetcher.max_delay (%s)", cfg.Fetcher.MinDelay, cfg.Fetcher.MaxDelay)
	}
	if cfg.Fetcher.Timeout <= 0 {
		return fmt.Errorf("fetcher.timeout must be > 0")
	}
	if cfg.Fetcher.MaxRetries < 1 {
		return fmt.Errorf("fetcher.max_retries must be >= 1, got %d", cfg.Fetcher.MaxRetries)
	}
	if cfg.Fetcher.BackoffBase < 0 {
		return fmt.Errorf("fetcher.backoff_base must be >= 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}

	if cfg.Normalize.VATRate < 0 || cfg.Normalize.VATRate >= 1 {
		return fmt.Errorf("normalize.vat_rate must be in [0, 1), got %v", cfg.Normalize.VATRate)
	}

	seen := make(map[string]bool, len(cfg.Distributors))
	for _, d := range cfg.Distributors {
		if d.Name == "" {
			return fmt.Errorf("distributor name must not be empty")
		}
		if seen[d.Name] {
			return fmt.Errorf("distributor %q configured twice", d.Name)
		}
		seen[d.Name] = true
		if err := ValidateURL(d.BaseURL); err != nil {
			return fmt.Errorf("distributor %q: %w", d.Name, err)
		}
		if d.Fetcher != "http" && d.Fetcher != "browser" {
			return fmt.Errorf("distributor %q: fetcher must be 'http' or 'browser', got %q", d.Name, d.Fetcher)
		}
		if d.VATRate != nil && (*d.VATRate < 0 || *d.VATRate >= 1) {
			return fmt.Errorf("distributor %q: vat_rate must be in [0, 1), got %v", d.Name, *d.VATRate)
		}
		if d.MaxPages < 0 || d.MaxPages > MaxPagesCeiling {
			return fmt.Errorf("distributor %q: max_pages must be in [0, %d], got %d", d.Name, MaxPagesCeiling, d.MaxPages)
		}
	}

	switch cfg.Storage.Type {
	case "memory":
	case "mysql":
		if cfg.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for mysql")
		}
	case "mongodb":
		if cfg.Storage.MongoURI == "" {
			return fmt.Errorf("storage.mongo_uri is required for mongodb")
		}
		if cfg.Storage.Database == "" {
			return fmt.Errorf("storage.database is required for mongodb")
		}
	default:
		return fmt.Errorf("storage.type %q is not supported (valid: memory, mysql, mongodb)", cfg.Storage.Type)
	}

	if cfg.Schedule.Enabled && cfg.Schedule.Interval <= 0 {
		return fmt.Errorf("schedule.interval must be > 0 when scheduling is enabled")
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", cfg.Server.Port)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	return nil
}

// ValidateURL checks if a URL string is usable as a distributor base URL.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
