package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for StockGoat.
type Config struct {
	Fetcher      FetcherConfig       `mapstructure:"fetcher"      yaml:"fetcher"`
	Browser      BrowserConfig       `mapstructure:"browser"      yaml:"browser"`
	Normalize    NormalizeConfig     `mapstructure:"normalize"    yaml:"normalize"`
	Distributors []DistributorConfig `mapstructure:"distributors" yaml:"distributors"`
	Storage      StorageConfig       `mapstructure:"storage"      yaml:"storage"`
	Schedule     ScheduleConfig      `mapstructure:"schedule"     yaml:"schedule"`
	Server       ServerConfig        `mapstructure:"server"       yaml:"server"`
	Logging      LoggingConfig       `mapstructure:"logging"      yaml:"logging"`
	Metrics      MetricsConfig       `mapstructure:"metrics"      yaml:"metrics"`
}

// FetcherConfig controls the resilient fetcher and the HTTP transport.
type FetcherConfig struct {
	MinDelay        time.Duration `mapstructure:"min_delay"         yaml:"min_delay"`
	MaxDelay        time.Duration `mapstructure:"max_delay"         yaml:"max_delay"`
	Timeout         time.Duration `mapstructure:"timeout"           yaml:"timeout"`
	MaxRetries      int           `mapstructure:"max_retries"       yaml:"max_retries"`
	BackoffBase     time.Duration `mapstructure:"backoff_base"      yaml:"backoff_base"`
	UserAgents      []string      `mapstructure:"user_agents"       yaml:"user_agents"`
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
}

// BrowserConfig controls the headless browser transport.
type BrowserConfig struct {
	Stealth     bool          `mapstructure:"stealth"      yaml:"stealth"`
	WindowSize  string        `mapstructure:"window_size"  yaml:"window_size"`
	WaitStable  time.Duration `mapstructure:"wait_stable"  yaml:"wait_stable"`
	ControlURL  string        `mapstructure:"control_url"  yaml:"control_url"`
	UserDataDir string        `mapstructure:"user_data_dir" yaml:"user_data_dir"`
}

// NormalizeConfig controls field normalization.
type NormalizeConfig struct {
	// VATRate is used to derive the ex-VAT price when a page shows one price.
	VATRate float64 `mapstructure:"vat_rate" yaml:"vat_rate"`
}

// DistributorConfig selects and tunes one distributor extractor.
type DistributorConfig struct {
	Name     string   `mapstructure:"name"      yaml:"name"`
	BaseURL  string   `mapstructure:"base_url"  yaml:"base_url"`
	Fetcher  string   `mapstructure:"fetcher"   yaml:"fetcher"` // http, browser
	Enabled  bool     `mapstructure:"enabled"   yaml:"enabled"`
	VATRate  *float64 `mapstructure:"vat_rate"  yaml:"vat_rate"` // nil = use normalize.vat_rate
	MaxPages int      `mapstructure:"max_pages" yaml:"max_pages"`
}

// StorageConfig selects the product store.
type StorageConfig struct {
	Type     string `mapstructure:"type"      yaml:"type"` // memory, mysql, mongodb
	DSN      string `mapstructure:"dsn"       yaml:"dsn"`
	MongoURI string `mapstructure:"mongo_uri" yaml:"mongo_uri"`
	Database string `mapstructure:"database"  yaml:"database"`
}

// ScheduleConfig controls periodic runs in serve mode.
type ScheduleConfig struct {
	Enabled      bool          `mapstructure:"enabled"      yaml:"enabled"`
	Interval     time.Duration `mapstructure:"interval"     yaml:"interval"`
	Distributors []string      `mapstructure:"distributors" yaml:"distributors"`
}

// ServerConfig controls the control API.
type ServerConfig struct {
	Port int `mapstructure:"port" yaml:"port"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// MaxPagesCeiling is the most category pages ever walked for one category.
const MaxPagesCeiling = 50

// DefaultDistributors are the distributors scraped when none are configured.
func DefaultDistributors() []DistributorConfig {
	return []DistributorConfig{
		{Name: "Communica", BaseURL: "https://www.communica.co.za/", Fetcher: "http", Enabled: true, MaxPages: MaxPagesCeiling},
		{Name: "MicroRobotics", BaseURL: "https://www.robotics.org.za/", Fetcher: "browser", Enabled: true, MaxPages: MaxPagesCeiling},
		{Name: "Miro", BaseURL: "https://miro.co.za/", Fetcher: "http", Enabled: true, MaxPages: MaxPagesCeiling},
	}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Fetcher: FetcherConfig{
			MinDelay:    1 * time.Second,
			MaxDelay:    3 * time.Second,
			Timeout:     30 * time.Second,
			MaxRetries:  3,
			BackoffBase: 1 * time.Second,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			},
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    20,
		},
		Browser: BrowserConfig{
			Stealth:    true,
			WindowSize: "1920,1080",
			WaitStable: 300 * time.Millisecond,
		},
		Normalize: NormalizeConfig{
			VATRate: 0.15,
		},
		Distributors: DefaultDistributors(),
		Storage: StorageConfig{
			Type:     "memory",
			Database: "stockgoat",
		},
		Schedule: ScheduleConfig{
			Enabled:  false,
			Interval: 6 * time.Hour,
		},
		Server: ServerConfig{
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Distributor returns the configuration for the named distributor.
func (c *Config) Distributor(name string) (DistributorConfig, bool) {
	for _, d := range c.Distributors {
		if d.Name == name {
			return d, true
		}
	}
	return DistributorConfig{}, false
}

// EnabledDistributors returns the names of all enabled distributors in config order.
func (c *Config) EnabledDistributors() []string {
	var names []string
	for _, d := range c.Distributors {
		if d.Enabled {
			names = append(names, d.Name)
		}
	}
	return names
}

// VATRateFor returns the VAT rate to apply for a distributor.
func (c *Config) VATRateFor(name string) float64 {
	if d, ok := c.Distributor(name); ok && d.VATRate != nil {
		return *d.VATRate
	}
	return c.Normalize.VATRate
}
