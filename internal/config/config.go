// Package config loads rival's settings from an optional YAML file, RIVAL_*
// environment variables and the provider credential variables the tools
// around it already use (OPENAI_API_KEY, GOOGLE_API_KEY and so on).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/FranksOps/rival/internal/fault"
	"github.com/FranksOps/rival/internal/freshness"
	"github.com/FranksOps/rival/internal/storage"
)

// Config is the full process configuration.
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	Server     ServerConfig     `mapstructure:"server"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Store      StoreConfig      `mapstructure:"store"`
	Search     SearchConfig     `mapstructure:"search"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Competitor CompetitorConfig `mapstructure:"competitor"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// CORSOrigins lists the browser origins allowed to call the API.
	CORSOrigins    []string      `mapstructure:"cors_origins"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type MetricsConfig struct {
	// Port serves /metrics on its own listener; 0 disables it.
	Port int `mapstructure:"port"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Prefix string `mapstructure:"prefix"`
	// Timeout bounds each backend call.
	Timeout time.Duration `mapstructure:"timeout"`
	// SweepInterval runs the expiry sweeper in serve mode; 0 disables it.
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	SearchWindow     time.Duration `mapstructure:"search_window"`
	CompetitorWindow time.Duration `mapstructure:"competitor_window"`
}

type SearchConfig struct {
	// Provider is google_pse or brave.
	Provider     string        `mapstructure:"provider"`
	GoogleAPIKey string        `mapstructure:"google_api_key"`
	EngineID     string        `mapstructure:"engine_id"`
	BraveAPIKey  string        `mapstructure:"brave_api_key"`
	Endpoint     string        `mapstructure:"endpoint"`
	Timeout      time.Duration `mapstructure:"timeout"`
	// FetchPages analyzes each hit's page instead of its snippet.
	FetchPages bool `mapstructure:"fetch_pages"`
}

// APIKey returns the key of the selected provider.
func (s SearchConfig) APIKey() string {
	if strings.EqualFold(s.Provider, "brave") {
		return s.BraveAPIKey
	}
	return s.GoogleAPIKey
}

type LLMConfig struct {
	// Provider is openai, anthropic or gemini.
	Provider        string        `mapstructure:"provider"`
	Model           string        `mapstructure:"model"`
	BaseURL         string        `mapstructure:"base_url"`
	OpenAIAPIKey    string        `mapstructure:"openai_api_key"`
	AnthropicAPIKey string        `mapstructure:"anthropic_api_key"`
	GeminiAPIKey    string        `mapstructure:"gemini_api_key"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Temperature     float32       `mapstructure:"temperature"`
	Timeout         time.Duration `mapstructure:"timeout"`
	// RPS caps analyzer calls per second across the process; 0 is unlimited.
	RPS             float64 `mapstructure:"rps"`
	MaxContentChars int     `mapstructure:"max_content_chars"`
}

// APIKey returns the key of the selected provider.
func (l LLMConfig) APIKey() string {
	switch strings.ToLower(l.Provider) {
	case "anthropic":
		return l.AnthropicAPIKey
	case "gemini":
		return l.GeminiAPIKey
	default:
		return l.OpenAIAPIKey
	}
}

type FetchConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRedirects int           `mapstructure:"max_redirects"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	RPS          float64       `mapstructure:"rps"`
	Jitter       float64       `mapstructure:"jitter"`
	// Fingerprint is the TLS ClientHello profile: chrome, firefox, safari or go.
	Fingerprint string   `mapstructure:"fingerprint"`
	UserAgents  []string `mapstructure:"user_agents"`
	UAStrategy  string   `mapstructure:"ua_strategy"`
	// ProxyFile lists one proxy URL per line.
	ProxyFile string `mapstructure:"proxy_file"`
}

type CompetitorConfig struct {
	// MaxPages above 1 crawls that many pages of each competitor site.
	MaxPages      int  `mapstructure:"max_pages"`
	MaxDepth      int  `mapstructure:"max_depth"`
	RespectRobots bool `mapstructure:"respect_robots"`
	UseSitemap    bool `mapstructure:"use_sitemap"`
}

type PipelineConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// envAliases binds keys to the unprefixed variable names in common use.
var envAliases = map[string]string{
	"search.google_api_key": "GOOGLE_API_KEY",
	"search.engine_id":      "GOOGLE_SEARCH_ID",
	"search.endpoint":       "GOOGLE_CUSTOM_SEARCH_URL",
	"search.brave_api_key":  "BRAVE_API_KEY",
	"llm.openai_api_key":    "OPENAI_API_KEY",
	"llm.anthropic_api_key": "ANTHROPIC_API_KEY",
	"llm.gemini_api_key":    "GEMINI_API_KEY",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.request_timeout", 5*time.Minute)
	v.SetDefault("metrics.port", 0)

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "rival.db")
	v.SetDefault("store.prefix", "rival")
	v.SetDefault("store.timeout", 5*time.Second)
	v.SetDefault("store.sweep_interval", time.Hour)
	v.SetDefault("store.search_window", freshness.DefaultSearchResultsWindow)
	v.SetDefault("store.competitor_window", freshness.DefaultCompetitorProfilesWindow)

	v.SetDefault("search.provider", "google_pse")
	v.SetDefault("search.timeout", 30*time.Second)
	v.SetDefault("search.fetch_pages", false)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.rps", 2.0)
	v.SetDefault("llm.max_content_chars", 12000)

	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.max_redirects", 10)
	v.SetDefault("fetch.max_body_bytes", 5<<20)
	v.SetDefault("fetch.rps", 2.0)
	v.SetDefault("fetch.jitter", 0.2)
	v.SetDefault("fetch.fingerprint", "chrome")
	v.SetDefault("fetch.ua_strategy", "round_robin")
	v.SetDefault("fetch.user_agents", []string{})
	v.SetDefault("fetch.proxy_file", "")

	v.SetDefault("competitor.max_pages", 1)
	v.SetDefault("competitor.max_depth", 1)
	v.SetDefault("competitor.respect_robots", true)
	v.SetDefault("competitor.use_sitemap", false)

	v.SetDefault("pipeline.concurrency", 4)
}

// Load reads path (if not empty) and the environment. Every key needs a
// default so that AutomaticEnv sees it during Unmarshal. Load does not
// validate; call Validate before wiring components.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("RIVAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, alias := range envAliases {
		envName := "RIVAL_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envName, alias); err != nil {
			return nil, fault.New(fault.KindConfiguration, "config", err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fault.New(fault.KindConfiguration, "config", fmt.Errorf("read %s: %w", path, err))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fault.New(fault.KindConfiguration, "config", fmt.Errorf("decode: %w", err))
	}
	return &cfg, nil
}

// Validate checks the settings needed to collect: credentials for the
// selected search and LLM providers, a known store driver and positive
// windows. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Search.Provider) {
	case "", "google_pse":
		if c.Search.GoogleAPIKey == "" {
			errs = append(errs, errors.New("GOOGLE_API_KEY is required for google_pse search"))
		}
		if c.Search.EngineID == "" {
			errs = append(errs, errors.New("GOOGLE_SEARCH_ID is required for google_pse search"))
		}
	case "brave":
		if c.Search.BraveAPIKey == "" {
			errs = append(errs, errors.New("BRAVE_API_KEY is required for brave search"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown search provider %q", c.Search.Provider))
	}

	switch strings.ToLower(c.LLM.Provider) {
	case "", "openai", "anthropic", "gemini":
		if c.LLM.APIKey() == "" {
			errs = append(errs, fmt.Errorf("an API key is required for llm provider %q", c.LLM.Provider))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown llm provider %q", c.LLM.Provider))
	}

	errs = append(errs, c.validateStore()...)

	if c.Pipeline.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.concurrency must be positive, got %d", c.Pipeline.Concurrency))
	}
	if len(errs) > 0 {
		return fault.New(fault.KindConfiguration, "validate config", errors.Join(errs...))
	}
	return nil
}

// ValidateStore checks only the store settings, for the cache commands.
func (c *Config) ValidateStore() error {
	if errs := c.validateStore(); len(errs) > 0 {
		return fault.New(fault.KindConfiguration, "validate config", errors.Join(errs...))
	}
	return nil
}

func (c *Config) validateStore() []error {
	var errs []error
	switch c.Store.Driver {
	case "memory":
	case "sqlite", "postgres", "redis", "json":
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for the %s driver", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if c.Store.SearchWindow <= 0 || c.Store.CompetitorWindow <= 0 {
		errs = append(errs, errors.New("retention windows must be positive"))
	}
	return errs
}

// Policy returns the freshness policy for the configured windows.
func (c *Config) Policy() freshness.Policy {
	p := freshness.DefaultPolicy()
	p.Windows = map[storage.Class]time.Duration{
		storage.ClassSearchResults:      c.Store.SearchWindow,
		storage.ClassCompetitorProfiles: c.Store.CompetitorWindow,
	}
	return p
}
