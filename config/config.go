package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the research engine and its API server
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address     string   `mapstructure:"address"`
	JWTSecret   string   `mapstructure:"jwt_secret"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

func (s ServerConfig) Validate() error {
	if strings.TrimSpace(s.JWTSecret) == "" {
		return fmt.Errorf("server.jwt_secret is required")
	}
	return nil
}

// LLMConfig describes the chat-completion provider and its credential pool
type LLMConfig struct {
	Type              string        `mapstructure:"type"` // openai-compatible
	BaseURL           string        `mapstructure:"base_url"`
	Keys              []string      `mapstructure:"keys"`
	ChatModel         string        `mapstructure:"chat_model"`
	ReasonerModel     string        `mapstructure:"reasoner_model"`
	MaxTokens         int           `mapstructure:"max_tokens"`
	ReasonerMaxTokens int           `mapstructure:"reasoner_max_tokens"`
	Temperature       float64       `mapstructure:"temperature"`
	Timeout           time.Duration `mapstructure:"timeout"`
	DeepTimeout       time.Duration `mapstructure:"deep_timeout"`
}

func (l LLMConfig) Validate() error {
	if len(l.Keys) == 0 {
		return fmt.Errorf("llm.keys must contain at least one credential")
	}
	seen := make(map[string]struct{}, len(l.Keys))
	for _, k := range l.Keys {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("llm.keys must not contain empty credentials")
		}
		if _, dup := seen[k]; dup {
			return fmt.Errorf("llm.keys must be unique")
		}
		seen[k] = struct{}{}
	}
	if l.ChatModel == "" {
		return fmt.Errorf("llm.chat_model is required")
	}
	return nil
}

// SearchConfig describes the web-search/rerank provider and its credential pool
type SearchConfig struct {
	Provider  string        `mapstructure:"provider"` // bocha, brave
	BaseURL   string        `mapstructure:"base_url"`
	Keys      []string      `mapstructure:"keys"`
	Count     int           `mapstructure:"count"`
	DeepCount int           `mapstructure:"deep_count"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

func (s SearchConfig) Validate() error {
	if len(s.Keys) == 0 {
		return fmt.Errorf("search.keys must contain at least one credential")
	}
	for _, k := range s.Keys {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("search.keys must not contain empty credentials")
		}
	}
	if s.Count <= 0 {
		return fmt.Errorf("search.count must be > 0")
	}
	return nil
}

// EngineConfig holds the orchestration tunables: pacing, boosts, caps.
// Boost constants are configuration rather than hard-coded so deployments can
// tune relative weights without a rebuild.
type EngineConfig struct {
	TopN            int `mapstructure:"top_n"`
	DeepTopN        int `mapstructure:"deep_top_n"`
	MaxHostResults  int `mapstructure:"max_host_results"`
	RerankChunkSize int `mapstructure:"rerank_chunk_size"`

	PacingRateLimited time.Duration `mapstructure:"pacing_rate_limited"`
	PacingRotatable   time.Duration `mapstructure:"pacing_rotatable"`
	LayerGap          time.Duration `mapstructure:"layer_gap"`

	HourBoost     float64            `mapstructure:"hour_boost"`
	DayBoost      float64            `mapstructure:"day_boost"`
	RecencyBoost  float64            `mapstructure:"recency_boost"`
	RecencyWindow time.Duration      `mapstructure:"recency_window"`
	DomainBoosts  map[string]float64 `mapstructure:"domain_boosts"`

	LocalRerankFallback bool `mapstructure:"local_rerank_fallback"`

	EnrichTopDocuments bool          `mapstructure:"enrich_top_documents"`
	EnrichTimeout      time.Duration `mapstructure:"enrich_timeout"`
}

// Normalize applies defaults for unset engine values.
func (e EngineConfig) Normalize() EngineConfig {
	if e.TopN <= 0 {
		e.TopN = 10
	}
	if e.DeepTopN <= 0 {
		e.DeepTopN = 20
	}
	if e.MaxHostResults <= 0 {
		e.MaxHostResults = 3
	}
	if e.RerankChunkSize <= 0 || e.RerankChunkSize > 50 {
		e.RerankChunkSize = 50
	}
	if e.PacingRateLimited <= 0 {
		e.PacingRateLimited = time.Second
	}
	if e.PacingRotatable <= 0 {
		e.PacingRotatable = 500 * time.Millisecond
	}
	if e.LayerGap <= 0 {
		e.LayerGap = 150 * time.Millisecond
	}
	if e.HourBoost == 0 {
		e.HourBoost = 0.20
	}
	if e.DayBoost == 0 {
		e.DayBoost = 0.10
	}
	if e.RecencyBoost == 0 {
		e.RecencyBoost = 0.15
	}
	if e.RecencyWindow <= 0 {
		e.RecencyWindow = 15 * 24 * time.Hour
	}
	if e.DomainBoosts == nil {
		e.DomainBoosts = DefaultDomainBoosts()
	}
	if e.EnrichTimeout <= 0 {
		e.EnrichTimeout = 8 * time.Second
	}
	return e
}

// DefaultDomainBoosts returns the built-in hostname reputation table.
// Matching is longest-suffix, so "gov.uk" covers every department subdomain.
func DefaultDomainBoosts() map[string]float64 {
	return map[string]float64{
		"reuters.com":       0.15,
		"apnews.com":        0.15,
		"bbc.com":           0.12,
		"bbc.co.uk":         0.12,
		"nature.com":        0.15,
		"science.org":       0.15,
		"nih.gov":           0.15,
		"who.int":           0.12,
		"gov.uk":            0.12,
		"europa.eu":         0.10,
		"arxiv.org":         0.10,
		"wikipedia.org":     0.08,
		"ft.com":            0.08,
		"economist.com":     0.08,
		"bloomberg.com":     0.08,
		"stackoverflow.com": 0.06,
		"github.com":        0.06,
	}
}

// TelemetryConfig contains metrics settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	PeriodicLogs bool   `mapstructure:"periodic_logs"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// StorageConfig groups persistence backends
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig holds the conversation store connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN assembles a postgres connection string from the configured fields.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// RedisConfig holds the optional search-layer cache settings
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Pass     string        `mapstructure:"pass"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

func (r RedisConfig) Validate() error {
	if !r.Enabled {
		return nil
	}
	if r.Host == "" || r.Port == "" {
		return fmt.Errorf("storage.redis.host/port required when redis is enabled")
	}
	return nil
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.SetDefault("general.default_timeout", "30s")
	viper.SetDefault("server.address", ":10030")
	viper.SetDefault("llm.type", "openai")
	viper.SetDefault("llm.max_tokens", 4096)
	viper.SetDefault("llm.reasoner_max_tokens", 16384)
	viper.SetDefault("llm.temperature", 0.5)
	viper.SetDefault("llm.timeout", "60s")
	viper.SetDefault("llm.deep_timeout", "120s")
	viper.SetDefault("search.provider", "bocha")
	viper.SetDefault("search.count", 10)
	viper.SetDefault("search.deep_count", 20)
	viper.SetDefault("search.timeout", "20s")
	viper.SetDefault("storage.redis.cache_ttl", "5m")

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("SEEKER")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	config.Engine = config.Engine.Normalize()

	if err := config.Server.Validate(); err != nil {
		panic(err)
	}
	if err := config.LLM.Validate(); err != nil {
		panic(err)
	}
	if err := config.Search.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Postgres.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Redis.Validate(); err != nil {
		panic(err)
	}
	return &config
}
