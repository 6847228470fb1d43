package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the assistant
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
	Selector  SelectorConfig  `mapstructure:"selector"`
	Download  DownloadConfig  `mapstructure:"download"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Mail      MailConfig      `mapstructure:"mail"`
	Weather   WeatherConfig   `mapstructure:"weather"`
	Docs      DocsConfig      `mapstructure:"docs"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	DataDir   string `mapstructure:"data_dir"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// LLMConfig describes the OpenAI-compatible endpoint used for chat and embeddings.
type LLMConfig struct {
	Provider       string        `mapstructure:"provider"` // openai, ollama
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	ChatModel      string        `mapstructure:"chat_model"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	Temperature    float64       `mapstructure:"temperature"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxToolRounds  int           `mapstructure:"max_tool_rounds"`
}

func (c LLMConfig) Validate() error {
	switch c.Provider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("llm.provider unsupported: %q", c.Provider)
	}
	if strings.TrimSpace(c.ChatModel) == "" {
		return fmt.Errorf("llm.chat_model required")
	}
	if strings.TrimSpace(c.EmbeddingModel) == "" {
		return fmt.Errorf("llm.embedding_model required")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0,2]")
	}
	return nil
}

// WorkflowConfig controls the media acquisition graph.
type WorkflowConfig struct {
	MaxDownloadIterations int           `mapstructure:"max_download_iterations"`
	Markers               MarkersConfig `mapstructure:"markers"`
}

// MarkersConfig lists the literal phrases tools emit and guards look for.
type MarkersConfig struct {
	CandidatesFound string `mapstructure:"candidates_found"`
	SearchDomain    string `mapstructure:"search_domain"`
	DownloadSuccess string `mapstructure:"download_success"`
	SavedPath       string `mapstructure:"saved_path"`
}

func (c WorkflowConfig) Validate() error {
	if c.MaxDownloadIterations <= 0 {
		return fmt.Errorf("workflow.max_download_iterations must be > 0")
	}
	m := c.Markers
	for key, v := range map[string]string{
		"candidates_found": m.CandidatesFound,
		"search_domain":    m.SearchDomain,
		"download_success": m.DownloadSuccess,
		"saved_path":       m.SavedPath,
	} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("workflow.markers.%s required", key)
		}
	}
	return nil
}

// SelectorConfig configures the search surface scraped for candidates.
type SelectorConfig struct {
	SearchURL     string        `mapstructure:"search_url"`
	Cookie        string        `mapstructure:"cookie"`
	UserAgent     string        `mapstructure:"user_agent"`
	Fetcher       string        `mapstructure:"fetcher"` // http, chromedp
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxCandidates int           `mapstructure:"max_candidates"`
	CardSelector  string        `mapstructure:"card_selector"`
	TitleSelector string        `mapstructure:"title_selector"`
}

func (c SelectorConfig) Validate() error {
	if strings.TrimSpace(c.SearchURL) == "" {
		return fmt.Errorf("selector.search_url required")
	}
	switch c.Fetcher {
	case "http", "chromedp":
	default:
		return fmt.Errorf("selector.fetcher must be http or chromedp, got %q", c.Fetcher)
	}
	if c.MaxCandidates <= 0 {
		return fmt.Errorf("selector.max_candidates must be > 0")
	}
	return nil
}

// DownloadConfig configures the yt-dlp backed fetch tool.
type DownloadConfig struct {
	YtDlpBinary  string        `mapstructure:"yt_dlp_binary"`
	OutputDir    string        `mapstructure:"output_dir"`
	MaxDuration  time.Duration `mapstructure:"max_duration"`
	AudioFormat  string        `mapstructure:"audio_format"`
	AudioQuality string        `mapstructure:"audio_quality"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	SQLite     SQLiteConfig     `mapstructure:"sqlite"`
}

// CheckpointConfig selects the session checkpoint backend.
type CheckpointConfig struct {
	Backend string `mapstructure:"backend"` // memory, redis, postgres, sqlite
}

func (s StorageConfig) Validate() error {
	switch s.Checkpoint.Backend {
	case "memory":
		return nil
	case "redis":
		return s.Redis.Validate()
	case "postgres":
		return s.Postgres.Validate()
	case "sqlite":
		if strings.TrimSpace(s.SQLite.Path) == "" {
			return fmt.Errorf("storage.sqlite.path required")
		}
		return nil
	default:
		return fmt.Errorf("storage.checkpoint.backend unsupported: %q", s.Checkpoint.Backend)
	}
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// Addr returns host:port for the redis client.
func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
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

// DSN builds a lib/pq connection string.
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

// SQLiteConfig contains the on-disk checkpoint database location.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// SchedulerConfig controls deferred job execution.
type SchedulerConfig struct {
	Tick time.Duration `mapstructure:"tick"`
}

// MailConfig contains outbound SMTP settings.
type MailConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	SenderName string `mapstructure:"sender_name"`
}

// WeatherConfig contains the weather API credentials.
type WeatherConfig struct {
	Endpoint     string `mapstructure:"endpoint"`
	AccessKey    string `mapstructure:"access_key"`
	DistrictFile string `mapstructure:"district_file"`
}

// DocsConfig controls document ingestion and retrieval.
type DocsConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
	TopK         int `mapstructure:"top_k"`
}

// Normalize applies defaults for unset values.
func (c DocsConfig) Normalize() DocsConfig {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 1500
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = c.ChunkSize / 8
	}
	if c.TopK <= 0 {
		c.TopK = 4
	}
	return c
}

// TelemetryConfig controls trace export. Prometheus metrics are always served.
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.log_format", "console")
	v.SetDefault("general.data_dir", "./data")
	v.SetDefault("server.address", ":10001")
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.chat_model", "gpt-4o-mini")
	v.SetDefault("llm.embedding_model", "text-embedding-3-small")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.max_tool_rounds", 6)
	v.SetDefault("workflow.max_download_iterations", 3)
	v.SetDefault("workflow.markers.candidates_found", "candidate links found")
	v.SetDefault("workflow.markers.search_domain", "https://www.bilibili.com/video/")
	v.SetDefault("workflow.markers.download_success", "all downloads succeeded")
	v.SetDefault("workflow.markers.saved_path", "saved local path:")
	v.SetDefault("selector.search_url", "https://search.bilibili.com/all")
	v.SetDefault("selector.fetcher", "http")
	v.SetDefault("selector.timeout", 15*time.Second)
	v.SetDefault("selector.max_candidates", 15)
	v.SetDefault("selector.card_selector", "div.bili-video-card__info--right")
	v.SetDefault("selector.title_selector", "h3.bili-video-card__info--tit")
	v.SetDefault("download.yt_dlp_binary", "yt-dlp")
	v.SetDefault("download.output_dir", "./data/music")
	v.SetDefault("download.max_duration", 600*time.Second)
	v.SetDefault("download.audio_format", "mp3")
	v.SetDefault("download.audio_quality", "256K")
	v.SetDefault("download.timeout", 10*time.Minute)
	v.SetDefault("storage.checkpoint.backend", "memory")
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("storage.redis.timeout", 5*time.Second)
	v.SetDefault("storage.sqlite.path", "./data/checkpoints.db")
	v.SetDefault("scheduler.tick", time.Second)
	v.SetDefault("mail.port", 465)
	v.SetDefault("weather.endpoint", "https://api.map.baidu.com/weather/v1/")
	v.SetDefault("docs.chunk_size", 1500)
	v.SetDefault("docs.chunk_overlap", 200)
	v.SetDefault("docs.top_k", 4)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.service_name", "hermes")
}

// LoadConfig loads config from file and HERMES_* environment variables.
// A missing config file is not an error when path is empty.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	setDefaults(v)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			exeDir := filepath.Dir(exe)
			v.AddConfigPath(exeDir)
			v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("HERMES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Docs = cfg.Docs.Normalize()
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	for _, validate := range []func() error{
		cfg.LLM.Validate,
		cfg.Workflow.Validate,
		cfg.Selector.Validate,
		cfg.Storage.Validate,
	} {
		if err := validate(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}
