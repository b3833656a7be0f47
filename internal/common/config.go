package common

import (
	"errors"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Session SessionConfig
	Render  RenderConfig
	LLM     LLMConfig
	Watch   WatchConfig
	Log     LogConfig
}

// ServerConfig holds boundary-layer configuration
type ServerConfig struct {
	HTTPAddr       string
	GRPCHealthAddr string
	AllowedOrigins []string
	MaxUploadMB    int64
}

// SessionConfig holds raster page store lifetimes
type SessionConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

// RenderConfig holds poppler rasterization settings
type RenderConfig struct {
	PdftoppmBin  string
	PdfinfoBin   string
	DPI          int
	MaxDimension int
	Workers      int
}

// LLMConfig holds model-provider configuration
type LLMConfig struct {
	Provider      string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	MaxTokens     int
	GeminiAPIKey  string
	GeminiModel   string
	Timeout       time.Duration
}

// WatchConfig holds hot-folder ingestion settings
type WatchConfig struct {
	Dir      string
	Workers  int
	Debounce time.Duration
}

// LogConfig holds slog handler settings
type LogConfig struct {
	Level  string
	Format string
}

// envBindings maps config keys to the environment variables that feed them.
var envBindings = map[string]string{
	"server.http_addr":        "HTTP_ADDR",
	"server.grpc_health_addr": "GRPC_HEALTH_ADDR",
	"server.allowed_origins":  "ALLOWED_ORIGINS",
	"server.max_upload_mb":    "MAX_UPLOAD_MB",
	"session.ttl":             "SESSION_TTL",
	"session.sweep_interval":  "SESSION_SWEEP_INTERVAL",
	"render.pdftoppm_bin":     "PDFTOPPM_BIN",
	"render.pdfinfo_bin":      "PDFINFO_BIN",
	"render.dpi":              "RENDER_DPI",
	"render.max_dimension":    "RENDER_MAX_DIMENSION",
	"render.workers":          "RENDER_WORKERS",
	"llm.provider":            "LLM_PROVIDER",
	"llm.openai_api_key":      "OPENAI_API_KEY",
	"llm.openai_base_url":     "OPENAI_BASE_URL",
	"llm.openai_model":        "OPENAI_MODEL",
	"llm.max_tokens":          "OPENAI_MAX_TOKENS",
	"llm.gemini_api_key":      "GEMINI_API_KEY",
	"llm.gemini_model":        "GEMINI_MODEL",
	"llm.timeout":             "LLM_TIMEOUT",
	"watch.dir":               "WATCH_DIR",
	"watch.workers":           "WATCH_WORKERS",
	"watch.debounce":          "WATCH_DEBOUNCE",
	"log.level":               "LOG_LEVEL",
	"log.format":              "LOG_FORMAT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.grpc_health_addr", ":8081")
	v.SetDefault("server.allowed_origins", "http://localhost:5173")
	v.SetDefault("server.max_upload_mb", 50)
	v.SetDefault("session.ttl", 30*time.Minute)
	v.SetDefault("session.sweep_interval", 5*time.Minute)
	v.SetDefault("render.pdftoppm_bin", "pdftoppm")
	v.SetDefault("render.pdfinfo_bin", "pdfinfo")
	v.SetDefault("render.dpi", 150)
	v.SetDefault("render.max_dimension", 2048)
	v.SetDefault("render.workers", 4)
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.openai_base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.openai_model", "gpt-4o")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.gemini_model", "gemini-2.5-flash")
	v.SetDefault("llm.timeout", 5*time.Minute)
	v.SetDefault("watch.workers", 2)
	v.SetDefault("watch.debounce", 500*time.Millisecond)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadConfig loads configuration from a .env file (if present), the environment,
// and an optional config file. Environment variables win over the file.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("config.dotenv_unreadable", "error", err)
	}

	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, NewAppError("CONFIG_ERROR", "bind "+env, err)
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, NewAppError("CONFIG_ERROR", "read config file "+path, err)
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:       v.GetString("server.http_addr"),
			GRPCHealthAddr: v.GetString("server.grpc_health_addr"),
			AllowedOrigins: splitList(v.GetString("server.allowed_origins")),
			MaxUploadMB:    v.GetInt64("server.max_upload_mb"),
		},
		Session: SessionConfig{
			TTL:           v.GetDuration("session.ttl"),
			SweepInterval: v.GetDuration("session.sweep_interval"),
		},
		Render: RenderConfig{
			PdftoppmBin:  v.GetString("render.pdftoppm_bin"),
			PdfinfoBin:   v.GetString("render.pdfinfo_bin"),
			DPI:          v.GetInt("render.dpi"),
			MaxDimension: v.GetInt("render.max_dimension"),
			Workers:      v.GetInt("render.workers"),
		},
		LLM: LLMConfig{
			Provider:      strings.ToLower(v.GetString("llm.provider")),
			OpenAIAPIKey:  v.GetString("llm.openai_api_key"),
			OpenAIBaseURL: v.GetString("llm.openai_base_url"),
			OpenAIModel:   v.GetString("llm.openai_model"),
			MaxTokens:     v.GetInt("llm.max_tokens"),
			GeminiAPIKey:  v.GetString("llm.gemini_api_key"),
			GeminiModel:   v.GetString("llm.gemini_model"),
			Timeout:       v.GetDuration("llm.timeout"),
		},
		Watch: WatchConfig{
			Dir:      v.GetString("watch.dir"),
			Workers:  v.GetInt("watch.workers"),
			Debounce: v.GetDuration("watch.debounce"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: strings.ToLower(v.GetString("log.format")),
		},
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Server.MaxUploadMB <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_UPLOAD_MB must be positive", ErrInvalidInput)
	}
	if c.Session.TTL <= 0 || c.Session.SweepInterval <= 0 {
		return NewAppError("CONFIG_ERROR", "SESSION_TTL and SESSION_SWEEP_INTERVAL must be positive", ErrInvalidInput)
	}
	if c.Render.DPI <= 0 || c.Render.MaxDimension <= 0 {
		return NewAppError("CONFIG_ERROR", "RENDER_DPI and RENDER_MAX_DIMENSION must be positive", ErrInvalidInput)
	}
	if err := NewValidator().
		Field("LLM_PROVIDER", c.LLM.Provider, Required, OneOf("openai", "gemini")).
		Field("LOG_FORMAT", c.Log.Format, OneOf("text", "json")).
		Err(); err != nil {
		return err
	}
	if c.LLM.Timeout <= 0 {
		return NewAppError("CONFIG_ERROR", "LLM_TIMEOUT must be positive", ErrInvalidInput)
	}
	return nil
}

// SlogLevel maps the configured level name to a slog.Level (info on unknown input).
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
