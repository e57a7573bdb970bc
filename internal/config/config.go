// Package config loads settings from defaults, an optional YAML file, the
// environment and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	// EnvPrefix marks environment variables read as settings. A double
	// underscore separates nested keys: STUDYAGENT_LLM__CHAT_MODEL.
	EnvPrefix = "STUDYAGENT_"
	// DefaultFile is read when present and no --config flag is given.
	DefaultFile = "studyagent.yaml"
)

type Config struct {
	DB        string          `koanf:"db" validate:"required"`
	DataDir   string          `koanf:"data_dir" validate:"required"`
	UploadDir string          `koanf:"upload_dir"`
	ReposDir  string          `koanf:"repos_dir"`
	Addr      string          `koanf:"addr" validate:"required"`
	LogLevel  string          `koanf:"log_level" validate:"oneof=debug info warn error"`
	Ingest    IngestConfig    `koanf:"ingest"`
	LLM       LLMConfig       `koanf:"llm"`
	OCR       OCRConfig       `koanf:"ocr"`
	Retrieval RetrievalConfig `koanf:"retrieval"`
	Planner   PlannerConfig   `koanf:"planner"`
}

type IngestConfig struct {
	MinChunkSize int     `koanf:"min_chunk_size" validate:"min=1"`
	OCRThreshold int     `koanf:"ocr_threshold" validate:"min=0"`
	OCRDPI       float64 `koanf:"ocr_dpi" validate:"gt=0"`
}

type LLMConfig struct {
	APIKey            string        `koanf:"api_key"`
	BaseURL           string        `koanf:"base_url" validate:"omitempty,url"`
	ChatModel         string        `koanf:"chat_model" validate:"required"`
	EmbeddingModel    string        `koanf:"embedding_model" validate:"required"`
	Temperature       float32       `koanf:"temperature" validate:"min=0,max=2"`
	AnswerTemperature float32       `koanf:"answer_temperature" validate:"min=0,max=2"`
	Timeout           time.Duration `koanf:"timeout" validate:"gt=0"`
	MaxRetries        int           `koanf:"max_retries" validate:"min=1"`
}

type OCRConfig struct {
	Enabled         bool   `koanf:"enabled"`
	CredentialsFile string `koanf:"credentials_file"`
}

type RetrievalConfig struct {
	TopK int `koanf:"top_k" validate:"min=1"`
}

type PlannerConfig struct {
	Limit int `koanf:"limit" validate:"min=1"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DB:       "study_agent.db",
		DataDir:  ".",
		Addr:     ":8080",
		LogLevel: "info",
		Ingest: IngestConfig{
			MinChunkSize: 100,
			OCRThreshold: 100,
			OCRDPI:       300,
		},
		LLM: LLMConfig{
			ChatModel:         "gpt-4o-mini",
			EmbeddingModel:    "text-embedding-3-small",
			Temperature:       0.7,
			AnswerTemperature: 0.1,
			Timeout:           60 * time.Second,
			MaxRetries:        3,
		},
		OCR:       OCRConfig{Enabled: true},
		Retrieval: RetrievalConfig{TopK: 3},
		Planner:   PlannerConfig{Limit: 10},
	}
}

// flagKeys maps the flags registered by RegisterFlags to config keys.
var flagKeys = map[string]string{
	"db":        "db",
	"data-dir":  "data_dir",
	"addr":      "addr",
	"log-level": "log_level",
}

// RegisterFlags adds the settings flags to f.
func RegisterFlags(f *pflag.FlagSet) {
	d := Default()
	f.String("config", "", "Path to a YAML config file (default "+DefaultFile+" if present)")
	f.String("db", d.DB, "Path to the SQLite database file")
	f.String("data-dir", d.DataDir, "Directory for outputs, uploads and the retrieval index")
	f.String("addr", d.Addr, "Address the web interface listens on")
	f.String("log-level", d.LogLevel, "Log level: debug, info, warn or error")
}

// Load builds the configuration. f must already be parsed and have had
// RegisterFlags called on it.
func Load(f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	path, _ := f.GetString("config")
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	err = k.Load(posflag.ProviderWithFlag(f, ".", k, func(fl *pflag.Flag) (string, interface{}) {
		key, ok := flagKeys[fl.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(f, fl)
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings for consistency.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Level returns the slog level named by LogLevel.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// OutputsDir holds the flashcard and plan artifacts.
func (c *Config) OutputsDir() string { return filepath.Join(c.DataDir, "outputs") }

// IndexDir holds the persisted retrieval index.
func (c *Config) IndexDir() string { return filepath.Join(c.DataDir, "vector_store") }

// Uploads returns the directory uploaded documents are saved to.
func (c *Config) Uploads() string {
	if c.UploadDir != "" {
		return c.UploadDir
	}
	return filepath.Join(c.DataDir, "uploads")
}

// Repos returns the directory git sources are cloned into.
func (c *Config) Repos() string {
	if c.ReposDir != "" {
		return c.ReposDir
	}
	return filepath.Join(c.DataDir, "repos")
}
