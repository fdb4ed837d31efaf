package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ragchat/types"
)

// LLM roles. Each role carries its own model and temperature.
const (
	RoleClassify  = "classify"
	RoleRespond   = "respond"
	RoleDescribe  = "describe"
	RoleSummarize = "summarize"
)

type PostgresConfig struct {
	Host     string `validate:"required"`
	Port     int    `validate:"gt=0"`
	User     string
	Password string
	DBName   string `validate:"required"`
}

func (c PostgresConfig) ConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.DBName)
}

type LoaderConfig struct {
	MonitoringTime time.Duration `validate:"gt=0"`
	SourceDir      string        `validate:"required"`
	ArchiveDir     string        `validate:"required"`
	BadDir         string        `validate:"required"`
}

type ChunkConfig struct {
	Size    int `validate:"gt=0"`
	Overlap int `validate:"gte=0"`
}

type EmbeddingConfig struct {
	ClipURL       string  `validate:"required"`
	ClipMaxTokens int     `validate:"gt=0"`
	ImageWeight   float64 `validate:"gte=0,lte=1"`
	TextWeight    float64 `validate:"gte=0,lte=1"`
	ImageDim      int     `validate:"gt=0"`
	TextProvider  string  `validate:"oneof=ollama openai"`
	TextURL       string  `validate:"required"`
	TextModel     string  `validate:"required"`
	TextAPIKey    string
	TextDim       int           `validate:"gt=0"`
	CacheSize     int           `validate:"gte=0"`
	CacheTTL      time.Duration `validate:"gte=0"`
}

type Profile struct {
	Model       string  `yaml:"model" validate:"required"`
	Temperature float32 `yaml:"temperature" validate:"gte=0,lte=2"`
}

type LLMConfig struct {
	Provider    string `validate:"oneof=openai gemini"`
	URL         string
	APIKey      string
	Timeout     time.Duration      `validate:"gt=0"`
	MaxAttempts int                `validate:"gte=1"`
	RPS         float64            `validate:"gt=0"`
	Profiles    map[string]Profile `validate:"dive"`
}

type Config struct {
	ServerAddr      string `validate:"required"`
	DocFolder       string `validate:"required"`
	ImageFolder     string `validate:"required"`
	ChatImageFolder string `validate:"required"`
	VectorBackend   string `validate:"oneof=pgvector memory"`
	UpsertBatchSize int    `validate:"gt=0"`
	ContextChars    int    `validate:"gt=0"`
	IngestWorkers   int    `validate:"gt=0"`
	LogLevel        string `validate:"oneof=debug info warn error"`
	LogFormat       string `validate:"oneof=text json"`

	Postgres  PostgresConfig
	Loader    LoaderConfig
	Chunk     ChunkConfig
	Embedding EmbeddingConfig
	LLM       LLMConfig
}

// DefaultProfiles returns the model/temperature pair used for each LLM role
// with the given provider.
func DefaultProfiles(provider string) map[string]Profile {
	if provider == "gemini" {
		return map[string]Profile{
			RoleClassify:  {Model: "gemini-2.5-flash", Temperature: 0.3},
			RoleRespond:   {Model: "gemini-2.5-flash", Temperature: 0.4},
			RoleDescribe:  {Model: "gemini-2.5-flash", Temperature: 0},
			RoleSummarize: {Model: "gemini-2.5-flash", Temperature: 0.5},
		}
	}
	return map[string]Profile{
		RoleClassify:  {Model: "gpt-4.1-mini-2025-04-14", Temperature: 0.3},
		RoleRespond:   {Model: "gpt-4.1-mini-2025-04-14", Temperature: 0.4},
		RoleDescribe:  {Model: "gpt-4o", Temperature: 0},
		RoleSummarize: {Model: "gpt-4o", Temperature: 0.5},
	}
}

// Load reads the optional .env file, then the process environment, then the
// optional LLM profiles file, and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	e := env{get: getenv}
	cfg := &Config{
		ServerAddr:      e.str("SERVER_ADDR", ":8000"),
		DocFolder:       e.str("DOC_FOLDER", "./documents"),
		ImageFolder:     e.str("IMAGE_FOLDER", "./images"),
		ChatImageFolder: e.str("CHAT_IMG_FOLDER", "./chat_images"),
		VectorBackend:   e.str("VECTOR_BACKEND", "pgvector"),
		UpsertBatchSize: e.int("UPSERT_BATCH_SIZE", 96),
		ContextChars:    e.int("CONTEXT_CHARS", 500),
		IngestWorkers:   e.int("INGEST_WORKERS", 4),
		LogLevel:        strings.ToLower(e.str("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(e.str("LOG_FORMAT", "text")),
		Postgres: PostgresConfig{
			Host:     e.str("PG_HOST", "localhost"),
			Port:     e.int("PG_PORT", 5432),
			User:     e.str("PG_USER", ""),
			Password: e.str("PG_PASS", ""),
			DBName:   e.str("PG_DB_NAME", "rag"),
		},
		Loader: LoaderConfig{
			MonitoringTime: e.duration("LOADER_MONITORING_TIME", 5*time.Second),
			SourceDir:      e.str("LOADER_SOURCE_DIR", "./inbox"),
			ArchiveDir:     e.str("LOADER_ARCHIVE_DIR", "./archive"),
			BadDir:         e.str("LOADER_BAD_DIR", "./bad"),
		},
		Chunk: ChunkConfig{
			Size:    e.int("CHUNK_SIZE", 250),
			Overlap: e.int("CHUNK_OVERLAP", 100),
		},
		Embedding: EmbeddingConfig{
			ClipURL:       e.str("CLIP_URL", "http://localhost:51000"),
			ClipMaxTokens: e.int("CLIP_MAX_TOKENS", 75),
			ImageWeight:   e.float("IMAGE_WEIGHT", 0.4),
			TextWeight:    e.float("TEXT_WEIGHT", 0.6),
			ImageDim:      e.int("IMAGE_EMBEDDING_DIM", 512),
			TextProvider:  strings.ToLower(e.str("TEXT_EMBEDDING_PROVIDER", "ollama")),
			TextURL:       e.str("TEXT_EMBEDDING_URL", "http://localhost:11434/api/embeddings"),
			TextModel:     e.str("TEXT_EMBEDDING_MODEL", "nomic-embed-text"),
			TextAPIKey:    e.str("TEXT_EMBEDDING_API_KEY", ""),
			TextDim:       e.int("TEXT_EMBEDDING_DIM", 768),
			CacheSize:     e.int("EMBED_CACHE_SIZE", 1024),
			CacheTTL:      e.duration("EMBED_CACHE_TTL", 30*time.Minute),
		},
		LLM: LLMConfig{
			Provider:    strings.ToLower(e.str("LLM_PROVIDER", "openai")),
			URL:         e.str("LLM_URL", "https://api.openai.com/v1/chat/completions"),
			APIKey:      e.str("LLM_API_KEY", ""),
			Timeout:     e.duration("LLM_TIMEOUT", 2*time.Minute),
			MaxAttempts: e.int("LLM_MAX_ATTEMPTS", 1),
			RPS:         e.float("LLM_RPS", 2),
		},
	}
	cfg.LLM.Profiles = DefaultProfiles(cfg.LLM.Provider)
	if e.err != nil {
		return nil, e.err
	}

	if path := getenv("LLM_PROFILES_FILE"); path != "" {
		if err := cfg.LoadProfiles(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadProfiles overlays per-role model settings from a YAML file:
//
//	classify:
//	  model: gpt-4.1-mini
//	  temperature: 0.3
func (c *Config) LoadProfiles(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read llm profiles: %v", types.ErrConfiguration, err)
	}
	var overlay map[string]Profile
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("%w: parse llm profiles: %v", types.ErrConfiguration, err)
	}
	for role, p := range overlay {
		switch role {
		case RoleClassify, RoleRespond, RoleDescribe, RoleSummarize:
		default:
			return fmt.Errorf("%w: unknown llm role %q", types.ErrConfiguration, role)
		}
		c.LLM.Profiles[role] = p
	}
	return nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", types.ErrConfiguration, err)
	}
	if c.Chunk.Overlap >= c.Chunk.Size {
		return fmt.Errorf("%w: CHUNK_OVERLAP (%d) must be less than CHUNK_SIZE (%d)",
			types.ErrConfiguration, c.Chunk.Overlap, c.Chunk.Size)
	}
	if math.Abs(c.Embedding.ImageWeight+c.Embedding.TextWeight-1) > 1e-6 {
		return fmt.Errorf("%w: IMAGE_WEIGHT + TEXT_WEIGHT must equal 1", types.ErrConfiguration)
	}
	if c.LLM.Provider == "gemini" {
		for role, p := range c.LLM.Profiles {
			if strings.HasPrefix(p.Model, "gpt-") {
				return fmt.Errorf("%w: llm role %s uses openai model %q with the gemini provider",
					types.ErrConfiguration, role, p.Model)
			}
		}
	}
	return nil
}

type env struct {
	get func(string) string
	err error
}

func (e *env) str(key, def string) string {
	if v := strings.TrimSpace(e.get(key)); v != "" {
		return v
	}
	return def
}

func (e *env) int(key string, def int) int {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v)
		return def
	}
	return n
}

func (e *env) float(key string, def float64) float64 {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v)
		return def
	}
	return f
}

// duration accepts Go durations ("90s") or a bare number of seconds.
func (e *env) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v)
		return def
	}
	return d
}

func (e *env) fail(key, value string) {
	if e.err == nil {
		e.err = fmt.Errorf("%w: invalid value %q for %s", types.ErrConfiguration, value, key)
	}
}
