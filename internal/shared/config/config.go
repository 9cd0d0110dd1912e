package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"resume-intake/internal/shared/telemetry"
)

// Config holds application configuration.
type Config struct {
	Port            string   `yaml:"port"`
	Env             string   `yaml:"env"`
	CORSAllowOrigin []string `yaml:"cors_allow_origins"`
	LogLevel        string   `yaml:"log_level"`
	LogFormat       string   `yaml:"log_format"`
	MaxUploadBytes  int64    `yaml:"max_upload_bytes"`
	RateLimitRPS    float64  `yaml:"rate_limit_rps"`
	RateLimitBurst  int      `yaml:"rate_limit_burst"`

	LLM           LLMConfig           `yaml:"llm"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Storage       StorageConfig       `yaml:"storage"`
	Search        SearchConfig        `yaml:"search"`
	History       HistoryConfig       `yaml:"history"`
}

// LLMConfig selects and configures the resume text generator.
type LLMConfig struct {
	Provider       string   `yaml:"provider"`
	Endpoint       string   `yaml:"endpoint"`
	APIKey         string   `yaml:"api_key"`
	APIVersion     string   `yaml:"api_version"`
	Model          string   `yaml:"model"`
	Temperature    *float64 `yaml:"temperature"`
	MaxTokens      int64    `yaml:"max_tokens"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// EmbeddingConfig configures the embedding generator. Endpoint and key fall back to LLM settings.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"`
	Endpoint       string `yaml:"endpoint"`
	APIKey         string `yaml:"api_key"`
	APIVersion     string `yaml:"api_version"`
	Model          string `yaml:"model"`
	Dimensions     int    `yaml:"dimensions"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// TranscriptionConfig configures audio narrative transcription.
type TranscriptionConfig struct {
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// StorageConfig configures the blob store behind the resume store.
type StorageConfig struct {
	Type            string `yaml:"type"`
	LocalDir        string `yaml:"local_dir"`
	Region          string `yaml:"region"`
	BucketPrefix    string `yaml:"bucket_prefix"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
}

// SearchConfig configures the search gateway.
type SearchConfig struct {
	Provider       string   `yaml:"provider"`
	Endpoint       string   `yaml:"endpoint"`
	APIKey         string   `yaml:"api_key"`
	APIVersion     string   `yaml:"api_version"`
	Index          string   `yaml:"index"`
	SemanticConfig string   `yaml:"semantic_config"`
	QueryType      string   `yaml:"query_type"`
	IndexPath      string   `yaml:"index_path"`
	KeywordWeight  float64  `yaml:"keyword_weight"`
	SemanticWeight float64  `yaml:"semantic_weight"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	// SelectFields narrows the fields Azure returns; empty selects id, content and the
	// optional resume fields.
	SelectFields   []string `yaml:"select_fields"`
}

// HistoryConfig configures submission history persistence.
type HistoryConfig struct {
	Store         string `yaml:"store"`
	DatabaseURL   string `yaml:"database_url"`
	RunMigrations bool   `yaml:"run_migrations"`
}

// Load reads configuration from .env files, an optional YAML file named by CONFIG_FILE,
// and environment variables, in increasing order of precedence.
func Load() Config {
	if loaded := loadEnvFiles(envFileCandidates()...); len(loaded) > 0 {
		telemetry.Info("config.env_files_loaded", map[string]any{"paths": loaded})
	}

	var cfg Config
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		fileCfg, err := LoadFile(path)
		if err != nil {
			telemetry.Warn("config.file_ignored", map[string]any{"path": path, "error": err})
		} else {
			cfg = fileCfg
		}
	}
	applyEnv(&cfg)
	cfg.ApplyDefaults()

	if cfg.Env == "production" && cfg.History.Store == "postgres" && cfg.History.DatabaseURL == "" {
		telemetry.Warn("config.database_url_missing", map[string]any{"env": cfg.Env})
	}
	return cfg
}

// LoadFile parses a YAML config file without applying defaults.
func LoadFile(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Env = getEnv("ENV", cfg.Env)
	if raw := os.Getenv("CORS_ALLOW_ORIGINS"); raw != "" {
		cfg.CORSAllowOrigin = splitAndTrim(raw)
	}
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.MaxUploadBytes = int64(getEnvInt("MAX_UPLOAD_BYTES", int(cfg.MaxUploadBytes)))
	cfg.RateLimitRPS = getEnvFloat("RATE_LIMIT_RPS", cfg.RateLimitRPS)
	cfg.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", cfg.RateLimitBurst)

	llm := &cfg.LLM
	llm.Provider = getEnv("LLM_PROVIDER", llm.Provider)
	llm.Endpoint = firstEnv(llm.Endpoint, "AZURE_OPENAI_ENDPOINT", "OPENAI_BASE_URL")
	llm.APIKey = firstEnv(llm.APIKey, "AZURE_OPENAI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY")
	llm.APIVersion = getEnv("AZURE_OPENAI_API_VERSION", llm.APIVersion)
	llm.Model = firstEnv(llm.Model, "AZURE_OPENAI_RESUME_DEPLOYMENT_NAME", "LLM_MODEL")
	llm.Temperature = getEnvFloatPtr("LLM_TEMPERATURE", llm.Temperature)
	llm.MaxTokens = int64(getEnvInt("LLM_MAX_TOKENS", int(llm.MaxTokens)))
	llm.TimeoutSeconds = getEnvInt("LLM_TIMEOUT_SECONDS", llm.TimeoutSeconds)

	emb := &cfg.Embedding
	emb.Provider = getEnv("EMBEDDING_PROVIDER", emb.Provider)
	emb.Endpoint = getEnv("EMBEDDING_ENDPOINT", emb.Endpoint)
	emb.APIKey = getEnv("EMBEDDING_API_KEY", emb.APIKey)
	emb.APIVersion = getEnv("EMBEDDING_API_VERSION", emb.APIVersion)
	emb.Model = firstEnv(emb.Model, "AZURE_OPENAI_EMBEDDING_DEPLOYMENT_NAME", "EMBEDDING_MODEL")
	emb.Dimensions = getEnvInt("EMBEDDING_DIMENSIONS", emb.Dimensions)
	emb.TimeoutSeconds = getEnvInt("EMBEDDING_TIMEOUT_SECONDS", emb.TimeoutSeconds)

	tr := &cfg.Transcription
	tr.Model = firstEnv(tr.Model, "AZURE_OPENAI_TRANSCRIPTION_DEPLOYMENT_NAME", "TRANSCRIPTION_MODEL")
	tr.TimeoutSeconds = getEnvInt("TRANSCRIPTION_TIMEOUT_SECONDS", tr.TimeoutSeconds)

	st := &cfg.Storage
	st.Type = getEnv("OBJECT_STORE", st.Type)
	st.LocalDir = getEnv("LOCAL_STORE_DIR", st.LocalDir)
	st.Region = getEnv("AWS_REGION", st.Region)
	st.BucketPrefix = getEnv("S3_BUCKET_PREFIX", st.BucketPrefix)
	st.Endpoint = getEnv("S3_ENDPOINT", st.Endpoint)
	st.AccessKeyID = getEnv("S3_ACCESS_KEY_ID", st.AccessKeyID)
	st.SecretAccessKey = getEnv("S3_SECRET_ACCESS_KEY", st.SecretAccessKey)
	st.ForcePathStyle = getEnvBool("S3_FORCE_PATH_STYLE", st.ForcePathStyle)
	st.TimeoutSeconds = getEnvInt("STORAGE_TIMEOUT_SECONDS", st.TimeoutSeconds)

	se := &cfg.Search
	se.Provider = getEnv("SEARCH_PROVIDER", se.Provider)
	se.Endpoint = getEnv("AZURE_SEARCH_ENDPOINT", se.Endpoint)
	se.APIKey = getEnv("AZURE_SEARCH_API_KEY", se.APIKey)
	se.APIVersion = getEnv("AZURE_SEARCH_API_VERSION", se.APIVersion)
	se.Index = getEnv("AZURE_SEARCH_INDEX", se.Index)
	se.SemanticConfig = getEnv("AZURE_SEARCH_SEMANTIC_CONFIG", se.SemanticConfig)
	se.QueryType = getEnv("SEARCH_QUERY_TYPE", se.QueryType)
	se.IndexPath = getEnv("SEARCH_INDEX_PATH", se.IndexPath)
	se.KeywordWeight = getEnvFloat("SEARCH_KEYWORD_WEIGHT", se.KeywordWeight)
	se.SemanticWeight = getEnvFloat("SEARCH_SEMANTIC_WEIGHT", se.SemanticWeight)
	se.TimeoutSeconds = getEnvInt("SEARCH_TIMEOUT_SECONDS", se.TimeoutSeconds)
	se.SelectFields = getEnvList("AZURE_SEARCH_SELECT_FIELDS", se.SelectFields)

	h := &cfg.History
	h.Store = getEnv("HISTORY_STORE", h.Store)
	h.DatabaseURL = getEnv("DATABASE_URL", h.DatabaseURL)
	h.RunMigrations = getEnvBool("RUN_MIGRATIONS", h.RunMigrations)
}

// ApplyDefaults fills unset fields and normalizes enumerations.
func (c *Config) ApplyDefaults() {
	if c.Port == "" {
		c.Port = "8080"
	}
	c.Env = normalizeEnv(c.Env)
	if len(c.CORSAllowOrigin) == 0 {
		c.CORSAllowOrigin = []string{"http://localhost:5173"}
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 10 << 20
	}

	c.LLM.Provider = normalizeLLMProvider(c.LLM.Provider, c.LLM.Endpoint)
	if c.LLM.APIVersion == "" {
		c.LLM.APIVersion = "2025-01-01-preview"
	}
	if c.LLM.Model == "" && c.LLM.Provider != "azure" {
		c.LLM.Model = defaultModel(c.LLM.Provider)
	}
	if c.LLM.Temperature == nil {
		t := 0.7
		c.LLM.Temperature = &t
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 2048
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = 120
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = c.LLM.Provider
		if c.Embedding.Provider == "anthropic" {
			c.Embedding.Provider = "openai"
		}
	}
	c.Embedding.Provider = normalizeLLMProvider(c.Embedding.Provider, c.Embedding.Endpoint)
	if c.Embedding.Endpoint == "" && c.Embedding.Provider == c.LLM.Provider {
		c.Embedding.Endpoint = c.LLM.Endpoint
	}
	if c.Embedding.APIKey == "" && c.Embedding.Provider == c.LLM.Provider {
		c.Embedding.APIKey = c.LLM.APIKey
	}
	if c.Embedding.APIVersion == "" {
		c.Embedding.APIVersion = "2023-05-15"
	}
	if c.Embedding.Model == "" && c.Embedding.Provider != "azure" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.TimeoutSeconds <= 0 {
		c.Embedding.TimeoutSeconds = 60
	}

	if c.Transcription.Model == "" {
		c.Transcription.Model = "whisper-1"
	}
	if c.Transcription.TimeoutSeconds <= 0 {
		c.Transcription.TimeoutSeconds = 120
	}

	c.Storage.Type = normalizeStoreType(c.Storage.Type)
	if c.Storage.LocalDir == "" {
		c.Storage.LocalDir = "./data"
	}
	if c.Storage.TimeoutSeconds <= 0 {
		c.Storage.TimeoutSeconds = 30
	}

	c.Search.Provider = normalizeSearchProvider(c.Search.Provider, c.Search.Endpoint)
	if c.Search.APIVersion == "" {
		c.Search.APIVersion = "2023-11-01"
	}
	if c.Search.Index == "" {
		c.Search.Index = "resumesearch"
	}
	if c.Search.SemanticConfig == "" {
		c.Search.SemanticConfig = "my-semantic-config"
	}
	c.Search.QueryType = normalizeQueryType(c.Search.QueryType)
	if c.Search.KeywordWeight <= 0 && c.Search.SemanticWeight <= 0 {
		c.Search.KeywordWeight = 0.5
		c.Search.SemanticWeight = 0.5
	}
	if c.Search.TimeoutSeconds <= 0 {
		c.Search.TimeoutSeconds = 30
	}

	switch strings.ToLower(strings.TrimSpace(c.History.Store)) {
	case "postgres", "pg":
		c.History.Store = "postgres"
	case "memory":
		c.History.Store = "memory"
	default:
		if c.History.DatabaseURL != "" {
			c.History.Store = "postgres"
		} else {
			c.History.Store = "memory"
		}
	}
}

// Seconds converts a configured second count into a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func firstEnv(def string, keys ...string) string {
	for _, k := range keys {
		if val := strings.TrimSpace(os.Getenv(k)); val != "" {
			return val
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		telemetry.Warn("config.invalid_int", map[string]any{"key": key, "error": err})
		return def
	}
	return v
}

func getEnvFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		telemetry.Warn("config.invalid_float", map[string]any{"key": key, "error": err})
		return def
	}
	return v
}

// getEnvFloatPtr keeps an explicit zero distinct from unset.
func getEnvFloatPtr(key string, def *float64) *float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		telemetry.Warn("config.invalid_float", map[string]any{"key": key, "error": err})
		return def
	}
	return &v
}

// getEnvList splits a comma-separated variable, dropping blank items.
func getEnvList(key string, def []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func getEnvBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		telemetry.Warn("config.invalid_bool", map[string]any{"key": key, "error": err})
		return def
	}
	return v
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "memory":
		return "memory"
	default:
		return "local"
	}
}

func normalizeLLMProvider(raw, endpoint string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "azure", "azure-openai", "azure_openai":
		return "azure"
	case "anthropic", "claude":
		return "anthropic"
	case "openai":
		return "openai"
	}
	if strings.Contains(strings.ToLower(endpoint), ".openai.azure.com") {
		return "azure"
	}
	return "openai"
}

func normalizeSearchProvider(raw, endpoint string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "azure":
		return "azure"
	case "local", "bleve":
		return "local"
	}
	if strings.TrimSpace(endpoint) != "" {
		return "azure"
	}
	return "local"
}

func normalizeQueryType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "simple", "keyword", "full":
		return "simple"
	default:
		return "semantic"
	}
}

func defaultModel(provider string) string {
	if provider == "anthropic" {
		return "claude-3-5-haiku-latest"
	}
	return "gpt-4o-mini"
}
