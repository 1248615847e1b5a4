package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// KnownAgents are the agent ids the route table and budgets may name.
var KnownAgents = []string{"general", "task", "devops"}

// Route maps keywords to an agent id.
type Route struct {
	Keywords []string `json:"keywords" yaml:"keywords"`
	Agent    string   `json:"agent" yaml:"agent"`
}

// AgentConfig overrides one agent's budget. Zero values keep the defaults.
type AgentConfig struct {
	MaxIterations      int `json:"max_iterations" yaml:"max_iterations"`
	MaxDurationSeconds int `json:"max_duration_seconds" yaml:"max_duration_seconds"`
}

type Config struct {
	// Server
	Host        string `json:"host" yaml:"host"`
	Port        int    `json:"port" yaml:"port"`
	Environment string `json:"environment" yaml:"environment"`
	APIPrefix   string `json:"api_prefix" yaml:"api_prefix"`
	LogLevel    string `json:"log_level" yaml:"log_level"`

	// CORS
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins"`

	// Auth
	APIKeyHeader string   `json:"api_key_header" yaml:"api_key_header"`
	APIKeys      []string `json:"api_keys" yaml:"api_keys"`
	EnableAuth   bool     `json:"enable_auth" yaml:"enable_auth"`

	// Rate Limiting
	RateLimitPerMinute int `json:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`

	// GCP
	GCPProjectID                 string `json:"gcp_project_id" yaml:"gcp_project_id"`
	GoogleApplicationCredentials string `json:"google_application_credentials" yaml:"google_application_credentials"`
	BigQueryLocation             string `json:"bigquery_location" yaml:"bigquery_location"`
	EnableBigQuery               bool   `json:"enable_bigquery" yaml:"enable_bigquery"`
	EnableCloudLogging           bool   `json:"enable_cloud_logging" yaml:"enable_cloud_logging"`
	EnableMonitoring             bool   `json:"enable_monitoring" yaml:"enable_monitoring"`
	EnableTerraformState         bool   `json:"enable_terraform_state" yaml:"enable_terraform_state"`
	TerraformStateFile           string `json:"terraform_state_file" yaml:"terraform_state_file"`

	// Security
	MaxQueryBytesProcessed  int64    `json:"max_query_bytes_processed" yaml:"max_query_bytes_processed"`
	QueryMaxRows            int      `json:"query_max_rows" yaml:"query_max_rows"`
	EnableQueryCostTracking bool     `json:"enable_query_cost_tracking" yaml:"enable_query_cost_tracking"`
	EnableDataMasking       bool     `json:"enable_data_masking" yaml:"enable_data_masking"`
	EnablePIIDetection      bool     `json:"enable_pii_detection" yaml:"enable_pii_detection"`
	EnablePromptValidation  bool     `json:"enable_prompt_validation" yaml:"enable_prompt_validation"`
	SensitiveColumns        []string `json:"sensitive_columns" yaml:"sensitive_columns"`
	PIIKeywords             []string `json:"pii_keywords" yaml:"pii_keywords"`
	EnableAuditLogging      bool     `json:"enable_audit_logging" yaml:"enable_audit_logging"`
	MaxPromptLength         int      `json:"max_prompt_length" yaml:"max_prompt_length"`

	// Elasticsearch
	ElasticsearchEnabled     bool     `json:"elasticsearch_enabled" yaml:"elasticsearch_enabled"`
	ElasticsearchHost        string   `json:"elasticsearch_host" yaml:"elasticsearch_host"`
	ElasticsearchPort        int      `json:"elasticsearch_port" yaml:"elasticsearch_port"`
	ElasticsearchScheme      string   `json:"elasticsearch_scheme" yaml:"elasticsearch_scheme"`
	ElasticsearchUser        string   `json:"elasticsearch_user" yaml:"elasticsearch_user"`
	ElasticsearchPassword    string   `json:"elasticsearch_password" yaml:"elasticsearch_password"`
	ElasticsearchVerifyCerts bool     `json:"elasticsearch_verify_certs" yaml:"elasticsearch_verify_certs"`
	ElasticsearchMaxRetries  int      `json:"elasticsearch_max_retries" yaml:"elasticsearch_max_retries"`
	ESAllowedPatterns        []string `json:"es_allowed_patterns" yaml:"es_allowed_patterns"`
	ESDefaultIndex           string   `json:"es_default_index" yaml:"es_default_index"`
	ESSearchSize             int      `json:"es_search_size" yaml:"es_search_size"`

	// AI / LLM
	LLMProvider      string  `json:"llm_provider" yaml:"llm_provider"` // anthropic | ollama
	LLMModel         string  `json:"llm_model" yaml:"llm_model"`
	LLMMaxTokens     int     `json:"llm_max_tokens" yaml:"llm_max_tokens"`
	LLMTemperature   float64 `json:"llm_temperature" yaml:"llm_temperature"`
	AnthropicAPIKey  string  `json:"anthropic_api_key" yaml:"anthropic_api_key"`
	AnthropicBaseURL string  `json:"anthropic_base_url" yaml:"anthropic_base_url"` // override for custom proxy
	OllamaURL        string  `json:"ollama_url" yaml:"ollama_url"`

	// Agents
	DefaultAgent          string                 `json:"default_agent" yaml:"default_agent"`
	Routes                []Route                `json:"routes" yaml:"routes"`
	Agents                map[string]AgentConfig `json:"agents" yaml:"agents"`
	ModelTimeoutSeconds   int                    `json:"model_timeout_seconds" yaml:"model_timeout_seconds"`
	ToolTimeoutSeconds    int                    `json:"tool_timeout_seconds" yaml:"tool_timeout_seconds"`
	RequestTimeoutSeconds int                    `json:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	MemoryWindow          int                    `json:"memory_window" yaml:"memory_window"`
	LogLimit              int                    `json:"log_limit" yaml:"log_limit"`
	MetricWindowMinutes   int                    `json:"metric_window_minutes" yaml:"metric_window_minutes"`

	// Tasks
	TaskStoreDriver     string `json:"task_store_driver" yaml:"task_store_driver"` // memory | sqlite | postgres | firestore
	TaskStoreDSN        string `json:"task_store_dsn" yaml:"task_store_dsn"`
	FirestoreCollection string `json:"firestore_collection" yaml:"firestore_collection"`

	// Knowledge lookup
	WikipediaURL             string `json:"wikipedia_url" yaml:"wikipedia_url"`
	WikipediaCacheTTLSeconds int    `json:"wikipedia_cache_ttl_seconds" yaml:"wikipedia_cache_ttl_seconds"`
	SchemaCacheTTLSeconds    int    `json:"schema_cache_ttl_seconds" yaml:"schema_cache_ttl_seconds"`

	// Cloud Functions
	CloudFunctionAuth           bool `json:"cloud_function_auth" yaml:"cloud_function_auth"`
	CloudFunctionTimeoutSeconds int  `json:"cloud_function_timeout_seconds" yaml:"cloud_function_timeout_seconds"`
}

// Defaults returns a Config populated with built-in defaults only.
func Defaults() *Config {
	return &Config{
		Host:                        DefaultHost,
		Port:                        DefaultPort,
		Environment:                 DefaultEnvironment,
		APIPrefix:                   DefaultAPIPrefix,
		LogLevel:                    DefaultLogLevel,
		CORSOrigins:                 DefaultCORSOrigins,
		APIKeyHeader:                "X-API-Key",
		RateLimitPerMinute:          DefaultRateLimitPerMinute,
		BigQueryLocation:            DefaultBigQueryLocation,
		EnableBigQuery:              true,
		EnableCloudLogging:          true,
		EnableMonitoring:            true,
		EnableTerraformState:        true,
		TerraformStateFile:          DefaultTerraformStateFile,
		MaxQueryBytesProcessed:      DefaultMaxQueryBytesProcessed,
		QueryMaxRows:                DefaultQueryMaxRows,
		EnableQueryCostTracking:     true,
		EnableDataMasking:           true,
		SensitiveColumns:            DefaultSensitiveColumns,
		PIIKeywords:                 DefaultPIIKeywords,
		EnableAuditLogging:          true,
		EnablePromptValidation:      true,
		MaxPromptLength:             DefaultMaxPromptLength,
		ElasticsearchPort:           DefaultElasticsearchPort,
		ElasticsearchScheme:         DefaultElasticsearchScheme,
		ElasticsearchVerifyCerts:    true,
		ElasticsearchMaxRetries:     DefaultElasticsearchMaxRetries,
		ESDefaultIndex:              DefaultElasticsearchIndex,
		ESSearchSize:                DefaultElasticsearchSearchSize,
		LLMProvider:                 DefaultLLMProvider,
		LLMMaxTokens:                DefaultLLMMaxTokens,
		LLMTemperature:              DefaultLLMTemperature,
		OllamaURL:                   DefaultOllamaURL,
		DefaultAgent:                DefaultAgent,
		Routes:                      DefaultRoutes(),
		Agents:                      make(map[string]AgentConfig),
		ModelTimeoutSeconds:         DefaultModelTimeoutSeconds,
		ToolTimeoutSeconds:          DefaultToolTimeoutSeconds,
		RequestTimeoutSeconds:       DefaultRequestTimeoutSecond,
		MemoryWindow:                DefaultMemoryWindow,
		LogLimit:                    DefaultLogLimit,
		MetricWindowMinutes:         DefaultMetricWindowMinutes,
		TaskStoreDriver:             DefaultTaskStoreDriver,
		FirestoreCollection:         DefaultFirestoreCollection,
		WikipediaURL:                DefaultWikipediaURL,
		WikipediaCacheTTLSeconds:    DefaultWikipediaCacheTTLSeconds,
		SchemaCacheTTLSeconds:       DefaultSchemaCacheTTLSeconds,
		CloudFunctionTimeoutSeconds: DefaultCloudFunctionTimeoutSeconds,
	}
}

// Load builds the configuration: defaults, then the file at path (or
// $OPSAGENT_CONFIG when path is empty), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = getEnv("OPSAGENT_CONFIG", "")
	}
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile decodes JSON, or YAML when the extension says so.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := getEnv("OPSAGENT_HOST", ""); v != "" {
		cfg.Host = v
	}
	if v := getEnv("OPSAGENT_PORT", getEnv("PORT", "")); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := getEnv("OPSAGENT_ENV", ""); v != "" {
		cfg.Environment = v
	}
	if v := getEnv("OPSAGENT_LOG_LEVEL", ""); v != "" {
		cfg.LogLevel = v
	}
	if v := getEnv("OPSAGENT_API_KEYS", ""); v != "" {
		cfg.APIKeys = strings.Split(v, ",")
	}
	if v := getEnv("ENABLE_AUTH", ""); v != "" {
		cfg.EnableAuth = parseBool(v)
	}
	if v := getEnv("ENABLE_PROMPT_VALIDATION", ""); v != "" {
		cfg.EnablePromptValidation = parseBool(v)
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		if r, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitPerMinute = r
		}
	}

	if v := getEnv("GCP_PROJECT_ID", getEnv("GCP_PROJECT", "")); v != "" {
		cfg.GCPProjectID = v
	}
	if v := getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""); v != "" {
		cfg.GoogleApplicationCredentials = v
	}
	if v := getEnv("MAX_QUERY_BYTES_PROCESSED", ""); v != "" {
		if b, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxQueryBytesProcessed = b
		}
	}

	if v := getEnv("ELASTICSEARCH_ENABLED", ""); v != "" {
		cfg.ElasticsearchEnabled = parseBool(v)
	}
	if v := getEnv("ELASTICSEARCH_HOST", ""); v != "" {
		cfg.ElasticsearchHost = v
	}
	if v := getEnv("ELASTICSEARCH_PORT", ""); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.ElasticsearchPort = p
		}
	}
	if v := getEnv("ELASTICSEARCH_SCHEME", ""); v != "" {
		cfg.ElasticsearchScheme = v
	}
	if v := getEnv("ELASTICSEARCH_USER", ""); v != "" {
		cfg.ElasticsearchUser = v
	}
	if v := getEnv("ELASTICSEARCH_PASSWORD", ""); v != "" {
		cfg.ElasticsearchPassword = v
	}

	if v := getEnv("OPSAGENT_LLM_PROVIDER", ""); v != "" {
		cfg.LLMProvider = v
	}
	if v := getEnv("OPSAGENT_LLM_MODEL", ""); v != "" {
		cfg.LLMModel = v
	}
	if v := getEnv("ANTHROPIC_API_KEY", ""); v != "" {
		cfg.AnthropicAPIKey = v
	}
	if v := getEnv("ANTHROPIC_BASE_URL", ""); v != "" {
		cfg.AnthropicBaseURL = v
	}
	if v := getEnv("OLLAMA_URL", ""); v != "" {
		cfg.OllamaURL = v
	}

	if v := getEnv("OPSAGENT_MEMORY_WINDOW", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MemoryWindow = n
		}
	}
	if v := getEnv("OPSAGENT_MAX_ITERATIONS", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			for _, id := range KnownAgents {
				ac := cfg.Agents[id]
				ac.MaxIterations = n
				cfg.Agents[id] = ac
			}
		}
	}
	if v := getEnv("OPSAGENT_TASK_STORE", ""); v != "" {
		cfg.TaskStoreDriver = v
	}
	if v := getEnv("OPSAGENT_TASK_STORE_DSN", ""); v != "" {
		cfg.TaskStoreDSN = v
	}
}

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("config: log_level: %w", err)
	}
	switch c.LLMProvider {
	case "anthropic", "ollama":
	default:
		return fmt.Errorf("config: unknown llm_provider %q", c.LLMProvider)
	}
	if !isKnownAgent(c.DefaultAgent) {
		return fmt.Errorf("config: unknown default_agent %q", c.DefaultAgent)
	}
	for i, r := range c.Routes {
		if !isKnownAgent(r.Agent) {
			return fmt.Errorf("config: route %d names unknown agent %q", i, r.Agent)
		}
		if len(r.Keywords) == 0 {
			return fmt.Errorf("config: route %d has no keywords", i)
		}
		for _, kw := range r.Keywords {
			if strings.TrimSpace(kw) == "" {
				return fmt.Errorf("config: route %d has an empty keyword", i)
			}
		}
	}
	for id, ac := range c.Agents {
		if !isKnownAgent(id) {
			return fmt.Errorf("config: agents: unknown agent %q", id)
		}
		if ac.MaxIterations < 0 {
			return fmt.Errorf("config: agents.%s.max_iterations must be >= 1", id)
		}
		if ac.MaxDurationSeconds < 0 {
			return fmt.Errorf("config: agents.%s.max_duration_seconds must be >= 0", id)
		}
	}
	if c.MemoryWindow < 0 {
		return fmt.Errorf("config: memory_window must be >= 0")
	}
	switch c.TaskStoreDriver {
	case "memory", "firestore":
	case "sqlite", "postgres":
		if c.TaskStoreDSN == "" {
			return fmt.Errorf("config: task_store_dsn is required for %s", c.TaskStoreDriver)
		}
	default:
		return fmt.Errorf("config: unknown task_store_driver %q", c.TaskStoreDriver)
	}
	return nil
}

// AgentBudget returns the iteration and time budget for agent id.
func (c *Config) AgentBudget(id string) (int, time.Duration) {
	ac := c.Agents[id]
	n := ac.MaxIterations
	if n == 0 {
		n = DefaultMaxIterations
	}
	return n, seconds(ac.MaxDurationSeconds)
}

func (c *Config) ModelTimeout() time.Duration   { return seconds(c.ModelTimeoutSeconds) }
func (c *Config) ToolTimeout() time.Duration    { return seconds(c.ToolTimeoutSeconds) }
func (c *Config) RequestTimeout() time.Duration { return seconds(c.RequestTimeoutSeconds) }

// IsDevelopment reports whether console logging should be used.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// ElasticsearchAddress returns the cluster URL.
func (c *Config) ElasticsearchAddress() string {
	return fmt.Sprintf("%s://%s:%d", c.ElasticsearchScheme, c.ElasticsearchHost, c.ElasticsearchPort)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func isKnownAgent(id string) bool {
	for _, k := range KnownAgents {
		if k == id {
			return true
		}
	}
	return false
}

func parseBool(v string) bool {
	return v == "true" || v == "1"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
