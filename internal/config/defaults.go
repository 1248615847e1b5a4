package config

const (
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 8000
	DefaultEnvironment = "development"
	DefaultAPIPrefix   = "/api/v1"
	DefaultLogLevel    = "info"

	DefaultRateLimitPerMinute = 60

	DefaultBigQueryLocation = "US"
	DefaultQueryMaxRows     = 50

	DefaultMaxQueryBytesProcessed = 10_000_000_000 // 10GB

	DefaultElasticsearchPort       = 9200
	DefaultElasticsearchScheme     = "http"
	DefaultElasticsearchMaxRetries = 3
	DefaultElasticsearchIndex      = "logs-*"
	DefaultElasticsearchSearchSize = 10

	DefaultLLMProvider    = "anthropic"
	DefaultLLMMaxTokens   = 1024
	DefaultOllamaURL      = "http://localhost:11434"
	DefaultLLMTemperature = 0.0

	DefaultAgent                = "general"
	DefaultMaxIterations        = 5
	DefaultModelTimeoutSeconds  = 120
	DefaultToolTimeoutSeconds   = 30
	DefaultRequestTimeoutSecond = 300
	DefaultMemoryWindow         = 0 // unbounded
	DefaultLogLimit             = 5
	DefaultMetricWindowMinutes  = 10

	DefaultTaskStoreDriver     = "memory"
	DefaultFirestoreCollection = "tasks"
	DefaultTerraformStateFile  = "terraform.tfstate"

	DefaultWikipediaURL             = "https://en.wikipedia.org"
	DefaultWikipediaCacheTTLSeconds = 600
	DefaultSchemaCacheTTLSeconds    = 300

	DefaultCloudFunctionTimeoutSeconds = 30

	DefaultMaxPromptLength = 2000

	DefaultCORSMaxAge = 300
)

var DefaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:8080",
}

var DefaultSensitiveColumns = []string{
	"email", "phone", "ssn", "social_security_number",
	"credit_card", "password", "secret", "token",
	"api_key", "access_key", "private_key",
}

var DefaultPIIKeywords = []string{
	"password", "ssn", "social security", "credit card",
	"bank account", "pin", "secret", "private key",
	"access token", "api key", "personal data",
}

// DefaultRoutes returns the built-in keyword route table. The task row is
// checked first.
func DefaultRoutes() []Route {
	return []Route{
		{Keywords: []string{"task", "firestore"}, Agent: "task"},
		{Keywords: []string{"log", "bigquery", "sql", "query", "metric", "terraform"}, Agent: "devops"},
	}
}
