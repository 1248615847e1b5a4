package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cortexai/opsagent/internal/agent"
	"github.com/cortexai/opsagent/internal/config"
	"github.com/cortexai/opsagent/internal/handler"
	"github.com/cortexai/opsagent/internal/llm"
	"github.com/cortexai/opsagent/internal/security"
	"github.com/cortexai/opsagent/internal/service"
	"github.com/cortexai/opsagent/internal/taskstore"
	"github.com/cortexai/opsagent/internal/tools"
	"github.com/rs/zerolog/log"
)

type closer struct {
	name  string
	close func() error
}

// Backends are the clients, agents and guards built once at startup.
type Backends struct {
	Catalog *agent.Catalog
	Router  *service.IntentRouter
	Agents  *handler.AgentHandler
	Health  map[string]handler.HealthChecker

	closers []closer
}

// NewBackends constructs every configured client and the agent catalog.
// Optional backends that fail to start are logged and left out; their tools
// answer that they are not configured.
func NewBackends(ctx context.Context, cfg *config.Config) (*Backends, error) {
	b := &Backends{Health: make(map[string]handler.HealthChecker)}

	completer, err := llm.New(llm.Config{
		Provider:    cfg.LLMProvider,
		Model:       cfg.LLMModel,
		APIKey:      cfg.AnthropicAPIKey,
		BaseURL:     llmBaseURL(cfg),
		MaxTokens:   cfg.LLMMaxTokens,
		Temperature: cfg.LLMTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("language model: %w", err)
	}

	deps := agent.Deps{
		Completer: completer,
		Wiki:      service.NewWikipediaService(cfg.WikipediaURL, "opsagent/"+handler.Version, 15*time.Second),
		WikiCache: service.NewTTLCache("wikipedia", seconds(cfg.WikipediaCacheTTLSeconds)),
		Clock:     time.Now,
		Functions: service.NewFunctionInvoker(seconds(cfg.CloudFunctionTimeoutSeconds), cfg.CloudFunctionAuth, cfg.GoogleApplicationCredentials),
	}

	b.wireTasks(ctx, cfg, &deps)
	b.wireGCP(ctx, cfg, &deps)
	b.wireElasticsearch(cfg, &deps)

	catalog, err := agent.NewCatalog(agent.CatalogConfig{
		General:      budget(cfg, string(service.AgentGeneral)),
		Task:         budget(cfg, string(service.AgentTask)),
		DevOps:       budget(cfg, string(service.AgentDevOps)),
		ModelTimeout: cfg.ModelTimeout(),
		ToolTimeout:  cfg.ToolTimeout(),
		MemoryWindow: cfg.MemoryWindow,
		LogLimit:     cfg.LogLimit,
		MetricWindow: time.Duration(cfg.MetricWindowMinutes) * time.Minute,
		SearchIndex:  cfg.ESDefaultIndex,
		SearchSize:   cfg.ESSearchSize,
	}, deps)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.Catalog = catalog

	routes := make([]service.Route, 0, len(cfg.Routes))
	for _, rt := range cfg.Routes {
		routes = append(routes, service.Route{Keywords: rt.Keywords, Agent: service.AgentID(rt.Agent)})
	}
	b.Router, err = service.NewIntentRouter(routes, service.AgentID(cfg.DefaultAgent))
	if err != nil {
		b.Close()
		return nil, err
	}

	guard := handler.InputGuard{
		Audit: security.NewAuditLogger(cfg.EnableAuditLogging),
	}
	if cfg.EnablePromptValidation {
		guard.Validator = security.NewPromptValidator(cfg.MaxPromptLength)
	}
	if cfg.EnablePIIDetection {
		guard.PII = security.NewPIIDetector(cfg.PIIKeywords)
	}
	b.Agents = handler.NewAgentHandler(catalog, b.Router, guard, cfg.RequestTimeout(), cfg.APIKeyHeader)

	log.Info().
		Str("llm_provider", cfg.LLMProvider).
		Bool("tasks", deps.Tasks != nil).
		Bool("cloud_logging", deps.Logs != nil).
		Bool("bigquery", deps.BigQuery != nil).
		Bool("monitoring", deps.Metrics != nil).
		Bool("terraform_state", deps.States != nil).
		Bool("elasticsearch", deps.LogSearch != nil).
		Bool("pii_detection", cfg.EnablePIIDetection).
		Bool("prompt_validation", cfg.EnablePromptValidation).
		Bool("audit_logging", cfg.EnableAuditLogging).
		Msg("service configuration")

	return b, nil
}

func (b *Backends) wireTasks(ctx context.Context, cfg *config.Config, deps *agent.Deps) {
	store, err := taskstore.Open(ctx, taskstore.Config{
		Driver:          cfg.TaskStoreDriver,
		DSN:             cfg.TaskStoreDSN,
		ProjectID:       cfg.GCPProjectID,
		Collection:      cfg.FirestoreCollection,
		CredentialsFile: cfg.GoogleApplicationCredentials,
	})
	if err != nil {
		log.Warn().Err(err).Str("driver", cfg.TaskStoreDriver).Msg("task store unavailable")
		return
	}
	deps.Tasks = store
	b.closers = append(b.closers, closer{"tasks", store.Close})
}

func (b *Backends) wireGCP(ctx context.Context, cfg *config.Config, deps *agent.Deps) {
	b.Health["bigquery"] = nil
	if cfg.GCPProjectID == "" {
		log.Warn().Msg("GCP_PROJECT_ID not set - Cloud Logging, BigQuery and Monitoring disabled")
	} else {
		if cfg.EnableCloudLogging {
			if logs, err := service.NewLoggingService(ctx, cfg.GCPProjectID, cfg.GoogleApplicationCredentials); err != nil {
				log.Warn().Err(err).Msg("Cloud Logging unavailable")
			} else {
				deps.Logs = logs
				b.closers = append(b.closers, closer{"cloud logging", logs.Close})
			}
		}

		if cfg.EnableBigQuery {
			if bq, err := service.NewBigQueryService(ctx, cfg.GCPProjectID, cfg.GoogleApplicationCredentials, cfg.BigQueryLocation); err != nil {
				log.Warn().Err(err).Msg("BigQuery service unavailable")
			} else {
				deps.BigQuery = bq
				deps.BigQueryCatalog = bq
				deps.SchemaCache = service.NewTTLCache("bigquery-schema", seconds(cfg.SchemaCacheTTLSeconds))
				deps.BigQueryGuard = tools.BigQueryGuard{
					Validator: security.NewSQLValidator(),
					Audit:     security.NewAuditLogger(cfg.EnableAuditLogging),
					MaxRows:   cfg.QueryMaxRows,
				}
				if cfg.EnableQueryCostTracking {
					deps.BigQueryGuard.Costs = security.NewCostTracker(cfg.MaxQueryBytesProcessed)
				}
				if cfg.EnableDataMasking {
					deps.BigQueryGuard.Masker = security.NewDataMasker(cfg.SensitiveColumns)
				}
				b.Health["bigquery"] = bq
				b.closers = append(b.closers, closer{"bigquery", bq.Close})
			}
		}

		if cfg.EnableMonitoring {
			if mon, err := service.NewMonitoringService(ctx, cfg.GCPProjectID, cfg.GoogleApplicationCredentials); err != nil {
				log.Warn().Err(err).Msg("Cloud Monitoring unavailable")
			} else {
				deps.Metrics = mon
				b.closers = append(b.closers, closer{"monitoring", mon.Close})
			}
		}
	}

	if cfg.EnableTerraformState {
		if st, err := service.NewStateService(ctx, cfg.GoogleApplicationCredentials, cfg.TerraformStateFile); err != nil {
			log.Warn().Err(err).Msg("Cloud Storage unavailable - Terraform state queries disabled")
		} else {
			deps.States = st
			b.closers = append(b.closers, closer{"storage", st.Close})
		}
	}
}

func (b *Backends) wireElasticsearch(cfg *config.Config, deps *agent.Deps) {
	b.Health["elasticsearch"] = nil
	if !cfg.ElasticsearchEnabled {
		return
	}
	es, err := service.NewElasticsearchService(service.ElasticsearchConfig{
		Addresses:       []string{cfg.ElasticsearchAddress()},
		Username:        cfg.ElasticsearchUser,
		Password:        cfg.ElasticsearchPassword,
		VerifyCerts:     cfg.ElasticsearchVerifyCerts,
		MaxRetries:      cfg.ElasticsearchMaxRetries,
		AllowedPatterns: cfg.ESAllowedPatterns,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Elasticsearch service unavailable")
		return
	}
	deps.LogSearch = es
	deps.LogIndices = es
	b.Health["elasticsearch"] = es
}

// Close releases every client, reporting all failures.
func (b *Backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		c := b.closers[i]
		if err := c.close(); err != nil {
			log.Warn().Err(err).Str("client", c.name).Msg("error closing client")
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		} else {
			log.Debug().Str("client", c.name).Msg("client closed")
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

func budget(cfg *config.Config, id string) agent.Budget {
	n, d := cfg.AgentBudget(id)
	return agent.Budget{MaxIterations: n, MaxDuration: d}
}

func llmBaseURL(cfg *config.Config) string {
	if cfg.LLMProvider == "ollama" {
		return cfg.OllamaURL
	}
	return cfg.AnthropicBaseURL
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
