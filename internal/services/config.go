package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/storage"
	executions "cloud.google.com/go/workflows/executions/apiv1"

	"github.com/Lllllllleong/lessonswarm/internal/cache"
	"github.com/Lllllllleong/lessonswarm/internal/gcp"
	"github.com/Lllllllleong/lessonswarm/internal/llm"
	"github.com/Lllllllleong/lessonswarm/internal/pipeline"
	"github.com/Lllllllleong/lessonswarm/internal/store"
)

const (
	ProviderGateway = "gateway"
	ProviderVertex  = "vertex"

	FactStoreFirestore = "firestore"
	FactStorePostgres  = "postgres"
)

// LLMConfig selects and configures the text generation backend.
type LLMConfig struct {
	Provider       string
	ProjectID      string
	VertexAIRegion string
	GatewayURL     string
	GatewayAPIKey  string
	Model          string
	CallTimeout    time.Duration
	BaseDelay      time.Duration
}

func loadLLMConfig() (LLMConfig, error) {
	cfg := LLMConfig{
		Provider:       gcp.GetEnv("LLM_PROVIDER", ProviderGateway),
		ProjectID:      gcp.GetEnv("PROJECT_ID", ""),
		VertexAIRegion: gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		GatewayURL:     gcp.GetEnv("LLM_GATEWAY_URL", llm.DefaultGatewayURL),
		GatewayAPIKey:  gcp.GetEnv("LLM_GATEWAY_API_KEY", ""),
		Model:          gcp.GetEnv("LLM_MODEL", ""),
		CallTimeout:    gcp.GetEnvDuration("LLM_CALL_TIMEOUT", llm.DefaultCallTimeout),
		BaseDelay:      gcp.GetEnvDuration("LLM_BASE_DELAY", llm.DefaultBaseDelay),
	}
	switch cfg.Provider {
	case ProviderGateway:
		if cfg.GatewayAPIKey == "" {
			return cfg, fmt.Errorf("LLM_GATEWAY_API_KEY environment variable must be set")
		}
	case ProviderVertex:
		if cfg.ProjectID == "" {
			return cfg, fmt.Errorf("PROJECT_ID environment variable must be set for LLM_PROVIDER=vertex")
		}
	default:
		return cfg, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.Provider)
	}
	return cfg, nil
}

func newBackend(ctx context.Context, cfg LLMConfig) (llm.Backend, error) {
	if cfg.Provider == ProviderVertex {
		client, err := gcp.NewVertexClient(ctx, cfg.ProjectID, cfg.VertexAIRegion, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create vertex client: %w", err)
		}
		return client, nil
	}
	return llm.NewGatewayBackend(cfg.GatewayURL, cfg.GatewayAPIKey, cfg.Model, nil), nil
}

// StoreConfig selects the knowledge base backend.
type StoreConfig struct {
	Backend             string
	ProjectID           string
	FirestoreDatabase   string
	FirestoreCollection string
	DatabaseURL         string
}

func loadStoreConfig() StoreConfig {
	return StoreConfig{
		Backend:             gcp.GetEnv("FACT_STORE", FactStoreFirestore),
		ProjectID:           gcp.GetEnv("PROJECT_ID", ""),
		FirestoreDatabase:   gcp.GetEnv("FIRESTORE_DATABASE", ""),
		FirestoreCollection: gcp.GetEnv("FIRESTORE_COLLECTION", gcp.DefaultFactCollection),
		DatabaseURL:         gcp.GetEnv("DATABASE_URL", ""),
	}
}

func newFactStore(ctx context.Context, cfg StoreConfig) (store.FactStore, error) {
	switch cfg.Backend {
	case FactStorePostgres:
		return store.OpenPostgres(cfg.DatabaseURL)
	case FactStoreFirestore:
		client, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID, cfg.FirestoreDatabase)
		if err != nil {
			return nil, fmt.Errorf("failed to create firestore client: %w", err)
		}
		return store.NewFirestoreFactStore(client, cfg.FirestoreCollection), nil
	default:
		return nil, fmt.Errorf("unknown FACT_STORE %q", cfg.Backend)
	}
}

// SwarmConfig holds all configuration for the storyboard swarm.
type SwarmConfig struct {
	LLM              LLMConfig
	Store            StoreConfig
	GroupSize        int
	MaxPages         int
	RedisAddr        string
	PageCacheTTL     time.Duration
	StoryboardBucket string
	RenderWorkflow   gcp.RenderWorkflowConfig
}

// LoadSwarmConfig loads and validates all environment variables of the swarm.
func LoadSwarmConfig() (*SwarmConfig, error) {
	llmCfg, err := loadLLMConfig()
	if err != nil {
		return nil, err
	}
	storeCfg := loadStoreConfig()

	cfg := &SwarmConfig{
		LLM:              llmCfg,
		Store:            storeCfg,
		GroupSize:        gcp.GetEnvInt("SWARM_GROUP_SIZE", pipeline.DefaultGroupSize),
		MaxPages:         gcp.GetEnvInt("SWARM_MAX_PAGES", pipeline.DefaultAgentConfig().MaxPages),
		RedisAddr:        gcp.GetEnv("REDIS_ADDR", ""),
		PageCacheTTL:     gcp.GetEnvDuration("PAGE_CACHE_TTL", cache.DefaultPageTTL),
		StoryboardBucket: gcp.GetEnv("STORYBOARD_BUCKET", ""),
		RenderWorkflow: gcp.RenderWorkflowConfig{
			ProjectID:        storeCfg.ProjectID,
			WorkflowLocation: gcp.GetEnv("WORKFLOW_LOCATION", "us-central1"),
			WorkflowID:       gcp.GetEnv("RENDER_WORKFLOW_ID", ""),
			StoryboardBucket: gcp.GetEnv("STORYBOARD_BUCKET", ""),
			CallbackURL:      gcp.GetEnv("RENDER_CALLBACK_URL", ""),
		},
	}
	if cfg.RenderWorkflow.WorkflowID != "" {
		if cfg.RenderWorkflow.ProjectID == "" || cfg.RenderWorkflow.StoryboardBucket == "" {
			return nil, fmt.Errorf("PROJECT_ID and STORYBOARD_BUCKET must be set when RENDER_WORKFLOW_ID is set")
		}
	}
	return cfg, nil
}

// newRenderDispatcher returns nil when no render workflow is configured.
func newRenderDispatcher(ctx context.Context, cfg gcp.RenderWorkflowConfig, storageClient *storage.Client) (pipeline.RenderDispatcher, error) {
	if cfg.WorkflowID == "" {
		return nil, nil
	}
	executionsClient, err := executions.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
	}
	d, err := gcp.NewWorkflowRenderDispatcher(storageClient, executionsClient, cfg)
	if err != nil {
		return nil, err
	}
	slog.Info("Render dispatch enabled.", "workflowId", cfg.WorkflowID)
	return d, nil
}

// newPageCache returns nil when REDIS_ADDR is unset or unreachable.
func newPageCache(ctx context.Context, addr string, ttl time.Duration) pipeline.PageCache {
	if addr == "" {
		return nil
	}
	rdb, err := cache.Connect(ctx, addr)
	if err != nil {
		slog.Warn("Page cache disabled.", "error", err)
		return nil
	}
	return cache.NewRedisPageCache(rdb, ttl)
}
