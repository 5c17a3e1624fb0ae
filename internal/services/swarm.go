package services

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/lessonswarm/internal/llm"
	"github.com/Lllllllleong/lessonswarm/internal/models"
	"github.com/Lllllllleong/lessonswarm/internal/pipeline"
)

// JobRunner turns one submitted document into a storyboard.
type JobRunner interface {
	Process(ctx context.Context, job pipeline.Job) (*models.SwarmResponse, error)
}

// SwarmFunction holds the dependencies of the storyboard swarm.
type SwarmFunction struct {
	orchestrator *pipeline.Orchestrator
	config       SwarmConfig
}

// NewSwarm creates a new SwarmFunction instance from the environment.
func NewSwarm(ctx context.Context) (*SwarmFunction, error) {
	config, err := LoadSwarmConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	backend, err := newBackend(ctx, config.LLM)
	if err != nil {
		return nil, err
	}
	facts, err := newFactStore(ctx, config.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to create fact store: %w", err)
	}

	opts := []pipeline.OrchestratorOption{}
	if config.RenderWorkflow.WorkflowID != "" {
		storageClient, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		dispatcher, err := newRenderDispatcher(ctx, config.RenderWorkflow, storageClient)
		if err != nil {
			return nil, err
		}
		opts = append(opts, pipeline.WithRenderDispatcher(dispatcher))
	}
	if pageCache := newPageCache(ctx, config.RedisAddr, config.PageCacheTTL); pageCache != nil {
		opts = append(opts, pipeline.WithPageCache(pageCache))
	}

	client := llm.NewClient(backend,
		llm.WithBaseDelay(config.LLM.BaseDelay),
		llm.WithCallTimeout(config.LLM.CallTimeout),
	)
	f := NewSwarmWith(client, facts, *config, opts...)

	slog.Info("Swarm logic initialized.",
		"llmProvider", config.LLM.Provider,
		"factStore", config.Store.Backend,
		"groupSize", config.GroupSize,
		"maxPages", config.MaxPages,
	)
	return f, nil
}

// NewSwarmWith wires a swarm around an existing generator and fact store.
func NewSwarmWith(gen llm.Generator, facts pipeline.FactSink, config SwarmConfig, opts ...pipeline.OrchestratorOption) *SwarmFunction {
	logger := slog.Default()
	agentCfg := pipeline.DefaultAgentConfig()
	agentCfg.MaxPages = config.MaxPages

	agents := pipeline.NewAgents(gen, agentCfg, logger)
	worker := pipeline.NewPageWorker(agents, logger)
	scheduler := pipeline.NewScheduler(worker, config.GroupSize, logger)

	return &SwarmFunction{
		orchestrator: pipeline.NewOrchestrator(agents, scheduler, facts, opts...),
		config:       config,
	}
}

// Process runs the whole swarm for one document.
func (f *SwarmFunction) Process(ctx context.Context, job pipeline.Job) (*models.SwarmResponse, error) {
	return f.orchestrator.Run(ctx, job)
}

// ErrorResponse is the response shape of a job that failed before page
// processing started.
func ErrorResponse(msg string) *models.SwarmResponse {
	return &models.SwarmResponse{
		Storyboard: []models.PageResult{},
		Context:    nil,
		Error:      msg,
	}
}
