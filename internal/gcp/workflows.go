package gcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"cloud.google.com/go/storage"
	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"
	"github.com/google/uuid"

	"github.com/Lllllllleong/lessonswarm/internal/models"
	"github.com/Lllllllleong/lessonswarm/internal/pipeline"
)

// RenderWorkflowConfig locates the workflow that renders storyboards to video.
type RenderWorkflowConfig struct {
	ProjectID        string
	WorkflowLocation string
	WorkflowID       string
	StoryboardBucket string
	CallbackURL      string
}

func (c RenderWorkflowConfig) parent() string {
	return fmt.Sprintf("projects/%s/locations/%s/workflows/%s", c.ProjectID, c.WorkflowLocation, c.WorkflowID)
}

// WorkflowRenderDispatcher archives the storyboard to GCS and starts one
// workflow execution per document.
type WorkflowRenderDispatcher struct {
	config  RenderWorkflowConfig
	archive func(ctx context.Context, objectName string, data []byte) error
	execute func(ctx context.Context, req *executionspb.CreateExecutionRequest) (*executionspb.Execution, error)
	newID   func() string
}

func NewWorkflowRenderDispatcher(storageClient *storage.Client, executionsClient *executions.Client, config RenderWorkflowConfig) (*WorkflowRenderDispatcher, error) {
	if config.StoryboardBucket == "" || config.WorkflowID == "" {
		return nil, fmt.Errorf("STORYBOARD_BUCKET and RENDER_WORKFLOW_ID must be set to dispatch renders")
	}
	bucket := storageClient.Bucket(config.StoryboardBucket)
	return &WorkflowRenderDispatcher{
		config: config,
		archive: func(ctx context.Context, objectName string, data []byte) error {
			return SaveToGCSAtomically(ctx, bucket, objectName, data)
		},
		execute: func(ctx context.Context, req *executionspb.CreateExecutionRequest) (*executionspb.Execution, error) {
			return executionsClient.CreateExecution(ctx, req)
		},
		newID: uuid.NewString,
	}, nil
}

// StoryboardObjectName is where a job's storyboard is archived.
func StoryboardObjectName(ownerID, documentHash, jobID string) string {
	if documentHash == "" {
		documentHash = "unhashed"
	}
	return fmt.Sprintf("%s/%s/%s.json", ownerID, documentHash, jobID)
}

// Dispatch implements pipeline.RenderDispatcher.
func (d *WorkflowRenderDispatcher) Dispatch(ctx context.Context, req pipeline.RenderRequest) (string, error) {
	jobID := d.newID()
	logCtx := slog.With("renderJobId", jobID, "documentName", req.DocumentName, "workflowId", d.config.WorkflowID)

	objectName := StoryboardObjectName(req.OwnerID, req.DocumentHash, jobID)
	if err := d.archive(ctx, objectName, req.Storyboard); err != nil {
		return "", fmt.Errorf("failed to archive storyboard: %w", err)
	}

	payload, err := json.Marshal(models.RenderJob{
		JobID:         jobID,
		PDFName:       req.DocumentName,
		UserID:        req.OwnerID,
		ProjectID:     req.ProjectID,
		StoryboardURI: fmt.Sprintf("gs://%s/%s", d.config.StoryboardBucket, objectName),
		CallbackURL:   d.config.CallbackURL,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal workflow payload: %w", err)
	}

	execution, err := d.execute(ctx, &executionspb.CreateExecutionRequest{
		Parent: d.config.parent(),
		Execution: &executionspb.Execution{
			Argument: string(payload),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to trigger workflow execution: %w", err)
	}

	logCtx.Info("Render workflow triggered.", "execution", execution.GetName())
	return jobID, nil
}
