package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/lessonswarm/internal/gcp"
	"github.com/Lllllllleong/lessonswarm/internal/pipeline"
)

const (
	uploadPrefix     = "uploads/"
	noProject        = "_"
	storyboardSuffix = ".storyboard.json"
)

// GCSEvent is the payload of a storage object finalize event.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// UploadTarget is what an upload's object name says about the job.
type UploadTarget struct {
	OwnerID      string
	ProjectID    string
	DocumentName string
}

// ParseUploadObject accepts uploads/<user_id>/<project_id|_>/<name>.pdf.
func ParseUploadObject(name string) (UploadTarget, bool) {
	if !strings.HasPrefix(name, uploadPrefix) || !strings.EqualFold(path.Ext(name), ".pdf") {
		return UploadTarget{}, false
	}
	parts := strings.SplitN(strings.TrimPrefix(name, uploadPrefix), "/", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" || strings.Contains(parts[2], "/") {
		return UploadTarget{}, false
	}
	target := UploadTarget{OwnerID: parts[0], DocumentName: parts[2]}
	if parts[1] != noProject {
		target.ProjectID = parts[1]
	}
	return target, true
}

// ObjectStore is the slice of GCS the upload trigger needs.
type ObjectStore interface {
	Read(ctx context.Context, bucket, name string) ([]byte, error)
	Exists(ctx context.Context, bucket, name string) (bool, error)
	SaveAtomically(ctx context.Context, bucket, name string, data []byte) error
}

type gcsObjects struct {
	client *storage.Client
}

func (g gcsObjects) Read(ctx context.Context, bucket, name string) ([]byte, error) {
	return gcp.ReadObject(ctx, g.client, bucket, name)
}

func (g gcsObjects) Exists(ctx context.Context, bucket, name string) (bool, error) {
	return gcp.ObjectExists(ctx, g.client, bucket, name)
}

func (g gcsObjects) SaveAtomically(ctx context.Context, bucket, name string, data []byte) error {
	return gcp.SaveToGCSAtomically(ctx, g.client.Bucket(bucket), name, data)
}

// UploadTriggerFunction runs the swarm for every PDF dropped under uploads/.
type UploadTriggerFunction struct {
	objects ObjectStore
	runner  JobRunner
}

// NewUploadTrigger creates a new UploadTriggerFunction from the environment.
func NewUploadTrigger(ctx context.Context) (*UploadTriggerFunction, error) {
	swarm, err := NewSwarm(ctx)
	if err != nil {
		return nil, err
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return NewUploadTriggerWith(gcsObjects{client: storageClient}, swarm), nil
}

func NewUploadTriggerWith(objects ObjectStore, runner JobRunner) *UploadTriggerFunction {
	return &UploadTriggerFunction{objects: objects, runner: runner}
}

// Process handles one finalize event. Objects outside the upload layout and
// uploads that already have a storyboard are skipped.
func (f *UploadTriggerFunction) Process(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)

	target, ok := ParseUploadObject(e.Name)
	if !ok {
		logCtx.Info("Object is not a PDF upload. Skipping.")
		return nil
	}
	logCtx = logCtx.With("userId", target.OwnerID, "projectId", target.ProjectID)

	resultName := e.Name + storyboardSuffix
	exists, err := f.objects.Exists(ctx, e.Bucket, resultName)
	if err != nil {
		logCtx.Error("Failed to check for an existing storyboard", "error", err)
		return err
	}
	if exists {
		logCtx.Info("Storyboard already exists. Skipping.", "storyboardObject", resultName)
		return nil
	}

	data, err := f.objects.Read(ctx, e.Bucket, e.Name)
	if err != nil {
		logCtx.Error("Failed to download uploaded PDF", "error", err)
		return err
	}

	resp, err := f.runner.Process(ctx, pipeline.Job{
		Document:     data,
		DocumentName: target.DocumentName,
		OwnerID:      target.OwnerID,
		ProjectID:    target.ProjectID,
	})
	switch {
	case errors.Is(err, pipeline.ErrInvalidJob):
		logCtx.Warn("Upload rejected.", "error", err)
		resp = ErrorResponse(err.Error())
	case err != nil:
		// Returning the error lets the event be redelivered.
		logCtx.Error("Swarm failed for upload", "error", err)
		return err
	}

	encoded, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal storyboard: %w", err)
	}
	if err := f.objects.SaveAtomically(ctx, e.Bucket, resultName, encoded); err != nil {
		logCtx.Error("Failed to archive storyboard", "error", err)
		return err
	}

	logCtx.Info("Storyboard archived.", "storyboardObject", resultName, "pagesProcessed", resp.PagesProcessed, "pagesFailed", resp.PagesFailed)
	return nil
}
