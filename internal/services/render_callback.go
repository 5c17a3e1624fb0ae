package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/lessonswarm/internal/gcp"
	"github.com/Lllllllleong/lessonswarm/internal/models"
)

const videoContentType = "video/mp4"

// VideoUploader stores a rendered video and returns its public URL.
type VideoUploader interface {
	Upload(ctx context.Context, objectName, contentType string, data []byte) (string, error)
}

// RenderStore applies the terminal render status to a document's facts.
type RenderStore interface {
	CompleteRender(ctx context.Context, pdfName, userID, status, videoURL string) (int, error)
}

// RenderCallbackFunction settles render jobs reported by the video renderer.
type RenderCallbackFunction struct {
	uploader VideoUploader
	store    RenderStore
	now      func() time.Time
}

// NewRenderCallback creates a new RenderCallbackFunction from the environment.
// Inline video uploads are disabled when VIDEO_BUCKET is unset.
func NewRenderCallback(ctx context.Context) (*RenderCallbackFunction, error) {
	facts, err := newFactStore(ctx, loadStoreConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create fact store: %w", err)
	}

	var uploader VideoUploader
	if bucket := gcp.GetEnv("VIDEO_BUCKET", ""); bucket != "" {
		storageClient, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		uploader = gcp.NewBucketUploader(storageClient, bucket)
	}
	return NewRenderCallbackWith(uploader, facts), nil
}

func NewRenderCallbackWith(uploader VideoUploader, store RenderStore) *RenderCallbackFunction {
	return &RenderCallbackFunction{uploader: uploader, store: store, now: time.Now}
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

// VideoObjectName is the storage key of an uploaded render.
func VideoObjectName(userID, pdfName string, at time.Time) string {
	return fmt.Sprintf("%s/%s_%d.mp4", userID, unsafeNameChars.ReplaceAllString(pdfName, "_"), at.UnixMilli())
}

func validateRenderCallback(req *models.RenderCallbackRequest) error {
	if req.PDFName == "" {
		return invalid("pdf_name is required")
	}
	if req.UserID == "" {
		return invalid("user_id is required")
	}
	if req.Status != models.RenderStatusComplete && req.Status != models.RenderStatusError {
		return invalid(`status must be "complete" or "error"`)
	}
	return nil
}

// Process uploads inline video bytes when needed and settles every fact of
// the document that is still rendering.
func (f *RenderCallbackFunction) Process(ctx context.Context, req *models.RenderCallbackRequest) (*models.RenderCallbackResponse, error) {
	logCtx := slog.With("renderJobId", req.JobID, "pdfName", req.PDFName, "userId", req.UserID, "status", req.Status)
	logCtx.Info("Render callback received.", "hasVideoUrl", req.VideoURL != "", "hasVideoData", req.VideoData != "")

	if err := validateRenderCallback(req); err != nil {
		return nil, err
	}

	videoURL := req.VideoURL
	if req.Status == models.RenderStatusComplete && req.VideoData != "" && videoURL == "" {
		uploaded, err := f.uploadVideo(ctx, req)
		if err != nil {
			logCtx.Error("Video upload failed.", "error", err)
			return nil, err
		}
		videoURL = uploaded
		logCtx.Info("Video uploaded.", "videoUrl", videoURL)
	}

	if req.Status == models.RenderStatusError && req.Error != "" {
		logCtx.Error("Renderer reported an error.", "renderError", req.Error)
	}

	recordedURL := ""
	if req.Status == models.RenderStatusComplete {
		recordedURL = videoURL
	}
	updated, err := f.store.CompleteRender(ctx, req.PDFName, req.UserID, req.Status, recordedURL)
	if err != nil {
		logCtx.Error("Failed to update knowledge base.", "error", err)
		return nil, fmt.Errorf("database update failed: %w", err)
	}
	logCtx.Info("Knowledge base entries updated.", "updatedCount", updated)

	return &models.RenderCallbackResponse{
		Success:      true,
		UpdatedCount: updated,
		VideoURL:     videoURL,
	}, nil
}

func (f *RenderCallbackFunction) uploadVideo(ctx context.Context, req *models.RenderCallbackRequest) (string, error) {
	if f.uploader == nil {
		return "", fmt.Errorf("video upload failed: VIDEO_BUCKET is not configured")
	}
	data, err := base64.StdEncoding.DecodeString(req.VideoData)
	if err != nil {
		return "", invalid("video_data must be base64 encoded")
	}
	url, err := f.uploader.Upload(ctx, VideoObjectName(req.UserID, req.PDFName, f.now()), videoContentType, data)
	if err != nil {
		return "", fmt.Errorf("video upload failed: %w", err)
	}
	return url, nil
}
