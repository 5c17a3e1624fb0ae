package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Lllllllleong/lessonswarm/internal/models"
	"github.com/Lllllllleong/lessonswarm/internal/pipeline"
	"github.com/Lllllllleong/lessonswarm/internal/services"
)

const (
	maxChatBodyBytes = 2 << 20
	streamBufferSize = 4 << 10
)

// SwarmHandler accepts multipart job submissions.
type SwarmHandler struct {
	runner services.JobRunner
}

func NewSwarmHandler(runner services.JobRunner) *SwarmHandler {
	return &SwarmHandler{runner: runner}
}

// Handle reads the pdf, user_id and project_id form fields. Every failure,
// validation included, is reported as a 500 carrying the error-shaped response.
func (h *SwarmHandler) Handle(c *gin.Context) {
	job := pipeline.Job{
		OwnerID:   c.PostForm("user_id"),
		ProjectID: c.PostForm("project_id"),
	}

	if header, err := c.FormFile("pdf"); err == nil {
		data, err := readUpload(header)
		if err != nil {
			slog.Error("Could not read uploaded PDF.", "error", err)
			c.JSON(http.StatusInternalServerError, services.ErrorResponse("Could not read uploaded PDF"))
			return
		}
		job.Document = data
		job.DocumentName = header.Filename
	}

	resp, err := h.runner.Process(c.Request.Context(), job)
	if err != nil {
		if !errors.Is(err, pipeline.ErrInvalidJob) {
			slog.Error("Swarm run failed.", "error", err)
		}
		c.JSON(http.StatusInternalServerError, services.ErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// CallbackProcessor settles a render job.
type CallbackProcessor interface {
	Process(ctx context.Context, req *models.RenderCallbackRequest) (*models.RenderCallbackResponse, error)
}

type RenderCallbackHandler struct {
	processor CallbackProcessor
}

func NewRenderCallbackHandler(p CallbackProcessor) *RenderCallbackHandler {
	return &RenderCallbackHandler{processor: p}
}

func (h *RenderCallbackHandler) Handle(c *gin.Context) {
	var req models.RenderCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.RenderCallbackResponse{Error: fmt.Sprintf("malformed payload: %v", err)})
		return
	}

	resp, err := h.processor.Process(c.Request.Context(), &req)
	switch {
	case services.IsValidation(err):
		c.JSON(http.StatusBadRequest, models.RenderCallbackResponse{Error: err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, models.RenderCallbackResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusOK, resp)
	}
}

// ChatOpener starts an upstream chat stream.
type ChatOpener interface {
	Open(ctx context.Context, req *models.ChatRequest) (io.ReadCloser, error)
}

type ChatHandler struct {
	relay ChatOpener
}

func NewChatHandler(relay ChatOpener) *ChatHandler {
	return &ChatHandler{relay: relay}
}

func (h *ChatHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxChatBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	req, err := services.ValidateChatRequest(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stream, err := h.relay.Open(c.Request.Context(), req)
	if err != nil {
		var chatErr *services.ChatError
		if errors.As(err, &chatErr) {
			c.JSON(chatErr.Status, gin.H{"error": chatErr.Message})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong. Please try again."})
		return
	}
	defer stream.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)
	if err := copyFlushing(c.Writer, stream); err != nil {
		slog.Warn("Chat stream ended early.", "error", err)
	}
}

// copyFlushing relays r to w, flushing after every chunk so tokens reach the
// client as they arrive.
func copyFlushing(w gin.ResponseWriter, r io.Reader) error {
	buf := make([]byte, streamBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			w.Flush()
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
