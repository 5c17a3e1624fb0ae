package services

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/lessonswarm/internal/models"
)

type mockUploader struct{ mock.Mock }

func (m *mockUploader) Upload(ctx context.Context, objectName, contentType string, data []byte) (string, error) {
	args := m.Called(ctx, objectName, contentType, data)
	return args.String(0), args.Error(1)
}

type mockRenderStore struct{ mock.Mock }

func (m *mockRenderStore) CompleteRender(ctx context.Context, pdfName, userID, status, videoURL string) (int, error) {
	args := m.Called(ctx, pdfName, userID, status, videoURL)
	return args.Int(0), args.Error(1)
}

var callbackTime = time.UnixMilli(1700000000123)

func newTestCallback(uploader VideoUploader, store RenderStore) *RenderCallbackFunction {
	f := NewRenderCallbackWith(uploader, store)
	f.now = func() time.Time { return callbackTime }
	return f
}

func TestVideoObjectName(t *testing.T) {
	assert.Equal(t, "user-1/My_Paper__v2__pdf_1700000000123.mp4", VideoObjectName("user-1", "My Paper (v2).pdf", callbackTime))
}

func TestRenderCallback_UploadsInlineVideo(t *testing.T) {
	video := []byte("fake mp4 bytes")
	uploader := &mockUploader{}
	uploader.On("Upload", mock.Anything, "user-1/paper_pdf_1700000000123.mp4", "video/mp4", video).
		Return("https://storage.googleapis.com/videos/user-1/paper_pdf_1700000000123.mp4", nil)
	store := &mockRenderStore{}
	store.On("CompleteRender", mock.Anything, "paper.pdf", "user-1", "complete", "https://storage.googleapis.com/videos/user-1/paper_pdf_1700000000123.mp4").
		Return(3, nil)

	resp, err := newTestCallback(uploader, store).Process(context.Background(), &models.RenderCallbackRequest{
		JobID:     "job-1",
		Status:    "complete",
		VideoData: base64.StdEncoding.EncodeToString(video),
		PDFName:   "paper.pdf",
		UserID:    "user-1",
	})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 3, resp.UpdatedCount)
	assert.Equal(t, "https://storage.googleapis.com/videos/user-1/paper_pdf_1700000000123.mp4", resp.VideoURL)
	uploader.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestRenderCallback_ProvidedURLSkipsUpload(t *testing.T) {
	uploader := &mockUploader{}
	store := &mockRenderStore{}
	store.On("CompleteRender", mock.Anything, "paper.pdf", "user-1", "complete", "https://cdn.example/v.mp4").Return(1, nil)

	resp, err := newTestCallback(uploader, store).Process(context.Background(), &models.RenderCallbackRequest{
		Status:    "complete",
		VideoURL:  "https://cdn.example/v.mp4",
		VideoData: "aWdub3JlZA==",
		PDFName:   "paper.pdf",
		UserID:    "user-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/v.mp4", resp.VideoURL)
	uploader.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRenderCallback_ErrorStatusRecordsNoURL(t *testing.T) {
	store := &mockRenderStore{}
	store.On("CompleteRender", mock.Anything, "paper.pdf", "user-1", "error", "").Return(2, nil)

	resp, err := newTestCallback(nil, store).Process(context.Background(), &models.RenderCallbackRequest{
		Status:   "error",
		VideoURL: "https://cdn.example/partial.mp4",
		PDFName:  "paper.pdf",
		UserID:   "user-1",
		Error:    "renderer crashed",
	})

	require.NoError(t, err)
	assert.Equal(t, 2, resp.UpdatedCount)
	store.AssertExpectations(t)
}

func TestRenderCallback_Validation(t *testing.T) {
	cases := map[string]models.RenderCallbackRequest{
		"missing pdf name": {Status: "complete", UserID: "u"},
		"missing user":     {Status: "complete", PDFName: "p.pdf"},
		"unknown status":   {Status: "done", PDFName: "p.pdf", UserID: "u"},
		"bad base64":       {Status: "complete", PDFName: "p.pdf", UserID: "u", VideoData: "%%%"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := newTestCallback(&mockUploader{}, &mockRenderStore{}).Process(context.Background(), &req)
			require.Error(t, err)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestRenderCallback_Failures(t *testing.T) {
	t.Run("upload", func(t *testing.T) {
		uploader := &mockUploader{}
		uploader.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("bucket gone"))

		_, err := newTestCallback(uploader, &mockRenderStore{}).Process(context.Background(), &models.RenderCallbackRequest{
			Status: "complete", VideoData: "AAAA", PDFName: "p.pdf", UserID: "u",
		})

		require.Error(t, err)
		assert.False(t, IsValidation(err))
		assert.Contains(t, err.Error(), "video upload failed")
	})

	t.Run("no bucket", func(t *testing.T) {
		_, err := newTestCallback(nil, &mockRenderStore{}).Process(context.Background(), &models.RenderCallbackRequest{
			Status: "complete", VideoData: "AAAA", PDFName: "p.pdf", UserID: "u",
		})
		assert.ErrorContains(t, err, "VIDEO_BUCKET")
	})

	t.Run("database", func(t *testing.T) {
		store := &mockRenderStore{}
		store.On("CompleteRender", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(0, errors.New("connection refused"))

		_, err := newTestCallback(nil, store).Process(context.Background(), &models.RenderCallbackRequest{
			Status: "error", PDFName: "p.pdf", UserID: "u",
		})
		assert.ErrorContains(t, err, "database update failed")
	})
}
