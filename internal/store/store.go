// Package store persists extracted facts to the knowledge base.
package store

import (
	"context"

	"github.com/Lllllllleong/lessonswarm/internal/models"
)

// FactStore is the knowledge base: append-only inserts plus the render status
// transition applied when a video job settles.
type FactStore interface {
	InsertFacts(ctx context.Context, records []models.FactRecord) (int, error)
	// CompleteRender moves every fact of (pdfName, userID) that is still
	// rendering to status, recording videoURL when it is non-empty.
	CompleteRender(ctx context.Context, pdfName, userID, status, videoURL string) (int, error)
	// SetRenderStatus moves the rows with the given ids that are still
	// rendering to status.
	SetRenderStatus(ctx context.Context, ids []string, status string) (int, error)
}
