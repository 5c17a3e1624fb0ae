package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/Lllllllleong/lessonswarm/internal/models"
)

// factDocument is the Firestore shape of a knowledge base entry.
type factDocument struct {
	UserID          string    `firestore:"user_id"`
	ProjectID       *string   `firestore:"project_id"`
	PDFName         string    `firestore:"pdf_name"`
	Fact            string    `firestore:"fact"`
	PageNumber      int       `firestore:"page_number"`
	LineReference   *string   `firestore:"line_reference"`
	Category        string    `firestore:"category"`
	ConfidenceScore float64   `firestore:"confidence_score"`
	Storyboard      string    `firestore:"storyboard"`
	RenderStatus    string    `firestore:"render_status"`
	VideoURL        string    `firestore:"video_url,omitempty"`
	CreatedAt       time.Time `firestore:"created_at"`
}

func documentFromRecord(r models.FactRecord) factDocument {
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return factDocument{
		UserID:          r.OwnerID,
		ProjectID:       nullable(r.ProjectID),
		PDFName:         r.DocumentName,
		Fact:            r.Fact,
		PageNumber:      r.PageNumber,
		Category:        r.Category,
		ConfidenceScore: r.ConfidenceScore,
		Storyboard:      string(r.Storyboard),
		RenderStatus:    r.RenderStatus,
		VideoURL:        r.VideoURL,
		CreatedAt:       createdAt,
	}
}

type FirestoreFactStore struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreFactStore(client *firestore.Client, collection string) *FirestoreFactStore {
	return &FirestoreFactStore{client: client, collection: collection}
}

// InsertFacts creates one document per fact through a BulkWriter and reports
// how many writes committed.
func (s *FirestoreFactStore) InsertFacts(ctx context.Context, records []models.FactRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	coll := s.client.Collection(s.collection)
	bw := s.client.BulkWriter(ctx)

	jobs := make([]*firestore.BulkWriterJob, 0, len(records))
	var errs []error
	for _, r := range records {
		ref := coll.NewDoc()
		if r.ID != "" {
			ref = coll.Doc(r.ID)
		}
		job, err := bw.Create(ref, documentFromRecord(r))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		jobs = append(jobs, job)
	}
	bw.End()

	saved := 0
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			errs = append(errs, err)
			continue
		}
		saved++
	}
	if len(errs) > 0 {
		slog.Warn("Some facts failed to write.", "collection", s.collection, "failed", len(errs), "saved", saved)
		if saved == 0 {
			return 0, fmt.Errorf("failed to insert facts: %w", errors.Join(errs...))
		}
	}
	return saved, nil
}

func (s *FirestoreFactStore) CompleteRender(ctx context.Context, pdfName, userID, status, videoURL string) (int, error) {
	// The query filters on render_status, so every match is read before any
	// of them is rewritten.
	snaps, err := s.client.Collection(s.collection).
		Where("pdf_name", "==", pdfName).
		Where("user_id", "==", userID).
		Where("render_status", "==", models.RenderStatusRendering).
		Documents(ctx).
		GetAll()
	if err != nil {
		return 0, fmt.Errorf("failed to query rendering facts: %w", err)
	}

	updates := []firestore.Update{{Path: "render_status", Value: status}}
	if videoURL != "" {
		updates = append(updates, firestore.Update{Path: "video_url", Value: videoURL})
	}
	return s.bulkUpdate(ctx, snaps, updates)
}

func (s *FirestoreFactStore) SetRenderStatus(ctx context.Context, ids []string, status string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	coll := s.client.Collection(s.collection)
	refs := make([]*firestore.DocumentRef, len(ids))
	for i, id := range ids {
		refs[i] = coll.Doc(id)
	}
	snaps, err := s.client.GetAll(ctx, refs)
	if err != nil {
		return 0, fmt.Errorf("failed to read facts: %w", err)
	}

	rendering := make([]*firestore.DocumentSnapshot, 0, len(snaps))
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		if v, err := snap.DataAt("render_status"); err == nil && v == models.RenderStatusRendering {
			rendering = append(rendering, snap)
		}
	}
	return s.bulkUpdate(ctx, rendering, []firestore.Update{{Path: "render_status", Value: status}})
}

// bulkUpdate applies updates to every snapshot, guarded by its last update
// time, and reports how many writes committed.
func (s *FirestoreFactStore) bulkUpdate(ctx context.Context, snaps []*firestore.DocumentSnapshot, updates []firestore.Update) (int, error) {
	if len(snaps) == 0 {
		return 0, nil
	}
	bw := s.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(snaps))
	for _, snap := range snaps {
		job, err := bw.Update(snap.Ref, updates, firestore.LastUpdateTime(snap.UpdateTime))
		if err != nil {
			bw.End()
			return 0, fmt.Errorf("failed to queue render status update: %w", err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	updated := 0
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return updated, fmt.Errorf("failed to update render status: %w", err)
		}
		updated++
	}
	return updated, nil
}
