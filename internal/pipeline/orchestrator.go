package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Lllllllleong/lessonswarm/internal/llm"
	"github.com/Lllllllleong/lessonswarm/internal/models"
	"github.com/Lllllllleong/lessonswarm/internal/pdfdoc"
)

// ErrInvalidJob tags every input validation failure. The wrapping error's
// message names the violated constraint.
var ErrInvalidJob = errors.New("invalid job")

type invalidJobError struct{ msg string }

func (e *invalidJobError) Error() string        { return e.msg }
func (e *invalidJobError) Is(target error) bool { return target == ErrInvalidJob }

const defaultDocumentName = "document.pdf"

// Job is one document submission.
type Job struct {
	Document     []byte
	DocumentName string
	OwnerID      string
	ProjectID    string
}

// ContextAgents are the document-level agents run before page processing.
type ContextAgents interface {
	GlobalContext(ctx context.Context, doc *llm.Document) models.ContextPacket
	ExtractPages(ctx context.Context, doc *llm.Document, pageHint int) []models.PageContent
}

// FactSink persists extracted facts and reports how many were stored.
type FactSink interface {
	InsertFacts(ctx context.Context, records []models.FactRecord) (int, error)
	// SetRenderStatus moves the rows with the given ids that are still
	// rendering to status.
	SetRenderStatus(ctx context.Context, ids []string, status string) (int, error)
}

// PageCache remembers extracted pages by document hash.
type PageCache interface {
	Get(ctx context.Context, hash string) ([]models.PageContent, bool, error)
	Set(ctx context.Context, hash string, pages []models.PageContent) error
}

// RenderRequest is everything a renderer needs to turn a storyboard into video.
type RenderRequest struct {
	DocumentName string
	DocumentHash string
	OwnerID      string
	ProjectID    string
	Storyboard   []byte
}

// RenderDispatcher hands a storyboard to the video renderer and returns its job id.
type RenderDispatcher interface {
	Dispatch(ctx context.Context, req RenderRequest) (string, error)
}

// Orchestrator drives one document end to end.
type Orchestrator struct {
	agents     ContextAgents
	scheduler  *Scheduler
	facts      FactSink
	cache      PageCache
	dispatcher RenderDispatcher
	log        *slog.Logger
	now        func() time.Time
}

type OrchestratorOption func(*Orchestrator)

func WithPageCache(c PageCache) OrchestratorOption {
	return func(o *Orchestrator) { o.cache = c }
}

func WithRenderDispatcher(d RenderDispatcher) OrchestratorOption {
	return func(o *Orchestrator) { o.dispatcher = d }
}

func WithOrchestratorLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

func NewOrchestrator(agents ContextAgents, scheduler *Scheduler, facts FactSink, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		agents:    agents,
		scheduler: scheduler,
		facts:     facts,
		log:       slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run validates the job, builds the storyboard and persists its facts.
// Errors are only returned before page processing starts; from then on the
// caller always gets a response.
func (o *Orchestrator) Run(ctx context.Context, job Job) (*models.SwarmResponse, error) {
	if len(job.Document) == 0 {
		return nil, &invalidJobError{"No PDF file provided"}
	}
	if strings.TrimSpace(job.OwnerID) == "" {
		return nil, &invalidJobError{"No user_id provided"}
	}
	if job.DocumentName == "" {
		job.DocumentName = defaultDocumentName
	}

	logCtx := o.log.With("documentName", job.DocumentName, "projectId", job.ProjectID)
	logCtx.Info("Swarm run starting.", "sizeBytes", len(job.Document))

	doc := llm.NewDocument(job.DocumentName, job.Document)
	info, err := pdfdoc.Inspect(job.Document)
	if err != nil {
		logCtx.Warn("Could not inspect PDF locally. Continuing without a page hint.", "error", err)
	}
	logCtx = logCtx.With("fileHash", info.Hash)

	cp := o.agents.GlobalContext(ctx, doc)
	logCtx.Info("Global context ready.", "title", cp.PaperTitle, "themes", cp.Themes)

	pages := o.loadPages(ctx, logCtx, doc, info)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("swarm aborted before page processing: %w", err)
	}
	cp.TotalPages = len(pages)

	results := o.scheduler.RunAll(ctx, pages, cp)
	SortByPage(results)

	stats := Summarize(results)
	logCtx.Info("Pages processed.",
		"succeeded", stats.Succeeded,
		"fellBack", stats.FellBack,
		"facts", stats.Facts,
		"concepts", stats.Concepts,
	)

	resp := &models.SwarmResponse{
		Storyboard:        results,
		Context:           &cp,
		FactsExtracted:    stats.Facts,
		ConceptsExtracted: stats.Concepts,
		PagesProcessed:    stats.Succeeded,
		PagesFailed:       stats.FellBack,
	}

	snapshot, err := json.Marshal(BuildSnapshot(cp, results))
	if err != nil {
		logCtx.Error("Failed to encode storyboard snapshot.", "error", err)
	}

	// Facts must already be rendering when the render is dispatched; the
	// callback only settles rendering rows.
	renderStatus := models.RenderStatusPending
	dispatching := o.dispatcher != nil && snapshot != nil
	if dispatching {
		renderStatus = models.RenderStatusRendering
	}
	records := FactRecords(job, results, snapshot, renderStatus, o.now())
	for i := range records {
		records[i].ID = uuid.NewString()
	}
	resp.FactsSaved = o.persist(ctx, logCtx, records)

	if dispatching {
		jobID, err := o.dispatcher.Dispatch(ctx, RenderRequest{
			DocumentName: job.DocumentName,
			DocumentHash: info.Hash,
			OwnerID:      job.OwnerID,
			ProjectID:    job.ProjectID,
			Storyboard:   snapshot,
		})
		if err != nil {
			logCtx.Error("Render dispatch failed.", "error", err)
			o.revertRendering(ctx, logCtx, records, resp.FactsSaved)
		} else {
			resp.RenderJobID = jobID
			logCtx.Info("Render dispatched.", "renderJobId", jobID)
		}
	}

	resp.FocusScore = FocusScore(results)

	logCtx.Info("Swarm run complete.", "factsSaved", resp.FactsSaved, "focusScore", resp.FocusScore)
	return resp, nil
}

func (o *Orchestrator) loadPages(ctx context.Context, logCtx *slog.Logger, doc *llm.Document, info pdfdoc.Info) []models.PageContent {
	if o.cache != nil && info.Hash != "" {
		pages, ok, err := o.cache.Get(ctx, info.Hash)
		switch {
		case err != nil:
			logCtx.Warn("Page cache lookup failed.", "error", err)
		case ok && len(pages) > 0 && !isPlaceholderExtraction(pages):
			logCtx.Info("Using cached page extraction.", "pageCount", len(pages))
			return pages
		}
	}

	pages := o.agents.ExtractPages(ctx, doc, info.PageCount)

	switch {
	case o.cache == nil || info.Hash == "" || ctx.Err() != nil:
	case isPlaceholderExtraction(pages):
		logCtx.Warn("Page extraction degraded to a single placeholder page. Not caching it.")
	default:
		if err := o.cache.Set(ctx, info.Hash, pages); err != nil {
			logCtx.Warn("Failed to cache page extraction.", "error", err)
		}
	}
	return pages
}

// isPlaceholderExtraction reports whether pages is the synthetic single page
// used when extraction produced nothing.
func isPlaceholderExtraction(pages []models.PageContent) bool {
	return len(pages) == 1 && pages[0].Text == singlePagePlaceholder
}

// persist is best effort: failures are logged and reported as zero saved.
func (o *Orchestrator) persist(ctx context.Context, logCtx *slog.Logger, records []models.FactRecord) int {
	if len(records) == 0 {
		return 0
	}
	if o.facts == nil {
		logCtx.Warn("No fact store configured. Facts were not persisted.", "factCount", len(records))
		return 0
	}
	saved, err := o.facts.InsertFacts(ctx, records)
	if err != nil {
		logCtx.Error("Failed to persist facts.", "error", err, "factCount", len(records))
		return 0
	}
	logCtx.Info("Facts persisted.", "saved", saved)
	return saved
}

// revertRendering moves the facts of a failed dispatch back to pending.
func (o *Orchestrator) revertRendering(ctx context.Context, logCtx *slog.Logger, records []models.FactRecord, saved int) {
	if o.facts == nil || saved == 0 {
		return
	}
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	reverted, err := o.facts.SetRenderStatus(ctx, ids, models.RenderStatusPending)
	if err != nil {
		logCtx.Error("Failed to move facts back to pending. They will stay rendering.", "error", err, "factCount", len(ids))
		return
	}
	logCtx.Info("Facts moved back to pending.", "reverted", reverted)
}

// BuildSnapshot is the storyboard attached to every persisted fact.
func BuildSnapshot(cp models.ContextPacket, results []models.PageResult) models.StoryboardSnapshot {
	pages := make([]models.StoryboardPage, len(results))
	for i, r := range results {
		pages[i] = models.StoryboardPage{
			Page:          r.Page,
			Concepts:      r.Concepts,
			AnimationCode: r.AnimationCode,
			Voiceover:     r.Voiceover,
			Status:        r.Status,
		}
	}
	return models.StoryboardSnapshot{Context: cp, Pages: pages}
}

// FactRecords flattens every page's facts into persistence rows.
func FactRecords(job Job, results []models.PageResult, snapshot []byte, renderStatus string, now time.Time) []models.FactRecord {
	var records []models.FactRecord
	for _, r := range results {
		for _, f := range r.Facts {
			records = append(records, models.FactRecord{
				OwnerID:         job.OwnerID,
				ProjectID:       job.ProjectID,
				DocumentName:    job.DocumentName,
				Fact:            f.Fact,
				PageNumber:      r.Page,
				Category:        f.Category,
				ConfidenceScore: f.ConfidenceScore,
				Storyboard:      snapshot,
				RenderStatus:    renderStatus,
				CreatedAt:       now,
			})
		}
	}
	return records
}
