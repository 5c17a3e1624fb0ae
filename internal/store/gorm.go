package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/Lllllllleong/lessonswarm/internal/models"
)

const insertBatchSize = 100

// KnowledgeBaseRow is one fact in the relational knowledge base.
type KnowledgeBaseRow struct {
	ID              string         `gorm:"column:id;primaryKey" json:"id"`
	UserID          string         `gorm:"column:user_id;not null;index:idx_kb_render" json:"user_id"`
	ProjectID       *string        `gorm:"column:project_id;index" json:"project_id"`
	PDFName         string         `gorm:"column:pdf_name;not null;index:idx_kb_render" json:"pdf_name"`
	Fact            string         `gorm:"column:fact;not null" json:"fact"`
	PageNumber      int            `gorm:"column:page_number;not null" json:"page_number"`
	LineReference   *string        `gorm:"column:line_reference" json:"line_reference"`
	Category        string         `gorm:"column:category;not null" json:"category"`
	ConfidenceScore float64        `gorm:"column:confidence_score;not null" json:"confidence_score"`
	Storyboard      datatypes.JSON `gorm:"column:storyboard" json:"storyboard"`
	RenderStatus    string         `gorm:"column:render_status;not null;index:idx_kb_render" json:"render_status"`
	VideoURL        string         `gorm:"column:video_url" json:"video_url,omitempty"`
	CreatedAt       time.Time      `gorm:"column:created_at;not null;index" json:"created_at"`
}

func (KnowledgeBaseRow) TableName() string { return "knowledge_base" }

type GormFactStore struct {
	db *gorm.DB
}

func NewGormFactStore(db *gorm.DB) *GormFactStore {
	return &GormFactStore{db: db}
}

// OpenPostgres connects to DATABASE_URL and migrates the knowledge base table.
func OpenPostgres(dsn string) (*GormFactStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set when FACT_STORE=postgres")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	s := NewGormFactStore(db)
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *GormFactStore) Migrate() error {
	if err := s.db.AutoMigrate(&KnowledgeBaseRow{}); err != nil {
		return fmt.Errorf("failed to migrate knowledge_base: %w", err)
	}
	return nil
}

func rowFromRecord(r models.FactRecord) KnowledgeBaseRow {
	id := r.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return KnowledgeBaseRow{
		ID:              id,
		UserID:          r.OwnerID,
		ProjectID:       nullable(r.ProjectID),
		PDFName:         r.DocumentName,
		Fact:            r.Fact,
		PageNumber:      r.PageNumber,
		Category:        r.Category,
		ConfidenceScore: r.ConfidenceScore,
		Storyboard:      datatypes.JSON(r.Storyboard),
		RenderStatus:    r.RenderStatus,
		VideoURL:        r.VideoURL,
		CreatedAt:       createdAt,
	}
}

func (s *GormFactStore) InsertFacts(ctx context.Context, records []models.FactRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	rows := make([]KnowledgeBaseRow, len(records))
	for i, r := range records {
		rows[i] = rowFromRecord(r)
	}
	res := s.db.WithContext(ctx).CreateInBatches(rows, insertBatchSize)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to insert facts: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (s *GormFactStore) CompleteRender(ctx context.Context, pdfName, userID, status, videoURL string) (int, error) {
	updates := map[string]any{"render_status": status}
	if videoURL != "" {
		updates["video_url"] = videoURL
	}
	res := s.db.WithContext(ctx).
		Model(&KnowledgeBaseRow{}).
		Where("pdf_name = ? AND user_id = ? AND render_status = ?", pdfName, userID, models.RenderStatusRendering).
		Updates(updates)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to update render status: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (s *GormFactStore) SetRenderStatus(ctx context.Context, ids []string, status string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Model(&KnowledgeBaseRow{}).
		Where("id IN ? AND render_status = ?", ids, models.RenderStatusRendering).
		Update("render_status", status)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to set render status: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// nullable maps an empty string to NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
