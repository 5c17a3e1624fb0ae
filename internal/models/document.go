package models

import "time"

// Page statuses.
const (
	PageStatusSuccess  = "success"
	PageStatusFallback = "fallback"
)

// Render statuses carried by persisted facts.
const (
	RenderStatusPending   = "pending"
	RenderStatusRendering = "rendering"
	RenderStatusComplete  = "complete"
	RenderStatusError     = "error"
)

// ContextPacket is the document-level metadata produced once per document by
// the global context agent and read by every per-page agent.
type ContextPacket struct {
	PaperTitle     string   `json:"paper_title"`
	MainGoal       string   `json:"main_goal"`
	Themes         []string `json:"themes"`
	KeyTerminology []string `json:"key_terminology"`
	TargetAudience string   `json:"target_audience"`
	TotalPages     int      `json:"total_pages"`
}

// PageContent is the raw extracted text of one page.
type PageContent struct {
	Number int    `json:"page"`
	Text   string `json:"content"`
}

type ConceptExplanation struct {
	Term            string `json:"term"`
	Definition      string `json:"definition"`
	BeginnerAnalogy string `json:"beginner_analogy"`
	Difficulty      string `json:"difficulty"`
}

type ExtractedFact struct {
	Fact            string  `json:"fact"`
	Category        string  `json:"category"`
	ConfidenceScore float64 `json:"confidence_score"`
}

// PageResult is the per-page aggregate. Exactly one exists per extracted page.
type PageResult struct {
	Page          int                  `json:"page"`
	Concepts      []ConceptExplanation `json:"concepts"`
	Facts         []ExtractedFact      `json:"facts"`
	AnimationCode string               `json:"animation_code"`
	Voiceover     string               `json:"voiceover"`
	Status        string               `json:"status"`
	Error         string               `json:"error,omitempty"`
}

// SwarmResponse is the orchestrator's terminal output.
type SwarmResponse struct {
	Storyboard        []PageResult   `json:"storyboard"`
	Context           *ContextPacket `json:"context"`
	FocusScore        int            `json:"focus_score"`
	FactsExtracted    int            `json:"facts_extracted"`
	ConceptsExtracted int            `json:"concepts_extracted"`
	PagesProcessed    int            `json:"pages_processed"`
	PagesFailed       int            `json:"pages_failed"`
	FactsSaved        int            `json:"facts_saved"`
	RenderJobID       string         `json:"render_job_id,omitempty"`
	Error             string         `json:"error,omitempty"`
}

// StoryboardPage is the slimmed page shape kept in the denormalized snapshot.
type StoryboardPage struct {
	Page          int                  `json:"page"`
	Concepts      []ConceptExplanation `json:"concepts"`
	AnimationCode string               `json:"animation_code"`
	Voiceover     string               `json:"voiceover"`
	Status        string               `json:"status"`
}

// StoryboardSnapshot is attached to every persisted fact of a document.
type StoryboardSnapshot struct {
	Context ContextPacket    `json:"context"`
	Pages   []StoryboardPage `json:"pages"`
}

// FactRecord is one row of the knowledge base.
type FactRecord struct {
	ID              string
	OwnerID         string
	ProjectID       string
	DocumentName    string
	Fact            string
	PageNumber      int
	Category        string
	ConfidenceScore float64
	Storyboard      []byte
	RenderStatus    string
	VideoURL        string
	CreatedAt       time.Time
}
