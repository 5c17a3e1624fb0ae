package models

// These structs define the JSON payloads exchanged with the render service
// and the chat client.

// RenderCallbackRequest is posted by the external renderer when a job settles.
type RenderCallbackRequest struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	VideoURL  string `json:"video_url,omitempty"`
	VideoData string `json:"video_data,omitempty"` // base64 encoded mp4
	PDFName   string `json:"pdf_name"`
	UserID    string `json:"user_id"`
	Error     string `json:"error,omitempty"`
}

// RenderCallbackResponse is returned to the renderer.
type RenderCallbackResponse struct {
	Success      bool   `json:"success"`
	UpdatedCount int    `json:"updated_count"`
	VideoURL     string `json:"video_url,omitempty"`
	Error        string `json:"error,omitempty"`
}

// RenderJob is the argument handed to the render workflow.
type RenderJob struct {
	JobID         string `json:"job_id"`
	PDFName       string `json:"pdf_name"`
	UserID        string `json:"user_id"`
	ProjectID     string `json:"project_id,omitempty"`
	StoryboardURI string `json:"storyboard_uri"`
	CallbackURL   string `json:"callback_url,omitempty"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
}
