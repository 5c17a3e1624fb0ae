package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultGatewayURL = "https://ai.gateway.lovable.dev/v1/chat/completions"
	DefaultModel      = "google/gemini-2.5-flash"
)

// StatusError is returned when the gateway answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway error (%d): %s", e.Code, e.Body)
}

// GatewayBackend talks to an OpenAI-compatible chat completions endpoint.
type GatewayBackend struct {
	url        string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewGatewayBackend creates a backend for the given endpoint. Empty url and
// model fall back to the defaults.
func NewGatewayBackend(url, apiKey, model string, httpClient *http.Client) *GatewayBackend {
	if url == "" {
		url = DefaultGatewayURL
	}
	if model == "" {
		model = DefaultModel
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Minute}
	}
	return &GatewayBackend{url: url, apiKey: apiKey, model: model, httpClient: httpClient}
}

type gatewayRequest struct {
	Model    string           `json:"model"`
	Messages []gatewayMessage `json:"messages"`
	Stream   bool             `json:"stream,omitempty"`
}

type gatewayMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type gatewayPart struct {
	Type string       `json:"type"`
	Text string       `json:"text,omitempty"`
	File *gatewayFile `json:"file,omitempty"`
}

type gatewayFile struct {
	Filename string `json:"filename"`
	FileData string `json:"file_data"`
}

type gatewayResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func userContent(content Content) any {
	if content.Document == nil {
		return content.Text
	}
	return []gatewayPart{
		{Type: "text", Text: content.Text},
		{Type: "file", File: &gatewayFile{Filename: content.Document.Name, FileData: content.Document.DataURL()}},
	}
}

// Complete sends one completion request and returns the first choice's text.
func (g *GatewayBackend) Complete(ctx context.Context, systemPrompt string, content Content) (string, error) {
	reqBody := gatewayRequest{
		Model: g.model,
		Messages: []gatewayMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent(content)},
		},
	}

	resp, err := g.post(ctx, reqBody)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read gateway response: %w", err)
	}

	var parsed gatewayResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse gateway response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", nil
	}
	return parsed.Choices[0].Message.Content, nil
}

// Stream forwards a conversation with stream=true and hands back the raw
// event-stream body. The caller must close it.
func (g *GatewayBackend) Stream(ctx context.Context, systemPrompt string, messages []Message) (io.ReadCloser, error) {
	msgs := make([]gatewayMessage, 0, len(messages)+1)
	msgs = append(msgs, gatewayMessage{Role: "system", Content: systemPrompt})
	for _, m := range messages {
		msgs = append(msgs, gatewayMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := g.post(ctx, gatewayRequest{Model: g.model, Messages: msgs, Stream: true})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// post returns the response only for 2xx statuses; everything else is turned
// into a *StatusError and the body is closed.
func (g *GatewayBackend) post(ctx context.Context, reqBody gatewayRequest) (*http.Response, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}
