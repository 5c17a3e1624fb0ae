package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/Lllllllleong/lessonswarm/internal/gcp"
	"github.com/Lllllllleong/lessonswarm/internal/llm"
	"github.com/Lllllllleong/lessonswarm/internal/models"
)

const (
	MaxChatMessages   = 50
	MaxChatContentLen = 10000
)

// --- Chat Relay Prompt ---
const DefaultChatSystemPrompt = `You are a learning assistant for students who find dense material hard to follow.

Core principles:
- Be concise and direct. High information, low fluff.
- Use bullet points and short paragraphs (2-3 sentences max).
- Explain complex terms from the very base level, with everyday analogies.
- Put the most important point first and highlight key takeaways in **bold**.

Mirror the user's register: answer casual questions casually and formal questions formally, then steer back to the lesson.`

// Messages returned to chat callers. Internal detail never leaves the server.
const (
	chatRateLimitedMessage = "Rate limit exceeded. Please try again in a moment."
	chatOutOfCredits       = "Usage limit reached. Please add credits to continue."
	chatUpstreamMessage    = "AI service temporarily unavailable"
	chatGenericMessage     = "Something went wrong. Please try again."
)

var validChatRoles = map[string]bool{"user": true, "assistant": true, "system": true}

var scriptBlock = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)

// ChatStreamer opens a streamed completion for a conversation.
type ChatStreamer interface {
	Stream(ctx context.Context, systemPrompt string, messages []llm.Message) (io.ReadCloser, error)
}

// ChatError is a failed relay with the status and message to show the caller.
type ChatError struct {
	Status  int
	Message string
	Err     error
}

func (e *ChatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ChatError) Unwrap() error { return e.Err }

// ChatRelay forwards a validated conversation to the gateway with a fixed
// system prompt.
type ChatRelay struct {
	streamer     ChatStreamer
	systemPrompt string
}

// NewChatRelay creates a new ChatRelay from the environment.
func NewChatRelay(ctx context.Context) (*ChatRelay, error) {
	apiKey := gcp.GetEnv("LLM_GATEWAY_API_KEY", "")
	if apiKey == "" {
		return nil, fmt.Errorf("LLM_GATEWAY_API_KEY environment variable must be set")
	}
	backend := llm.NewGatewayBackend(
		gcp.GetEnv("LLM_GATEWAY_URL", llm.DefaultGatewayURL),
		apiKey,
		gcp.GetEnv("LLM_MODEL", ""),
		nil,
	)
	return NewChatRelayWith(backend, gcp.GetEnv("CHAT_SYSTEM_PROMPT", DefaultChatSystemPrompt)), nil
}

func NewChatRelayWith(streamer ChatStreamer, systemPrompt string) *ChatRelay {
	if systemPrompt == "" {
		systemPrompt = DefaultChatSystemPrompt
	}
	return &ChatRelay{streamer: streamer, systemPrompt: systemPrompt}
}

// ValidateChatRequest decodes and sanitizes a raw chat request body. Every
// returned error is a *ValidationError.
func ValidateChatRequest(body []byte) (*models.ChatRequest, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return nil, invalid("Invalid request body")
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw["messages"], &items); err != nil || items == nil {
		return nil, invalid("Messages must be an array")
	}
	if len(items) == 0 {
		return nil, invalid("Messages array cannot be empty")
	}
	if len(items) > MaxChatMessages {
		return nil, invalid(fmt.Sprintf("Too many messages (max %d)", MaxChatMessages))
	}

	req := &models.ChatRequest{Messages: make([]models.ChatMessage, 0, len(items))}
	for i, item := range items {
		var msg map[string]any
		if err := json.Unmarshal(item, &msg); err != nil || msg == nil {
			return nil, invalid(fmt.Sprintf("Message at index %d is invalid", i))
		}
		role, ok := msg["role"].(string)
		if !ok || !validChatRoles[role] {
			return nil, invalid(fmt.Sprintf("Invalid role at message %d", i))
		}
		content, ok := msg["content"].(string)
		if !ok {
			return nil, invalid(fmt.Sprintf("Content must be a string at message %d", i))
		}
		content = SanitizeChatContent(content)
		if content == "" {
			return nil, invalid(fmt.Sprintf("Empty content at message %d", i))
		}
		req.Messages = append(req.Messages, models.ChatMessage{Role: role, Content: content})
	}
	return req, nil
}

// SanitizeChatContent caps the length, strips script blocks and trims.
func SanitizeChatContent(s string) string {
	if len(s) > MaxChatContentLen {
		runes := []rune(s)
		if len(runes) > MaxChatContentLen {
			s = string(runes[:MaxChatContentLen])
		}
	}
	return strings.TrimSpace(scriptBlock.ReplaceAllString(s, ""))
}

// Open starts the upstream stream. Failures are returned as *ChatError.
func (r *ChatRelay) Open(ctx context.Context, req *models.ChatRequest) (io.ReadCloser, error) {
	messages := make([]llm.Message, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = llm.Message{Role: m.Role, Content: m.Content}
	}
	slog.Info("Processing chat request.", "messageCount", len(messages))

	stream, err := r.streamer.Stream(ctx, r.systemPrompt, messages)
	if err != nil {
		return nil, classifyChatError(err)
	}
	return stream, nil
}

func classifyChatError(err error) *ChatError {
	var status *llm.StatusError
	if !errors.As(err, &status) {
		slog.Error("Chat relay failed.", "error", err)
		return &ChatError{Status: http.StatusInternalServerError, Message: chatGenericMessage, Err: err}
	}
	switch status.Code {
	case http.StatusTooManyRequests:
		slog.Error("Rate limit exceeded.")
		return &ChatError{Status: http.StatusTooManyRequests, Message: chatRateLimitedMessage, Err: err}
	case http.StatusPaymentRequired:
		slog.Error("Usage limit reached.")
		return &ChatError{Status: http.StatusPaymentRequired, Message: chatOutOfCredits, Err: err}
	default:
		slog.Error("AI gateway error.", "status", status.Code, "body", status.Body)
		return &ChatError{Status: http.StatusInternalServerError, Message: chatUpstreamMessage, Err: err}
	}
}
