package chatgpt

import (
	"context"
	"strings"
	"time"
)

// Render model aliases accepted in configuration. Raw model names pass
// through unchanged.
var renderModels = map[string]string{
	"default":     "text-davinci-002-render-sha",
	"legacy-paid": "text-davinci-002-render-paid",
	"legacy-free": "text-davinci-002-render",
}

// ResolveModel maps a model alias to the wire-level model name. An empty
// alias resolves as "default".
func ResolveModel(alias string) string {
	if alias == "" {
		alias = "default"
	}
	if m, ok := renderModels[alias]; ok {
		return m
	}
	return alias
}

// Page is the minimal surface of a controlled browser page the bridge
// drives. pkg/browser provides the rod-backed implementation; tests
// substitute a scripted fake.
type Page interface {
	// Navigate loads a URL and waits for the load to settle, bounded by
	// timeout.
	Navigate(ctx context.Context, url string, timeout time.Duration) error

	// Content returns the fully rendered document markup.
	Content(ctx context.Context) (string, error)

	// Eval runs a script in the page context and returns its result
	// stringified. Promises are awaited.
	Eval(ctx context.Context, js string) (string, error)

	// ElementText returns the inner text of the first element matching
	// the selector, and whether such an element exists. A missing
	// element is not an error.
	ElementText(ctx context.Context, selector string) (string, bool, error)
}

// Session holds the authentication material extracted from the session
// endpoint. Replaced wholesale on every refresh, never mutated in place.
type Session struct {
	AccessToken string
	Raw         map[string]any
}

// Usable reports whether the session carries a credential. An unusable
// session is the not-logged-in state, not an error to retry.
func (s *Session) Usable() bool {
	return s != nil && s.AccessToken != ""
}

// ConversationState threads turns into one logical conversation.
type ConversationState struct {
	ConversationID  string
	ParentMessageID string
	TitleAssigned   bool
}

// StreamEvent is one decoded side-channel event. It lives for a single
// polling iteration.
type StreamEvent struct {
	Message struct {
		ID      string `json:"id"`
		Content struct {
			ContentType string   `json:"content_type"`
			Parts       []string `json:"parts"`
		} `json:"content"`
	} `json:"message"`
	ConversationID string `json:"conversation_id"`
}

// Text returns the cumulative message carried by the event.
func (e *StreamEvent) Text() string {
	return strings.Join(e.Message.Content.Parts, "\n")
}

// conversationRequest is the payload injected into the page context.
type conversationRequest struct {
	Messages        []requestMessage `json:"messages"`
	Model           string           `json:"model"`
	ConversationID  *string          `json:"conversation_id"`
	ParentMessageID string           `json:"parent_message_id"`
	Action          string           `json:"action"`
}

type requestMessage struct {
	ID      string         `json:"id"`
	Role    string         `json:"role"`
	Content requestContent `json:"content"`
}

type requestContent struct {
	ContentType string   `json:"content_type"`
	Parts       []string `json:"parts"`
}

// ConversationSummary is one entry from the conversations list endpoint.
type ConversationSummary struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	CreateTime string `json:"create_time"`
}
