package chatgpt

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Runtime bundles the shared single-writer resources behind the bridge:
// the controlled page, the session store, the cooldown gate, and the turn
// serializer. It is created once, passed to every client, and torn down
// once; clients never reach around it to the page directly.
type Runtime struct {
	page     Page
	baseURL  string
	sessions *SessionStore
	cooldown *Cooldown
	logger   zerolog.Logger

	// turnGate serializes turns process-wide. The page is a single
	// logical resource; concurrent injections would corrupt each
	// other's markers.
	turnGate sync.Mutex
}

// RuntimeConfig holds runtime construction parameters.
type RuntimeConfig struct {
	BaseURL        string
	SessionTimeout time.Duration
	CooldownPeriod time.Duration
	Logger         zerolog.Logger
}

// DefaultRuntimeConfig returns the default runtime configuration.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		BaseURL:        "https://chat.openai.com",
		SessionTimeout: 15 * time.Second,
		CooldownPeriod: 10 * time.Minute,
	}
}

// NewRuntime creates the shared runtime for a controlled page.
func NewRuntime(page Page, cfg RuntimeConfig) *Runtime {
	cooldown := NewCooldown(cfg.CooldownPeriod, cfg.Logger)
	return &Runtime{
		page:     page,
		baseURL:  cfg.BaseURL,
		sessions: NewSessionStore(page, cfg.BaseURL, cooldown, cfg.SessionTimeout, cfg.Logger),
		cooldown: cooldown,
		logger:   cfg.Logger,
	}
}

// Sessions exposes the session store.
func (rt *Runtime) Sessions() *SessionStore {
	return rt.sessions
}

// Disabled reports whether the runtime is in an access-denied cooldown.
func (rt *Runtime) Disabled() bool {
	return rt.cooldown.Disabled()
}

// ClientConfig holds per-client parameters.
type ClientConfig struct {
	// Model is a render model alias or a raw model name.
	Model string

	// Timeout bounds how long a turn may run before any output arrives.
	Timeout time.Duration

	// StallTimeout bounds how long a non-empty stream may go without
	// growth before the turn returns what it has.
	StallTimeout time.Duration

	// RetryBudget is how many attempts a turn gets before failing
	// terminally.
	RetryBudget int
}

// DefaultClientConfig returns the default client configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Model:        "default",
		Timeout:      60 * time.Second,
		StallTimeout: 30 * time.Second,
		RetryBudget:  2,
	}
}

// Client is one logical conversation against the shared runtime. Multiple
// clients may coexist; their turns queue on the runtime's gate.
type Client struct {
	rt     *Runtime
	bridge *bridge
	cfg    ClientConfig
	logger zerolog.Logger

	mu   sync.Mutex
	conv ConversationState
}

// NewClient creates a client starting a fresh conversation.
func NewClient(rt *Runtime, cfg ClientConfig) *Client {
	c := &Client{
		rt:     rt,
		bridge: newBridge(rt.page, rt.baseURL, rt.logger),
		cfg:    cfg,
		logger: rt.logger.With().Str("component", "client").Logger(),
	}
	c.NewConversation()
	return c
}

// NewConversation abandons the current thread: the parent message id is
// regenerated and the conversation id cleared, so the next turn starts a
// new conversation server-side.
func (c *Client) NewConversation() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conv = ConversationState{ParentMessageID: uuid.NewString()}
}

// Conversation returns a snapshot of the conversation state.
func (c *Client) Conversation() ConversationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conv
}

// AskStream sends a prompt and streams the reply incrementally. onDelta
// (optional) receives each newly produced suffix of the reply; the full
// reply is returned once the stream ends. Transient failures are retried
// internally per the retry budget; only terminal failures surface.
func (c *Client) AskStream(ctx context.Context, prompt string, onDelta func(delta string)) (string, error) {
	c.logger.Debug().Msg("Acquiring turn gate")
	c.rt.turnGate.Lock()
	defer c.rt.turnGate.Unlock()
	c.logger.Debug().Msg("Got turn gate")

	for remaining := c.cfg.RetryBudget; ; {
		if remaining <= 0 {
			c.logger.Error().Msg("Retry budget exhausted")
			return "", newNetworkError()
		}

		if c.rt.sessions.Current() == nil {
			if err := c.rt.sessions.Refresh(ctx); err != nil {
				c.logger.Error().Err(err).Msg("Session refresh failed")
			}
		}
		sess := c.rt.sessions.Current()
		if !sess.Usable() {
			c.logger.Error().Msg("Session not usable, you need to log in")
			return "", newNotLoggedInError()
		}

		// Each attempt starts from a clean slate: fresh markers, fresh
		// diff offset.
		if err := c.bridge.inject(ctx, sess.AccessToken, c.buildRequest(prompt)); err != nil {
			c.bridge.cleanup(ctx)
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			c.logger.Warn().Err(err).Msg("Injection failed, refreshing session and retrying")
			if err := c.rt.sessions.Refresh(ctx); err != nil {
				c.logger.Error().Err(err).Msg("Session refresh failed")
			}
			continue
		}

		res, err := c.bridge.pollStream(ctx, c.cfg.Timeout, c.cfg.StallTimeout, onDelta)
		c.bridge.cleanup(ctx)
		if err != nil {
			if IsCode(err, ErrCodeTimeout) {
				c.logger.Error().Msg("Timed out waiting for response, refreshing session and retrying")
				if err := c.rt.sessions.Refresh(ctx); err != nil {
					c.logger.Error().Err(err).Msg("Session refresh failed")
				}
				remaining--
				continue
			}
			return "", err
		}

		if res.event != nil {
			c.commitTurn(res.event)
			// First completed turn of a conversation gets an
			// auto-generated title; best effort, the turn already
			// succeeded. No-op once titled.
			_ = c.GenerateTitle(ctx)
		}
		return res.text, nil
	}
}

// Ask sends a prompt and returns the full reply. An empty reply triggers
// a session refresh and a retry with a decremented budget.
func (c *Client) Ask(ctx context.Context, prompt string) (string, error) {
	for remaining := c.cfg.RetryBudget; ; remaining-- {
		if remaining <= 0 {
			c.logger.Error().Msg("Repeatedly received an empty response")
			return "", &Error{Code: ErrCodeResponseDecode, Message: "repeatedly received an empty response"}
		}

		reply, err := c.AskStream(ctx, prompt, nil)
		if err != nil {
			return "", err
		}
		if reply != "" {
			return reply, nil
		}

		c.logger.Error().Msg("Received an empty response, refreshing session and retrying")
		if err := c.rt.sessions.Refresh(ctx); err != nil {
			c.logger.Error().Err(err).Msg("Session refresh failed")
		}
	}
}

func (c *Client) buildRequest(prompt string) conversationRequest {
	c.mu.Lock()
	defer c.mu.Unlock()

	var convID *string
	if c.conv.ConversationID != "" {
		id := c.conv.ConversationID
		convID = &id
	}
	return conversationRequest{
		Messages: []requestMessage{{
			ID:   uuid.NewString(),
			Role: "user",
			Content: requestContent{
				ContentType: "text",
				Parts:       []string{prompt},
			},
		}},
		Model:           ResolveModel(c.cfg.Model),
		ConversationID:  convID,
		ParentMessageID: c.conv.ParentMessageID,
		Action:          "next",
	}
}

// commitTurn advances the conversation state from a successful turn's
// terminal event. Failed or retried turns never reach this point.
func (c *Client) commitTurn(event *StreamEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conv.ParentMessageID = event.Message.ID
	c.conv.ConversationID = event.ConversationID
}
