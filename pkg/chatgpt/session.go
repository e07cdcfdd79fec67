package chatgpt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	// The anti-bot interstitial shown while the site vets the browser.
	interstitialText = "Please stand by, while we are checking your browser"

	// Text found inside the block page's error details element.
	accessDeniedText = "Access denied"

	// Selector for the block page's error details element.
	accessDeniedSelector = "div.cf-error-details"

	interstitialWait = 10 * time.Second
)

// SessionStore owns the authentication session. The session is refreshed
// by navigating the controlled page to the auth endpoint and parsing the
// JSON the server renders into the document; a plain host-side request
// would not pass the site's browser check. The current session is
// published atomically so readers never observe a half-built value.
type SessionStore struct {
	page     Page
	baseURL  string
	cooldown *Cooldown
	timeout  time.Duration
	logger   zerolog.Logger

	current atomic.Pointer[Session]

	// wait is swapped out in tests
	wait func(ctx context.Context, d time.Duration) error
}

// NewSessionStore creates a session store bound to a page.
func NewSessionStore(page Page, baseURL string, cooldown *Cooldown, timeout time.Duration, logger zerolog.Logger) *SessionStore {
	return &SessionStore{
		page:     page,
		baseURL:  baseURL,
		cooldown: cooldown,
		timeout:  timeout,
		logger:   logger.With().Str("component", "session").Logger(),
		wait:     sleepCtx,
	}
}

// Current returns the active session, or nil if none has been established.
func (s *SessionStore) Current() *Session {
	return s.current.Load()
}

// Refresh re-establishes the session by loading the auth endpoint in the
// page and extracting the embedded JSON. An unparsable document is a
// SessionRefresh error (commonly an anti-bot interstitial rather than a
// true absence of JSON); the chat page is restored either way so the next
// turn starts from a known location.
func (s *SessionStore) Refresh(ctx context.Context) error {
	s.logger.Info().Msg("Refreshing session")

	sessionURL := s.baseURL + "/api/auth/session"
	if err := s.page.Navigate(ctx, sessionURL, s.timeout); err != nil {
		s.logger.Error().Err(err).Msg("Timed out loading session endpoint, re-establishing page")
		if err := s.LoadChat(ctx); err != nil {
			return err
		}
	}

	sess, err := s.extractSession(ctx)

	// Always leave the page back at the chat UI.
	if loadErr := s.LoadChat(ctx); loadErr != nil {
		return loadErr
	}

	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to decode session, maybe access denied?")
		return err
	}

	s.current.Store(sess)
	s.logger.Info().Msg("Successfully refreshed session")
	return nil
}

// extractSession reads the rendered document and parses the outermost
// {...} span as JSON. The browser wraps the endpoint's raw JSON body in
// markup, so the span is located by the first '{' and the last '}'.
func (s *SessionStore) extractSession(ctx context.Context) (*Session, error) {
	contents, err := s.page.Content(ctx)
	if err != nil {
		return nil, &Error{Code: ErrCodeSessionRefresh, Message: "failed to read session document", Err: err}
	}

	if strings.Contains(contents, interstitialText) {
		s.logger.Debug().Msg("Browser check interstitial detected, waiting")
		if err := s.wait(ctx, interstitialWait); err != nil {
			return nil, err
		}
		contents, err = s.page.Content(ctx)
		if err != nil {
			return nil, &Error{Code: ErrCodeSessionRefresh, Message: "failed to re-read session document", Err: err}
		}
	}

	start := strings.Index(contents, "{")
	end := strings.LastIndex(contents, "}")
	if start < 0 || end < start {
		return nil, &Error{Code: ErrCodeSessionRefresh, Message: "no JSON object found in session document"}
	}

	raw := map[string]any{}
	if err := json.Unmarshal([]byte(contents[start:end+1]), &raw); err != nil {
		return nil, &Error{Code: ErrCodeSessionRefresh, Message: "failed to decode session JSON", Err: err}
	}

	sess := &Session{Raw: raw}
	if tok, ok := raw["accessToken"].(string); ok {
		sess.AccessToken = tok
	}
	s.logger.Debug().Bool("usable", sess.Usable()).Msg("Session decoded")
	return sess, nil
}

// LoadChat navigates the page to the chat UI. An access-denied block page
// trips the global cooldown and the load is re-attempted once the window
// elapses.
func (s *SessionStore) LoadChat(ctx context.Context) error {
	for {
		s.logger.Info().Msg("Loading chat page")
		if err := s.page.Navigate(ctx, s.baseURL, s.timeout); err != nil {
			denied, checkErr := s.accessDenied(ctx)
			if checkErr != nil {
				return checkErr
			}
			if !denied {
				return &Error{Code: ErrCodeNetwork, Message: fmt.Sprintf("failed to load %s", s.baseURL), Err: err}
			}
			if err := s.cooldown.Trip(ctx); err != nil {
				return err
			}
			continue
		}

		denied, err := s.accessDenied(ctx)
		if err != nil {
			return err
		}
		if denied {
			if err := s.cooldown.Trip(ctx); err != nil {
				return err
			}
			continue
		}

		s.logger.Info().Msg("Chat page loaded")
		return nil
	}
}

func (s *SessionStore) accessDenied(ctx context.Context) (bool, error) {
	text, found, err := s.page.ElementText(ctx, accessDeniedSelector)
	if err != nil {
		return false, &Error{Code: ErrCodeAccessDenied, Message: "failed to inspect page for block state", Err: err}
	}
	return found && strings.Contains(text, accessDeniedText), nil
}
