package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saran/chatbridge/pkg/chatgpt"
)

// stubAsker scripts the conversational surface behind the gateway.
type stubAsker struct {
	reply  string
	deltas []string
	err    error
	conv   chatgpt.ConversationState

	prompts []string
}

func (s *stubAsker) Ask(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.reply, s.err
}

func (s *stubAsker) AskStream(_ context.Context, prompt string, onDelta func(string)) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	for _, d := range s.deltas {
		if onDelta != nil {
			onDelta(d)
		}
	}
	return s.reply, nil
}

func (s *stubAsker) Conversation() chatgpt.ConversationState {
	return s.conv
}

func newTestServer(t *testing.T, asker Asker, disabled func() bool) *httptest.Server {
	t.Helper()
	s, err := NewServer(Config{
		Port:     5151,
		Client:   asker,
		Disabled: disabled,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	ts := httptest.NewServer(s.server.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestNewServerValidation(t *testing.T) {
	_, err := NewServer(Config{Port: 0, Client: &stubAsker{}})
	assert.Error(t, err)

	_, err = NewServer(Config{Port: 5151})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, &stubAsker{}, func() bool { return true })

	res, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var health HealthResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.True(t, health.Disabled)
}

func TestAsk(t *testing.T) {
	asker := &stubAsker{
		reply: "the answer",
		conv:  chatgpt.ConversationState{ConversationID: "conv-1"},
	}
	ts := newTestServer(t, asker, nil)

	body := bytes.NewBufferString(`{"prompt":"what is the question?"}`)
	res, err := http.Post(ts.URL+"/v1/ask", "application/json", body)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var out AskResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	assert.Equal(t, "the answer", out.Reply)
	assert.Equal(t, "conv-1", out.ConversationID)
	assert.NotEmpty(t, out.RequestID)
	assert.Equal(t, []string{"what is the question?"}, asker.prompts)
}

func TestAskBadRequest(t *testing.T) {
	ts := newTestServer(t, &stubAsker{}, nil)

	for _, body := range []string{``, `{}`, `{"prompt":""}`, `not json`} {
		res, err := http.Post(ts.URL+"/v1/ask", "application/json", bytes.NewBufferString(body))
		require.NoError(t, err)
		res.Body.Close()
		assert.Equal(t, http.StatusBadRequest, res.StatusCode, "body %q", body)
	}
}

func TestAskErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "not logged in",
			err:        &chatgpt.Error{Code: chatgpt.ErrCodeNotLoggedIn, Message: "log in"},
			wantStatus: http.StatusUnauthorized,
			wantCode:   chatgpt.ErrCodeNotLoggedIn,
		},
		{
			name:       "network",
			err:        &chatgpt.Error{Code: chatgpt.ErrCodeNetwork, Message: "down"},
			wantStatus: http.StatusBadGateway,
			wantCode:   chatgpt.ErrCodeNetwork,
		},
		{
			name:       "timeout",
			err:        &chatgpt.Error{Code: chatgpt.ErrCodeTimeout, Message: "slow"},
			wantStatus: http.StatusBadGateway,
			wantCode:   chatgpt.ErrCodeTimeout,
		},
		{
			name:       "decode",
			err:        &chatgpt.Error{Code: chatgpt.ErrCodeResponseDecode, Message: "garbled"},
			wantStatus: http.StatusBadGateway,
			wantCode:   chatgpt.ErrCodeResponseDecode,
		},
		{
			name:       "unclassified",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, &stubAsker{err: tt.err}, nil)

			res, err := http.Post(ts.URL+"/v1/ask", "application/json",
				bytes.NewBufferString(`{"prompt":"hi"}`))
			require.NoError(t, err)
			defer res.Body.Close()
			assert.Equal(t, tt.wantStatus, res.StatusCode)

			var out ErrorResponse
			require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
			assert.Equal(t, tt.wantCode, out.Code)
			assert.NotEmpty(t, out.RequestID)
		})
	}
}

func dialStream(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestStream(t *testing.T) {
	asker := &stubAsker{
		reply:  "Good night!",
		deltas: []string{"Good ", "night!"},
		conv:   chatgpt.ConversationState{ConversationID: "conv-1"},
	}
	ts := newTestServer(t, asker, nil)
	conn := dialStream(t, ts)

	require.NoError(t, conn.WriteJSON(AskRequest{Prompt: "hi"}))

	var frames []StreamFrame
	for {
		var f StreamFrame
		require.NoError(t, conn.ReadJSON(&f))
		frames = append(frames, f)
		if f.Type != FrameDelta {
			break
		}
	}

	require.Len(t, frames, 3)
	assert.Equal(t, FrameDelta, frames[0].Type)
	assert.Equal(t, "Good ", frames[0].Delta)
	assert.Equal(t, "night!", frames[1].Delta)

	done := frames[2]
	assert.Equal(t, FrameDone, done.Type)
	assert.Equal(t, "Good night!", done.Reply)
	assert.Equal(t, "conv-1", done.ConversationID)
}

func TestStreamError(t *testing.T) {
	asker := &stubAsker{err: &chatgpt.Error{Code: chatgpt.ErrCodeNotLoggedIn, Message: "log in"}}
	ts := newTestServer(t, asker, nil)
	conn := dialStream(t, ts)

	require.NoError(t, conn.WriteJSON(AskRequest{Prompt: "hi"}))

	var f StreamFrame
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, FrameError, f.Type)
	assert.Equal(t, chatgpt.ErrCodeNotLoggedIn, f.Code)
}

func TestStreamBadFirstFrame(t *testing.T) {
	ts := newTestServer(t, &stubAsker{}, nil)
	conn := dialStream(t, ts)

	require.NoError(t, conn.WriteJSON(AskRequest{}))

	var f StreamFrame
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, FrameError, f.Type)
	assert.Equal(t, "BAD_REQUEST", f.Code)
}
