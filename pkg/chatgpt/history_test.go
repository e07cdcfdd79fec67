package chatgpt

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHistory(t *testing.T) {
	page := newFakePage()
	page.fetchFn = func(js string) (string, error) {
		assert.Contains(t, js, `"GET"`)
		assert.Contains(t, js, "/backend-api/conversations?limit=20&offset=0")
		assert.Contains(t, js, "Bearer tok")
		return `{"items":[
			{"id":"conv-1","title":"First","create_time":"2026-08-01T10:00:00Z"},
			{"id":"conv-2","title":"Second","create_time":"2026-08-02T10:00:00Z"}
		],"total":2}`, nil
	}

	rt := newTestRuntime(page)
	seedSession(rt, "tok")
	c := newTestClient(rt, fastConfig())

	items, err := c.GetHistory(context.Background(), 0, 20)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "conv-1", items[0].ID)
	assert.Equal(t, "First", items[0].Title)
	assert.Equal(t, "2026-08-02T10:00:00Z", items[1].CreateTime)
}

func TestGetHistoryDecodeError(t *testing.T) {
	page := newFakePage()
	page.fetchFn = func(string) (string, error) { return "<html>gateway error</html>", nil }

	rt := newTestRuntime(page)
	seedSession(rt, "tok")
	c := newTestClient(rt, fastConfig())

	_, err := c.GetHistory(context.Background(), 0, 20)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeAPIRequest))
}

func TestGetConversation(t *testing.T) {
	page := newFakePage()
	page.fetchFn = func(js string) (string, error) {
		assert.Contains(t, js, "/backend-api/conversation/conv-42")
		return `{"title":"Answers","mapping":{}}`, nil
	}

	rt := newTestRuntime(page)
	seedSession(rt, "tok")
	c := newTestClient(rt, fastConfig())

	detail, err := c.GetConversation(context.Background(), "conv-42")
	require.NoError(t, err)
	assert.Equal(t, "Answers", detail["title"])
}

func TestSetTitle(t *testing.T) {
	page := newFakePage()
	var got string
	page.fetchFn = func(js string) (string, error) {
		got = js
		return `{"success":true}`, nil
	}

	rt := newTestRuntime(page)
	seedSession(rt, "tok")
	c := newTestClient(rt, fastConfig())

	require.NoError(t, c.SetTitle(context.Background(), "My chat", "conv-7"))
	assert.Contains(t, got, `"PATCH"`)
	assert.Contains(t, got, "/backend-api/conversation/conv-7")
	assert.Contains(t, got, `"title":"My chat"`)
}

func TestSetTitleDefaultsToCurrentConversation(t *testing.T) {
	page := newFakePage()
	var got string
	page.fetchFn = func(js string) (string, error) {
		got = js
		return "{}", nil
	}

	rt := newTestRuntime(page)
	seedSession(rt, "tok")
	c := newTestClient(rt, fastConfig())

	err := c.SetTitle(context.Background(), "t", "")
	require.Error(t, err, "no current conversation to title yet")
	assert.True(t, IsCode(err, ErrCodeAPIRequest))

	c.commitTurn(&StreamEvent{ConversationID: "conv-cur"})
	require.NoError(t, c.SetTitle(context.Background(), "t", ""))
	assert.Contains(t, got, "/backend-api/conversation/conv-cur")
}

func TestDeleteConversation(t *testing.T) {
	page := newFakePage()
	var got string
	page.fetchFn = func(js string) (string, error) {
		got = js
		return "{}", nil
	}

	rt := newTestRuntime(page)
	seedSession(rt, "tok")
	c := newTestClient(rt, fastConfig())

	t.Run("no current conversation is a no-op", func(t *testing.T) {
		require.NoError(t, c.DeleteConversation(context.Background(), ""))
		assert.Empty(t, got)
	})

	t.Run("soft-deletes by id", func(t *testing.T) {
		require.NoError(t, c.DeleteConversation(context.Background(), "conv-3"))
		assert.Contains(t, got, `"PATCH"`)
		assert.Contains(t, got, "/backend-api/conversation/conv-3")
		assert.Contains(t, got, `"is_visible":false`)
	})
}

func TestGenerateTitle(t *testing.T) {
	page := newFakePage()
	var calls []string
	page.fetchFn = func(js string) (string, error) {
		calls = append(calls, js)
		return `{"title":"Generated"}`, nil
	}

	rt := newTestRuntime(page)
	seedSession(rt, "tok")
	c := newTestClient(rt, fastConfig())

	// No turn has completed yet.
	require.NoError(t, c.GenerateTitle(context.Background()))
	assert.Empty(t, calls)

	c.commitTurn(&StreamEvent{ConversationID: "conv-1"})
	c.mu.Lock()
	c.conv.ParentMessageID = "msg-1"
	c.mu.Unlock()

	require.NoError(t, c.GenerateTitle(context.Background()))
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0], `"POST"`)
	assert.Contains(t, calls[0], "/backend-api/conversation/gen_title/conv-1")
	assert.Contains(t, calls[0], `"message_id":"msg-1"`)
	assert.True(t, c.Conversation().TitleAssigned)

	// Titling runs once per conversation.
	require.NoError(t, c.GenerateTitle(context.Background()))
	assert.Len(t, calls, 1)
}

func TestAPIFetchRequiresUsableSession(t *testing.T) {
	page := newFakePage()
	page.contentFn = func() string { return sessionDocument("") }

	rt := newTestRuntime(page)
	c := newTestClient(rt, fastConfig())

	_, err := c.GetHistory(context.Background(), 0, 20)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeNotLoggedIn))
}

func TestAPIFetchEvalError(t *testing.T) {
	page := newFakePage()
	page.fetchFn = func(string) (string, error) { return "", errors.New("HTTP 403") }

	rt := newTestRuntime(page)
	seedSession(rt, "tok")
	c := newTestClient(rt, fastConfig())

	_, err := c.GetConversation(context.Background(), "conv-1")
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeAPIRequest))
	assert.True(t, strings.Contains(err.Error(), "conv-1"))
}
