package chatgpt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// History and detail endpoints. These are plain request/response calls,
// but they still run from inside the page context so they carry the
// page's cookies and pass the site's browser check.

const apiFetchTemplate = `async () => {
	const res = await fetch("%URL%", {
		method: "%METHOD%",
		headers: {
			"Authorization": "Bearer %TOKEN%",
			"Content-Type": "application/json"
		}%BODY%
	});
	if (!res.ok) {
		throw new Error("HTTP " + res.status);
	}
	return await res.text();
}`

// apiFetch performs an authenticated call from the page context and
// returns the raw response body.
func (c *Client) apiFetch(ctx context.Context, method, rawURL string, body any) (string, error) {
	if c.rt.sessions.Current() == nil {
		if err := c.rt.sessions.Refresh(ctx); err != nil {
			return "", err
		}
	}
	sess := c.rt.sessions.Current()
	if !sess.Usable() {
		return "", newNotLoggedInError()
	}

	bodyClause := ""
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return "", &Error{Code: ErrCodeAPIRequest, Message: "failed to encode request body", Err: err}
		}
		bodyClause = ",\n\t\tbody: JSON.stringify(" + string(encoded) + ")"
	}

	js := strings.NewReplacer(
		"%URL%", rawURL,
		"%METHOD%", method,
		"%TOKEN%", sess.AccessToken,
		"%BODY%", bodyClause,
	).Replace(apiFetchTemplate)

	c.logger.Debug().Str("method", method).Str("url", rawURL).Msg("API request")
	out, err := c.rt.page.Eval(ctx, js)
	if err != nil {
		return "", &Error{Code: ErrCodeAPIRequest, Message: fmt.Sprintf("%s %s failed", method, rawURL), Err: err}
	}
	return out, nil
}

// GetHistory lists conversations, newest first, paged by offset/limit.
func (c *Client) GetHistory(ctx context.Context, offset, limit int) ([]ConversationSummary, error) {
	q := url.Values{}
	q.Set("offset", fmt.Sprintf("%d", offset))
	q.Set("limit", fmt.Sprintf("%d", limit))
	endpoint := c.rt.baseURL + "/backend-api/conversations?" + q.Encode()

	body, err := c.apiFetch(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}

	var page struct {
		Items []ConversationSummary `json:"items"`
	}
	if err := json.Unmarshal([]byte(body), &page); err != nil {
		return nil, &Error{Code: ErrCodeAPIRequest, Message: "failed to decode history listing", Err: err}
	}
	return page.Items, nil
}

// GetConversation fetches one conversation's detail by id.
func (c *Client) GetConversation(ctx context.Context, conversationID string) (map[string]any, error) {
	endpoint := c.rt.baseURL + "/backend-api/conversation/" + url.PathEscape(conversationID)
	body, err := c.apiFetch(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}

	detail := map[string]any{}
	if err := json.Unmarshal([]byte(body), &detail); err != nil {
		return nil, &Error{Code: ErrCodeAPIRequest, Message: "failed to decode conversation detail", Err: err}
	}
	return detail, nil
}

// SetTitle sets a conversation's title. An empty conversationID targets
// the client's current conversation.
func (c *Client) SetTitle(ctx context.Context, title, conversationID string) error {
	id := conversationID
	if id == "" {
		id = c.Conversation().ConversationID
	}
	if id == "" {
		return &Error{Code: ErrCodeAPIRequest, Message: "no conversation to title"}
	}

	endpoint := c.rt.baseURL + "/backend-api/conversation/" + url.PathEscape(id)
	_, err := c.apiFetch(ctx, "PATCH", endpoint, map[string]any{"title": title})
	return err
}

// DeleteConversation soft-deletes a conversation by marking it invisible.
// An empty conversationID targets the client's current conversation; if
// there is none, this is a no-op.
func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	id := conversationID
	if id == "" {
		id = c.Conversation().ConversationID
	}
	if id == "" {
		return nil
	}

	endpoint := c.rt.baseURL + "/backend-api/conversation/" + url.PathEscape(id)
	_, err := c.apiFetch(ctx, "PATCH", endpoint, map[string]any{"is_visible": false})
	return err
}

// GenerateTitle asks the service to auto-title the current conversation.
// Runs once per conversation; no-op until a first turn has completed.
func (c *Client) GenerateTitle(ctx context.Context) error {
	conv := c.Conversation()
	if conv.ConversationID == "" || conv.TitleAssigned {
		return nil
	}

	endpoint := c.rt.baseURL + "/backend-api/conversation/gen_title/" + url.PathEscape(conv.ConversationID)
	_, err := c.apiFetch(ctx, "POST", endpoint, map[string]any{
		"message_id": conv.ParentMessageID,
		"model":      ResolveModel(c.cfg.Model),
	})
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to auto-generate conversation title")
		return err
	}

	c.mu.Lock()
	c.conv.TitleAssigned = true
	c.mu.Unlock()
	return nil
}
