package gateway

// AskRequest is the body of POST /v1/ask and the first frame on
// /v1/stream.
type AskRequest struct {
	Prompt string `json:"prompt"`
}

// AskResponse is the body of a successful POST /v1/ask.
type AskResponse struct {
	RequestID      string `json:"request_id"`
	Reply          string `json:"reply"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ErrorResponse is the body of a failed request.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// Stream frame types sent over /v1/stream.
const (
	FrameDelta = "delta"
	FrameDone  = "done"
	FrameError = "error"
)

// StreamFrame is one websocket message on /v1/stream.
type StreamFrame struct {
	Type           string `json:"type"`
	Delta          string `json:"delta,omitempty"`
	Reply          string `json:"reply,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Code           string `json:"code,omitempty"`
	Message        string `json:"message,omitempty"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status   string `json:"status"`
	Disabled bool   `json:"disabled"`
}
