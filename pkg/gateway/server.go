// Package gateway exposes the bridge over a local HTTP and websocket
// API: full replies on POST /v1/ask, incremental deltas on /v1/stream.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/saran/chatbridge/pkg/chatgpt"
)

// Asker is the conversational surface the gateway serves. Satisfied by
// *chatgpt.Client.
type Asker interface {
	Ask(ctx context.Context, prompt string) (string, error)
	AskStream(ctx context.Context, prompt string, onDelta func(delta string)) (string, error)
	Conversation() chatgpt.ConversationState
}

// Config holds gateway configuration.
type Config struct {
	Port     int
	Client   Asker
	Disabled func() bool // cooldown state for /healthz
	Logger   zerolog.Logger
}

// Server is the gateway HTTP server.
type Server struct {
	cfg      Config
	server   *http.Server
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewServer creates a gateway server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Client == nil {
		return nil, errors.New("client is required")
	}

	s := &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The gateway binds to loopback; the browser-facing origin
			// check does not apply.
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		logger: cfg.Logger.With().Str("component", "gateway").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /v1/ask", s.handleAsk)
	mux.HandleFunc("GET /v1/stream", s.handleStream)

	s.server = &http.Server{
		Addr:              net.JoinHostPort("127.0.0.1", fmt.Sprintf("%d", cfg.Port)),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Gateway listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	disabled := false
	if s.cfg.Disabled != nil {
		disabled = s.cfg.Disabled()
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Disabled: disabled})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	requestID, _ := gonanoid.New()
	log := s.logger.With().Str("request_id", requestID).Logger()

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Prompt == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			RequestID: requestID,
			Code:      "BAD_REQUEST",
			Message:   "body must be JSON with a non-empty prompt",
		})
		return
	}

	log.Info().Int("prompt_len", len(req.Prompt)).Msg("Ask request")
	reply, err := s.cfg.Client.Ask(r.Context(), req.Prompt)
	if err != nil {
		log.Error().Err(err).Msg("Ask failed")
		writeJSON(w, statusForError(err), errorResponseFor(requestID, err))
		return
	}

	writeJSON(w, http.StatusOK, AskResponse{
		RequestID:      requestID,
		Reply:          reply,
		ConversationID: s.cfg.Client.Conversation().ConversationID,
	})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	requestID, _ := gonanoid.New()
	log := s.logger.With().Str("request_id", requestID).Logger()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	var req AskRequest
	if err := conn.ReadJSON(&req); err != nil || req.Prompt == "" {
		conn.WriteJSON(StreamFrame{Type: FrameError, Code: "BAD_REQUEST", Message: "first frame must carry a non-empty prompt"})
		return
	}

	log.Info().Int("prompt_len", len(req.Prompt)).Msg("Stream request")
	reply, err := s.cfg.Client.AskStream(r.Context(), req.Prompt, func(delta string) {
		if err := conn.WriteJSON(StreamFrame{Type: FrameDelta, Delta: delta}); err != nil {
			log.Warn().Err(err).Msg("Failed to write delta frame")
		}
	})
	if err != nil {
		log.Error().Err(err).Msg("Stream failed")
		frame := StreamFrame{Type: FrameError, Code: "INTERNAL", Message: err.Error()}
		var be *chatgpt.Error
		if errors.As(err, &be) {
			frame.Code = be.Code
		}
		conn.WriteJSON(frame)
		return
	}

	conn.WriteJSON(StreamFrame{
		Type:           FrameDone,
		Reply:          reply,
		ConversationID: s.cfg.Client.Conversation().ConversationID,
	})
}

func statusForError(err error) int {
	switch {
	case chatgpt.IsCode(err, chatgpt.ErrCodeNotLoggedIn):
		return http.StatusUnauthorized
	case chatgpt.IsCode(err, chatgpt.ErrCodeNetwork),
		chatgpt.IsCode(err, chatgpt.ErrCodeTimeout),
		chatgpt.IsCode(err, chatgpt.ErrCodeResponseDecode):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorResponseFor(requestID string, err error) ErrorResponse {
	resp := ErrorResponse{RequestID: requestID, Code: "INTERNAL", Message: err.Error()}
	var be *chatgpt.Error
	if errors.As(err, &be) {
		resp.Code = be.Code
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
