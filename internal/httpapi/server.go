package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ent0n29/ava/internal/config"
	"github.com/ent0n29/ava/internal/graph"
	"github.com/ent0n29/ava/internal/llm"
	"github.com/ent0n29/ava/internal/observability"
	"github.com/ent0n29/ava/internal/protocol"
	"github.com/ent0n29/ava/internal/retrieval"
)

// Engine runs one conversation turn. Satisfied by graph.Executor.
type Engine interface {
	RunTurn(ctx context.Context, sessionID, text string, onDelta llm.DeltaFunc) (graph.Result, error)
}

type Server struct {
	cfg      config.Config
	engine   Engine
	ingester *retrieval.Ingester
	metrics  *observability.Metrics
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func New(cfg config.Config, engine Engine, ingester *retrieval.Ingester, metrics *observability.Metrics, log *zap.Logger) *Server {
	return &Server{
		cfg:      cfg,
		engine:   engine,
		ingester: ingester,
		metrics:  metrics,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same
				// origin unless explicitly opened up. Non-browser clients
				// often omit Origin; allow them.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/chat/turn", s.handleTurn)
	r.Get("/v1/chat/ws", s.handleChatWS)
	r.Post("/v1/documents", s.handleIngestDocument)
	r.Get("/v1/perf/nodes", s.handleNodeLatency)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

type turnRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type turnResponse struct {
	SessionID   string `json:"session_id"`
	TurnID      string `json:"turn_id"`
	Reply       string `json:"reply"`
	RequiresRag bool   `json:"requires_rag"`
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		req.SessionID = uuid.NewString()
	}

	res, err := s.engine.RunTurn(r.Context(), req.SessionID, req.Text, nil)
	if err != nil {
		status, code := turnErrorStatus(err)
		s.log.Warn("turn failed",
			zap.String("session_id", req.SessionID),
			zap.String("code", code),
			zap.Error(err),
		)
		respondError(w, status, code, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, turnResponse{
		SessionID:   req.SessionID,
		TurnID:      uuid.NewString(),
		Reply:       res.Reply,
		RequiresRag: res.RequiresRag,
	})
}

type ingestRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleIngestDocument(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}

	n, err := s.ingester.IngestText(r.Context(), req.Text)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "ingest_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"chunks": n})
}

func (s *Server) handleNodeLatency(w http.ResponseWriter, _ *http.Request) {
	if s.metrics == nil || s.metrics.Stages == nil {
		respondJSON(w, http.StatusOK, observability.NodeStageSnapshot{})
		return
	}
	respondJSON(w, http.StatusOK, s.metrics.Stages.Snapshot())
}

// handleChatWS serves a streaming chat connection: user_message frames in,
// assistant_text_delta / assistant_turn_end / error_event frames out.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan any, 256)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	send := func(msg any) {
		select {
		case <-ctx.Done():
		case outbound <- msg:
		}
	}

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			send(protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				Code:      "invalid_client_message",
				Retryable: false,
				Detail:    err.Error(),
			})
			continue
		}
		user, ok := parsed.(protocol.UserMessage)
		if !ok {
			continue
		}
		s.runStreamingTurn(ctx, user, send)
	}

	cancel()
	<-writerDone
}

// runStreamingTurn executes one turn, forwarding reply fragments as they
// arrive. Turns on one connection run sequentially; the engine serializes
// per-session anyway.
func (s *Server) runStreamingTurn(ctx context.Context, user protocol.UserMessage, send func(any)) {
	turnID := uuid.NewString()

	res, err := s.engine.RunTurn(ctx, user.SessionID, user.Text, func(delta string) error {
		send(protocol.AssistantTextDelta{
			Type:      protocol.TypeAssistantTextDelta,
			SessionID: user.SessionID,
			TurnID:    turnID,
			TextDelta: delta,
		})
		return ctx.Err()
	})
	if err != nil {
		_, code := turnErrorStatus(err)
		send(protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: user.SessionID,
			Code:      code,
			Retryable: code == "persistence_failure",
			Detail:    err.Error(),
		})
		send(protocol.AssistantTurnEnd{
			Type:      protocol.TypeAssistantTurnEnd,
			SessionID: user.SessionID,
			TurnID:    turnID,
			Reason:    code,
		})
		return
	}

	send(protocol.AssistantTurnEnd{
		Type:        protocol.TypeAssistantTurnEnd,
		SessionID:   user.SessionID,
		TurnID:      turnID,
		Reason:      "completed",
		RequiresRag: res.RequiresRag,
	})
}

func turnErrorStatus(err error) (int, string) {
	var perr *graph.PersistenceError
	if errors.As(err, &perr) {
		return http.StatusServiceUnavailable, "persistence_failure"
	}
	var nerr *graph.NodeError
	if errors.As(err, &nerr) {
		return http.StatusBadGateway, "node_failure"
	}
	return http.StatusBadRequest, "invalid_request"
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
