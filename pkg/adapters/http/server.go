// Package http exposes a fleet of bots over a small JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/botflow"
	"github.com/aretw0/botflow/internal/logging"
	"github.com/aretw0/botflow/internal/presentation/graph"
	"github.com/aretw0/botflow/pkg/domain"
	"github.com/aretw0/botflow/pkg/ports"
	"github.com/aretw0/botflow/pkg/registry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// maxBodyBytes caps request bodies; flow definitions are the largest payload.
const maxBodyBytes = 4 << 20

// Server routes inbound messages and management calls to the registry.
type Server struct {
	bots    *registry.Registry[*botflow.Bot]
	flows   ports.FlowSource
	botOpts []botflow.Option

	publisher ports.FlowPublisher
	metrics   http.Handler
	origins   []string
	logger    *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithPublisher enables PUT and DELETE on /bots/{botID}.
func WithPublisher(p ports.FlowPublisher) Option {
	return func(s *Server) {
		s.publisher = p
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithAllowedOrigins restricts CORS. The default allows any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// WithBotOptions sets the options used to build bots from published flows.
func WithBotOptions(opts ...botflow.Option) Option {
	return func(s *Server) {
		s.botOpts = opts
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a server over bots, building new bots from flows.
func NewServer(bots *registry.Registry[*botflow.Bot], flows ports.FlowSource, opts ...Option) *Server {
	s := &Server{
		bots:    bots,
		flows:   flows,
		origins: []string{"*"},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync registers every flow published in the source.
func (s *Server) Sync(ctx context.Context) ([]string, error) {
	return botflow.RegisterAll(ctx, s.bots, s.flows, s.botOpts...)
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/health", s.health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/bots", func(r chi.Router) {
		r.Get("/", s.listBots)
		r.Route("/{botID}", func(r chi.Router) {
			r.Put("/", s.publish)
			r.Delete("/", s.unpublish)
			r.Post("/reload", s.reload)
			r.Post("/messages", s.processMessage)
			r.Get("/stages", s.stages)
			r.Get("/graph", s.graph)
			r.Delete("/sessions/{conversationID}", s.endSession)
		})
	})
	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps lookup errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrBotNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrMalformedGraph), errors.Is(err, domain.ErrMissingStartNode),
		errors.Is(err, botflow.ErrAutoChainCycle):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrDisposed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	return dec.Decode(v)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type botsResponse struct {
	Registered []string `json:"registered"`
	Active     []string `json:"active"`
}

func (s *Server) listBots(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, botsResponse{
		Registered: s.bots.Registered(),
		Active:     s.bots.Active(),
	})
}

func (s *Server) processMessage(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botID")

	var msg domain.MessageContext
	if err := decode(r, &msg); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(msg.ConversationID) == "" {
		s.writeError(w, http.StatusBadRequest, "conversation_id is required")
		return
	}

	bot, err := s.bots.CreateOrGet(r.Context(), botID)
	if err != nil {
		s.logger.Warn("Bot unavailable", "bot_id", botID, "err", err)
		s.writeError(w, statusFor(err), err.Error())
		return
	}

	resp, err := bot.ProcessMessage(r.Context(), msg)
	if err != nil {
		// The instance was disposed by a concurrent reload; retry once on the new one.
		if errors.Is(err, domain.ErrDisposed) {
			if bot, err = s.bots.CreateOrGet(r.Context(), botID); err == nil {
				resp, err = bot.ProcessMessage(r.Context(), msg)
			}
		}
		if err != nil {
			s.writeError(w, statusFor(err), err.Error())
			return
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// publish validates the definition by compiling it, stores it and swaps the
// running instance.
func (s *Server) publish(w http.ResponseWriter, r *http.Request) {
	if s.publisher == nil {
		s.writeError(w, http.StatusMethodNotAllowed, "publishing is disabled")
		return
	}
	botID := chi.URLParam(r, "botID")

	var def domain.FlowDefinition
	if err := decode(r, &def); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid flow definition")
		return
	}

	candidate := botflow.New(botID, &def, s.botOpts...)
	if err := candidate.Initialize(r.Context()); err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	_ = candidate.Dispose(r.Context())

	if err := s.publisher.Publish(r.Context(), botID, &def); err != nil {
		s.logger.Error("Publish failed", "bot_id", botID, "err", err)
		s.writeError(w, http.StatusInternalServerError, "failed to publish flow")
		return
	}
	s.bots.Register(botID, botflow.FromSource(s.flows, s.botOpts...))
	bot, err := s.bots.Reload(r.Context(), botID)
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	s.logger.Info("Flow published", "bot_id", botID, "stages", len(bot.StageIDs()))
	s.writeJSON(w, http.StatusOK, map[string]any{"bot_id": botID, "stages": len(bot.StageIDs())})
}

func (s *Server) unpublish(w http.ResponseWriter, r *http.Request) {
	if s.publisher == nil {
		s.writeError(w, http.StatusMethodNotAllowed, "publishing is disabled")
		return
	}
	botID := chi.URLParam(r, "botID")

	if err := s.publisher.Unpublish(r.Context(), botID); err != nil {
		s.logger.Error("Unpublish failed", "bot_id", botID, "err", err)
		s.writeError(w, http.StatusInternalServerError, "failed to unpublish flow")
		return
	}
	if err := s.bots.Unregister(r.Context(), botID); err != nil && !errors.Is(err, domain.ErrBotNotFound) {
		s.logger.Warn("Unregister failed", "bot_id", botID, "err", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) reload(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botID")
	if _, err := s.flows.LoadFlow(r.Context(), botID); err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	s.bots.Register(botID, botflow.FromSource(s.flows, s.botOpts...))
	if _, err := s.bots.Reload(r.Context(), botID); err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type stageView struct {
	Stage  domain.StageID  `json:"stage"`
	NodeID string          `json:"node_id"`
	Type   domain.NodeType `json:"type"`
	Label  string          `json:"label,omitempty"`
}

func (s *Server) stages(w http.ResponseWriter, r *http.Request) {
	bot, err := s.bots.CreateOrGet(r.Context(), chi.URLParam(r, "botID"))
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}

	ids := bot.StageIDs()
	out := make([]stageView, 0, len(ids))
	for _, id := range ids {
		node, ok := bot.GetStage(id)
		if !ok {
			continue
		}
		out = append(out, stageView{Stage: id, NodeID: node.ID, Type: node.Type, Label: node.Label})
	}
	s.writeJSON(w, http.StatusOK, out)
}

// graph renders the running flow as a Mermaid chart; ?highlight=<node id>
// marks one node.
func (s *Server) graph(w http.ResponseWriter, r *http.Request) {
	bot, err := s.bots.CreateOrGet(r.Context(), chi.URLParam(r, "botID"))
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	var overlay *graph.GraphOverlay
	if node := r.URL.Query().Get("highlight"); node != "" {
		overlay = &graph.GraphOverlay{CurrentNode: node}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(graph.GenerateMermaid(bot.Definition(), overlay)))
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	bot, err := s.bots.CreateOrGet(r.Context(), chi.URLParam(r, "botID"))
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	if err := bot.EndSession(r.Context(), chi.URLParam(r, "conversationID")); err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("end session: %v", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
