package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"chatsync/internal/constants"
	apperrors "chatsync/internal/errors"
	"chatsync/internal/metrics"
	"chatsync/internal/middleware"
	"chatsync/internal/models"
	"chatsync/internal/service"
	"chatsync/internal/tracing"
	"chatsync/internal/validation"
	"chatsync/pkg/backend"
	backendtypes "chatsync/pkg/backend/types"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// conversation is the part of a ConversationSession the view server uses.
type conversation interface {
	Snapshot() service.Snapshot
	Send(ctx context.Context, content string) (models.Message, error)
	Connected() bool
}

type chatLister interface {
	ListChats(ctx context.Context, page, limit int) ([]backendtypes.ChatSummary, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	router  *mux.Router
	logger  *logrus.Logger
	metrics *metrics.Registry
	session conversation
	chats   chatLister
	db      pinger
	cfg     models.ServerConfig
	server  *http.Server
}

func NewServer(cfg models.ServerConfig, session conversation, chats chatLister, db pinger, registry *metrics.Registry, logger *logrus.Logger) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		logger:  logger,
		metrics: registry,
		session: session,
		chats:   chats,
		db:      db,
		cfg:     cfg,
	}

	s.setupRoutes()
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(cfg.IdleTimeoutSec) * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Observability(s.metrics, s.logger))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	conv := s.router.PathPrefix("/conversation").Subrouter()
	conv.HandleFunc("", s.handleConversation()).Methods(http.MethodGet)
	conv.HandleFunc("/messages", s.handleSendMessage()).Methods(http.MethodPost)

	s.router.HandleFunc("/chats", s.handleListChats()).Methods(http.MethodGet)
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Infof("Starting server on port %d", s.cfg.Port)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type healthResponse struct {
	Status    string `json:"status"`
	Connected bool   `json:"connected"`
	Database  string `json:"database"`
	Version   string `json:"version"`
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:    "healthy",
			Connected: s.session.Connected(),
			Database:  "ok",
			Version:   Version,
		}
		status := http.StatusOK
		if err := s.db.Ping(r.Context()); err != nil {
			s.logger.WithError(err).Warn("Database health check failed")
			resp.Status = "unhealthy"
			resp.Database = "unavailable"
			status = http.StatusServiceUnavailable
		}
		s.writeJSON(w, r, status, resp)
	}
}

func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		s.writeJSON(w, r, http.StatusOK, s.metrics.GetAllMetrics())
	}
}

func (s *Server) handleConversation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, r, http.StatusOK, s.session.Snapshot())
	}
}

type sendRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleSendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := validation.ValidateHTTPRequestSize(r, constants.MaxRequestBodyBytes); err != nil {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, err)
			return
		}

		var req sendRequest
		body := io.LimitReader(r.Body, constants.MaxRequestBodyBytes)
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			s.writeError(w, r, http.StatusBadRequest, apperrors.NewValidationError("body", "", "request body must be a JSON object"))
			return
		}
		if err := validation.ValidateMessageContent(req.Content); err != nil {
			s.writeError(w, r, http.StatusBadRequest, err)
			return
		}

		msg, err := s.session.Send(r.Context(), req.Content)
		if err != nil {
			s.writeError(w, r, apperrors.HTTPStatusCode(err), err)
			return
		}

		// A rejected send is still recorded; the message comes back failed.
		status := http.StatusAccepted
		if msg.Failed {
			status = http.StatusServiceUnavailable
		}
		s.writeJSON(w, r, status, msg)
	}
}

type chatListItem struct {
	JID             string `json:"jid"`
	Phone           string `json:"phone"`
	Name            string `json:"name"`
	Preview         string `json:"preview"`
	LastMessageTime string `json:"last_message_time,omitempty"`
}

func (s *Server) handleListChats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		page, limit := backend.ParsePaging(query.Get("page"), query.Get("limit"))

		chats, err := s.chats.ListChats(r.Context(), page, limit)
		if err != nil {
			s.writeError(w, r, apperrors.HTTPStatusCode(err), err)
			return
		}

		items := make([]chatListItem, 0, len(chats))
		for _, c := range chats {
			items = append(items, chatListItem{
				JID:             c.JID,
				Phone:           c.Phone(),
				Name:            c.DisplayName(),
				Preview:         c.Preview(),
				LastMessageTime: c.LastMessageTime,
			})
		}
		s.writeJSON(w, r, http.StatusOK, items)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).WithField(service.LogFieldRequestID, tracing.GetRequestID(r.Context())).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	requestID := tracing.GetRequestID(r.Context())
	if status >= http.StatusInternalServerError {
		apperrors.WrapLogger(s.logger).LogError(err, "Request failed", logrus.Fields{service.LogFieldRequestID: requestID})
	}
	s.writeJSON(w, r, status, apperrors.ToHTTPResponse(err, requestID))
}
