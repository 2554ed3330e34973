package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/shoplist/internal/handler"
	"github.com/dukerupert/shoplist/internal/live"
	"github.com/dukerupert/shoplist/internal/middleware"
	"github.com/dukerupert/shoplist/internal/shopping"
	"github.com/dukerupert/shoplist/internal/store"
	ws "github.com/dukerupert/shoplist/internal/websocket"
)

type Server struct {
	db        *sql.DB
	hub       *ws.Hub
	session   *shopping.Session
	shoppingH *handler.ShoppingHandler
	limiter   *middleware.WriteLimiter
	stop      context.CancelFunc
	logger    *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithWriteLimit caps mutating API requests per client. A limit of zero or
// less disables the cap, which is the default.
func WithWriteLimit(limit int, period time.Duration) Option {
	return func(s *Server) {
		s.limiter = middleware.NewWriteLimiter(limit, period)
	}
}

// New wires the store, repository and session, and connects session changes to
// the websocket hub. Background work is bound to ctx.
func New(ctx context.Context, db *sql.DB, logger *slog.Logger, opts ...Option) (*Server, error) {
	hub := ws.NewHub(logger.With("component", "websocket"))

	shoppingStore := store.NewShoppingStore(db, live.NewHub(logger.With("component", "live")))
	repo := shopping.NewRepository(shoppingStore)

	session, err := shopping.NewSession(ctx, repo, func(snap shopping.Snapshot) {
		hub.Broadcast(snapshotMessage(snap))
	}, logger.With("component", "session"))
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}

	s := &Server{
		db:        db,
		hub:       hub,
		session:   session,
		shoppingH: handler.NewShoppingHandler(repo, session, logger.With("component", "shopping")),
		limiter:   middleware.NewWriteLimiter(0, time.Minute),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	bg, stop := context.WithCancel(context.WithoutCancel(ctx))
	s.stop = stop
	go s.limiter.Run(bg)
	return s, nil
}

func snapshotMessage(snap shopping.Snapshot) ws.Message {
	return ws.NewMessage("shopping", "snapshot", 0, snap)
}

// Session returns the session backing the server.
func (s *Server) Session() *shopping.Session {
	return s.session
}

// Close releases the session's live views and stops background work.
func (s *Server) Close() {
	s.stop()
	s.session.Close()
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	// Categories
	mux.HandleFunc("GET /api/categories", s.shoppingH.ListCategories)
	mux.HandleFunc("POST /api/categories", s.shoppingH.CreateCategory)
	mux.HandleFunc("PUT /api/categories/{id}", s.shoppingH.UpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.shoppingH.DeleteCategory)
	mux.HandleFunc("POST /api/categories/{id}/toggle-selected", s.shoppingH.ToggleCategorySelected)

	// Items
	mux.HandleFunc("GET /api/categories/{id}/items", s.shoppingH.ListItems)
	mux.HandleFunc("POST /api/categories/{id}/items", s.shoppingH.CreateItem)
	mux.HandleFunc("PUT /api/items/{id}", s.shoppingH.UpdateItem)
	mux.HandleFunc("DELETE /api/items/{id}", s.shoppingH.DeleteItem)
	mux.HandleFunc("POST /api/items/{id}/check", s.shoppingH.ToggleItemChecked)

	// Viewed category and sharing
	mux.HandleFunc("GET /api/selection", s.shoppingH.GetSelection)
	mux.HandleFunc("PUT /api/selection", s.shoppingH.SelectCategory)
	mux.HandleFunc("GET /api/share", s.shoppingH.Share)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, func() ws.Message {
		return snapshotMessage(s.session.Snapshot())
	}))

	var h http.Handler = mux
	h = middleware.LimitWrites(s.limiter)(h)
	h = middleware.RequestLogger(s.logger.With("component", "http"))(h)
	return h
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}
