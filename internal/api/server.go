package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/abhilashshingan/collaborative-editor/internal/registry"
	"github.com/abhilashshingan/collaborative-editor/internal/sequencer"
	"github.com/abhilashshingan/collaborative-editor/internal/storage"
	"github.com/abhilashshingan/collaborative-editor/internal/ws"
)

// Server handles HTTP and WebSocket traffic for the collaboration API.
type Server struct {
	mgr      *sequencer.Manager
	store    storage.Store
	reg      *registry.Registry
	hub      *ws.Hub
	upgrader websocket.Upgrader

	// presenceSubscribe, when set, opens a cross-process Redis
	// subscription for a document the first time any session on this
	// process opens it (see internal/presence.Broadcaster.Subscribe).
	presenceSubscribe func(ctx context.Context, docID string) error
	subscribedMu      sync.Mutex
	subscribed        map[string]bool
}

// ServerConfig holds the collaborators a Server needs.
type ServerConfig struct {
	Manager  *sequencer.Manager
	Store    storage.Store
	Registry *registry.Registry
	Hub      *ws.Hub

	// PresenceSubscribe is optional; pass (*presence.Broadcaster).Subscribe
	// to fan remote processes' edits into this process's ws.Hub.
	PresenceSubscribe func(ctx context.Context, docID string) error
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig) *Server {
	return &Server{
		mgr:               cfg.Manager,
		store:             cfg.Store,
		reg:               cfg.Registry,
		hub:               cfg.Hub,
		presenceSubscribe: cfg.PresenceSubscribe,
		subscribed:        make(map[string]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool {
				return true // document collaboration has no same-origin requirement
			},
		},
	}
}

// ensurePresenceSubscription starts a background Redis subscription for
// docID the first time it is opened on this process, so operations
// published by other processes reach this process's ws.Hub.
func (s *Server) ensurePresenceSubscription(docID string) {
	if s.presenceSubscribe == nil {
		return
	}

	s.subscribedMu.Lock()
	already := s.subscribed[docID]
	s.subscribed[docID] = true
	s.subscribedMu.Unlock()

	if already {
		return
	}

	go func() {
		if err := s.presenceSubscribe(context.Background(), docID); err != nil {
			s.subscribedMu.Lock()
			delete(s.subscribed, docID)
			s.subscribedMu.Unlock()
		}
	}()
}

// Handler returns an http.Handler with every route configured.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(s.authMiddleware)

	router.HandleFunc("/documents", s.handleListDocuments).Methods(http.MethodGet)
	router.HandleFunc("/documents", s.handleCreateDocument).Methods(http.MethodPost)
	router.HandleFunc("/documents/{id}", s.handleGetDocument).Methods(http.MethodGet)
	router.HandleFunc("/documents/{id}", s.handleDeleteDocument).Methods(http.MethodDelete)
	router.HandleFunc("/documents/{id}", s.handleRenameDocument).Methods(http.MethodPatch)
	router.HandleFunc("/documents/{id}/undo", s.handleUndoDocument).Methods(http.MethodPost)
	router.HandleFunc("/documents/{id}/redo", s.handleRedoDocument).Methods(http.MethodPost)
	router.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)

	return router
}
