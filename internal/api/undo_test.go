package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/abhilashshingan/collaborative-editor/internal/algebra"
	"github.com/abhilashshingan/collaborative-editor/internal/api"
	"github.com/abhilashshingan/collaborative-editor/internal/registry"
	"github.com/abhilashshingan/collaborative-editor/internal/sequencer"
	"github.com/abhilashshingan/collaborative-editor/internal/storage"
	"github.com/abhilashshingan/collaborative-editor/internal/ws"
)

func TestUndoRedo_RoundTripThroughREST(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	require.NoError(t, store.CreateDocument(context.Background(), "doc1", "hello"))

	hub := ws.NewHub()
	reg := registry.New()
	mgr := sequencer.NewManager(sequencer.ManagerConfig{
		Store:       store,
		Broadcaster: api.NewHubBroadcaster(hub),
		AckHook:     reg,
	})

	server := api.NewServer(api.ServerConfig{
		Manager:  mgr,
		Store:    store,
		Registry: reg,
		Hub:      hub,
	})
	handler := server.Handler()

	reg.Create("s1")
	_, err := reg.Authenticate("s1", "alice")
	require.NoError(t, err)

	doc, err := mgr.Open(context.Background(), "doc1")
	require.NoError(t, err)

	op := algebra.NewInsert(algebra.ID{UserID: "alice", Seq: 1}, 5, " world").WithOrigin(algebra.OriginLocal)
	_, revision, err := doc.Process(context.Background(), op, "", 0)
	require.NoError(t, err)
	require.Equal(t, uint64(1), revision)
	require.Equal(t, "hello world", doc.Snapshot().Content)

	undoReq := httptest.NewRequest(http.MethodPost, "/documents/doc1/undo", bytes.NewReader(nil))
	undoReq.Header.Set("X-User-Id", "alice")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, undoReq)
	require.Equal(t, http.StatusOK, rec.Code)

	var undoResp api.UndoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &undoResp))
	require.Equal(t, algebra.KindDelete, undoResp.Operation.Kind)
	require.Equal(t, "hello", doc.Snapshot().Content)

	redoReq := httptest.NewRequest(http.MethodPost, "/documents/doc1/redo", bytes.NewReader(nil))
	redoReq.Header.Set("X-User-Id", "alice")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, redoReq)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "hello world", doc.Snapshot().Content)
}

func TestUndoDocument_NothingToUndoReturnsConflict(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	hub := ws.NewHub()
	reg := registry.New()
	mgr := sequencer.NewManager(sequencer.ManagerConfig{Store: store, Broadcaster: api.NewHubBroadcaster(hub), AckHook: reg})

	server := api.NewServer(api.ServerConfig{Manager: mgr, Store: store, Registry: reg, Hub: hub})
	handler := server.Handler()

	req := httptest.NewRequest(http.MethodPost, "/documents/doc1/undo", bytes.NewReader(nil))
	req.Header.Set("X-User-Id", "bob")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
}
