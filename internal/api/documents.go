package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/abhilashshingan/collaborative-editor/internal/storage"
)

// CreateDocumentRequest is the request body for POST /documents.
type CreateDocumentRequest struct {
	ID             string `json:"id"`
	InitialContent string `json:"initialContent"`
}

// CreateDocumentResponse is the response body for POST /documents.
type CreateDocumentResponse struct {
	ID string `json:"id"`
}

// ListDocumentsResponse is the response body for GET /documents.
type ListDocumentsResponse struct {
	IDs []string `json:"ids"`
}

// GetDocumentResponse is the response body for GET /documents/{id}.
type GetDocumentResponse struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	Revision    uint64 `json:"revision"`
	ActiveUsers int    `json:"activeUsers"`
}

// RenameDocumentRequest is the request body for PATCH /documents/{id}.
type RenameDocumentRequest struct {
	NewID string `json:"newId"`
}

// handleCreateDocument handles POST /documents.
func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.ID == "" {
		http.Error(w, "document ID is required", http.StatusBadRequest)
		return
	}

	if err := s.store.CreateDocument(r.Context(), req.ID, req.InitialContent); err != nil {
		if errors.Is(err, storage.ErrDocumentExists) {
			http.Error(w, "document already exists", http.StatusConflict)
			return
		}
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)

	if err := json.NewEncoder(w).Encode(CreateDocumentResponse{ID: req.ID}); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// handleListDocuments handles GET /documents.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.ListDocuments(r.Context())
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(ListDocumentsResponse{IDs: ids}); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// handleGetDocument handles GET /documents/{id}.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	docID := mux.Vars(r)["id"]

	exists, err := s.store.DocumentExists(r.Context(), docID)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if !exists {
		http.Error(w, "document not found", http.StatusNotFound)
		return
	}

	doc, err := s.mgr.Open(r.Context(), docID)
	if err != nil {
		if errors.Is(err, storage.ErrDocumentNotFound) {
			http.Error(w, "document not found", http.StatusNotFound)
			return
		}
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	snap := doc.Snapshot()

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(GetDocumentResponse{
		ID:          docID,
		Content:     snap.Content,
		Revision:    snap.Version,
		ActiveUsers: len(s.reg.UsersOnDocument(docID)),
	}); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// handleDeleteDocument handles DELETE /documents/{id}.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := mux.Vars(r)["id"]

	if err := s.mgr.Close(r.Context(), docID); err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := s.store.DeleteDocument(r.Context(), docID); err != nil {
		if errors.Is(err, storage.ErrDocumentNotFound) {
			http.Error(w, "document not found", http.StatusNotFound)
			return
		}
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleRenameDocument handles PATCH /documents/{id}.
func (s *Server) handleRenameDocument(w http.ResponseWriter, r *http.Request) {
	docID := mux.Vars(r)["id"]

	var req RenameDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.NewID == "" {
		http.Error(w, "newId is required", http.StatusBadRequest)
		return
	}

	// The sequencer caches its Document under the old id; close it so
	// the next Open reloads under the new id with a clean cache.
	if err := s.mgr.Close(r.Context(), docID); err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := s.store.RenameDocument(r.Context(), docID, req.NewID); err != nil {
		switch {
		case errors.Is(err, storage.ErrDocumentNotFound):
			http.Error(w, "document not found", http.StatusNotFound)
		case errors.Is(err, storage.ErrDocumentExists):
			http.Error(w, "document already exists", http.StatusConflict)
		default:
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
