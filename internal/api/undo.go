package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/mux"

	"github.com/abhilashshingan/collaborative-editor/internal/algebra"
	"github.com/abhilashshingan/collaborative-editor/internal/sequencer"
)

// undoSeq hands out identities for server-synthesized undo/redo
// operations, kept well clear of any client's own per-author sequence
// so the sequencer's idempotence check never mistakes one for a retry.
var undoSeq uint64

func nextUndoSeq() uint64 {
	return atomic.AddUint64(&undoSeq, 1) | 1<<62
}

// UndoResponse is the response body for POST /documents/{id}/undo and
// /redo: the canonical inverse (or re-applied) operation and the
// revision the server assigned it.
type UndoResponse struct {
	Operation algebra.Operation `json:"operation"`
	Revision  uint64            `json:"revision"`
}

// handleUndoDocument handles POST /documents/{id}/undo. It implements
// the server-side half of §4.5's dual-history rationale: a client that
// asks the server to undo its own last canonical operation (rather than
// replaying its own local History) gets back the inverse, rebased
// through every canonical operation committed since, already applied
// and broadcast to every other open session.
func (s *Server) handleUndoDocument(w http.ResponseWriter, r *http.Request) {
	s.handleUndoOrRedo(w, r, true)
}

// handleRedoDocument handles POST /documents/{id}/redo, the symmetric
// counterpart of handleUndoDocument.
func (s *Server) handleRedoDocument(w http.ResponseWriter, r *http.Request) {
	s.handleUndoOrRedo(w, r, false)
}

func (s *Server) handleUndoOrRedo(w http.ResponseWriter, r *http.Request, undo bool) {
	docID := mux.Vars(r)["id"]
	userID := UserIDFromContext(r.Context())

	var (
		original algebra.Operation
		revision uint64
		ok       bool
	)
	if undo {
		original, revision, ok = s.reg.PopUndoAt(userID, docID)
	} else {
		original, revision, ok = s.reg.PopRedoAt(userID, docID)
	}
	if !ok {
		http.Error(w, "nothing to undo", http.StatusConflict)
		return
	}

	next, err := s.nextOperation(original, undo)
	if err != nil {
		http.Error(w, "server error computing inverse", http.StatusInternalServerError)
		return
	}

	doc, err := s.mgr.Open(r.Context(), docID)
	if err != nil {
		http.Error(w, "document not found", http.StatusNotFound)
		return
	}

	resolved, newRevision, err := doc.Process(r.Context(), next, "", revision)
	if err != nil {
		switch {
		case errors.Is(err, sequencer.ErrRevisionInFuture):
			http.Error(w, "revision in future", http.StatusConflict)
		case errors.Is(err, sequencer.ErrRejected):
			http.Error(w, "rejected after rebase", http.StatusConflict)
		default:
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(UndoResponse{Operation: resolved, Revision: newRevision}); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// nextOperation computes the operation to submit for an undo or redo
// request. Undo submits the inverse of the popped canonical operation,
// tagged LocalUndo and linked back to it; redo re-submits the original
// operation itself, tagged LocalRedo.
func (s *Server) nextOperation(original algebra.Operation, undo bool) (algebra.Operation, error) {
	if !undo {
		newID := algebra.ID{UserID: original.UserID, Seq: nextUndoSeq()}
		return original.WithID(newID).WithOrigin(algebra.OriginLocalRedo).WithRelated(original.ID), nil
	}

	inv, err := original.Inverse()
	if err != nil {
		return algebra.Operation{}, err
	}
	newID := algebra.ID{UserID: original.UserID, Seq: nextUndoSeq()}
	return inv.WithID(newID).WithOrigin(algebra.OriginLocalUndo).WithRelated(original.ID), nil
}
