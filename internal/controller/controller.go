// Package controller provides the thin per-replica coordinator that
// sits in front of a history.History: it generates operation ids,
// tags origin, and exposes the edit-facing API a client replica calls
// into. The server side does not use it; the sequencer and registry
// packages keep their own state.
package controller

import (
	"sync"

	"github.com/abhilashshingan/collaborative-editor/internal/algebra"
	"github.com/abhilashshingan/collaborative-editor/internal/history"
)

// Controller coordinates one user's view of one document.
type Controller struct {
	userID string

	seqMu sync.Mutex
	seq   uint64

	h *history.History
}

// New wraps h with id generation and origin tagging for userID.
func New(userID string, h *history.History) *Controller {
	return &Controller{userID: userID, h: h}
}

// History exposes the underlying log, for callers that need to
// subscribe or rebase directly.
func (c *Controller) History() *history.History {
	return c.h
}

func (c *Controller) nextID() algebra.ID {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()
	c.seq++
	return algebra.ID{UserID: c.userID, Seq: c.seq}
}

// Insert applies a local insert at pos and returns the resolved,
// canonically-identified operation.
func (c *Controller) Insert(pos int, text string) (algebra.Operation, error) {
	op := algebra.NewInsert(c.nextID(), pos, text).WithOrigin(algebra.OriginLocal)
	return c.h.ApplyLocal(op)
}

// Delete applies a local delete of length bytes starting at pos.
func (c *Controller) Delete(pos, length int) (algebra.Operation, error) {
	op := algebra.NewDelete(c.nextID(), pos, length, "").WithOrigin(algebra.OriginLocal)
	return c.h.ApplyLocal(op)
}

// Undo pops the undo stack and returns the applied inverse, tagged
// OriginLocalUndo and linked back to the operation it reverses so the
// remote side can interpret it correctly.
func (c *Controller) Undo() (algebra.Operation, error) {
	inv, reversed, err := c.h.Undo()
	if err != nil {
		return algebra.Operation{}, err
	}
	return inv.WithID(c.nextID()).WithOrigin(algebra.OriginLocalUndo).WithRelated(reversed), nil
}

// Redo pops the redo stack and returns the re-applied operation,
// tagged OriginLocalRedo.
func (c *Controller) Redo() (algebra.Operation, error) {
	fwd, err := c.h.Redo()
	if err != nil {
		return algebra.Operation{}, err
	}
	return fwd.WithID(c.nextID()).WithOrigin(algebra.OriginLocalRedo), nil
}

// ApplyRemote folds a canonical remote operation into this replica.
func (c *Controller) ApplyRemote(op algebra.Operation, sourceVersion uint64) (algebra.Operation, error) {
	return c.h.ApplyRemote(op.WithOrigin(algebra.OriginRemote), sourceVersion)
}

// GetContent returns the current document text.
func (c *Controller) GetContent() string {
	return c.h.Snapshot().Content
}

// GetVersion returns the current document revision.
func (c *Controller) GetVersion() uint64 {
	return c.h.Snapshot().Version
}

// CanUndo reports whether Undo would succeed.
func (c *Controller) CanUndo() bool {
	return c.h.CanUndo()
}

// CanRedo reports whether Redo would succeed.
func (c *Controller) CanRedo() bool {
	return c.h.CanRedo()
}

// OnChange subscribes to every successful apply (local or remote) and
// returns an unsubscribe function. Delivery happens after the history
// lock is released, per the concurrency model.
func (c *Controller) OnChange(fn func(content string, version uint64)) func() {
	return c.h.Subscribe(func(ev history.ChangeEvent) {
		fn(ev.State.Content, ev.State.Version)
	})
}
