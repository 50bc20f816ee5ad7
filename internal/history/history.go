// Package history implements the per-replica operation log with
// transform-aware undo/redo, on top of the operation algebra.
package history

import (
	"errors"
	"sync"

	"github.com/abhilashshingan/collaborative-editor/internal/algebra"
)

// DefaultCapacity is the default size of the applied log and of the
// undo stack, per §3.
const DefaultCapacity = 1000

// Sentinel errors.
var (
	ErrNothingToUndo = errors.New("history: nothing to undo")
	ErrNothingToRedo = errors.New("history: nothing to redo")
	// ErrDesync means a remote operation's base revision points before
	// the oldest entry still retained in the log. The replica cannot
	// rebase correctly and must request a full snapshot (§4.2, §7).
	ErrDesync = errors.New("history: base revision outside retained log, full resync required")
)

// ChangeEvent is delivered to subscribers after every successful apply.
type ChangeEvent struct {
	State algebra.State
	Op    algebra.Operation
}

// Listener receives change events. Per the design notes (§9), listeners
// are invoked synchronously but only after the history lock has been
// released, so a listener calling back into History cannot deadlock.
type Listener func(ChangeEvent)

// undoEntry pairs a locally-applied operation with its inverse so undo
// and redo can swap between the two without recomputing inverses that
// might not be total (a delete's inverse needs DeletedText).
type undoEntry struct {
	forward algebra.Operation
	inverse algebra.Operation
}

// History is one replica's ordered log plus undo/redo stacks, guarded
// by a single lock per §3.
type History struct {
	mu sync.Mutex

	doc *algebra.Document

	applied     []algebra.Operation
	appliedFrom uint64 // version number corresponding to applied[0]

	undo []undoEntry
	redo []undoEntry

	maxApplied int
	maxUndo    int

	listenersMu  sync.RWMutex
	listeners    map[int]Listener
	nextListener int
}

// Config controls capacity. Zero values fall back to DefaultCapacity.
type Config struct {
	MaxApplied int
	MaxUndo    int
}

// New creates a History over a fresh document with the given initial
// content.
func New(initialContent string, cfg Config) *History {
	return NewFromDocument(algebra.NewDocument(initialContent), cfg)
}

// NewFromDocument creates a History wrapping an existing document.
func NewFromDocument(doc *algebra.Document, cfg Config) *History {
	maxApplied := cfg.MaxApplied
	if maxApplied <= 0 {
		maxApplied = DefaultCapacity
	}
	maxUndo := cfg.MaxUndo
	if maxUndo <= 0 {
		maxUndo = DefaultCapacity
	}
	return &History{
		doc:        doc,
		maxApplied: maxApplied,
		maxUndo:    maxUndo,
		listeners:  make(map[int]Listener),
	}
}

// Subscribe registers a listener and returns a function that removes
// it. Matches the "explicit unsubscribe handle" pattern from §9.
func (h *History) Subscribe(l Listener) func() {
	h.listenersMu.Lock()
	id := h.nextListener
	h.nextListener++
	h.listeners[id] = l
	h.listenersMu.Unlock()

	return func() {
		h.listenersMu.Lock()
		delete(h.listeners, id)
		h.listenersMu.Unlock()
	}
}

func (h *History) emit(ev ChangeEvent) {
	h.listenersMu.RLock()
	defer h.listenersMu.RUnlock()
	for _, l := range h.listeners {
		l(ev)
	}
}

// Snapshot returns the current (content, version) pair.
func (h *History) Snapshot() algebra.State {
	return h.doc.Snapshot()
}

// Restore replaces the document state wholesale and discards the log
// and undo/redo stacks — used after a fatal desync (§4.2).
func (h *History) Restore(s algebra.State) {
	h.mu.Lock()
	h.doc.Restore(s)
	h.applied = nil
	h.appliedFrom = s.Version
	h.undo = nil
	h.redo = nil
	h.mu.Unlock()
}

// CanUndo reports whether Undo would succeed.
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo) > 0
}

// CanRedo reports whether Redo would succeed.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redo) > 0
}

// ApplyLocal applies a local edit: validate, apply, push its inverse to
// the undo stack, clear the redo stack, append to the log, bump the
// version, and emit a change event. Failure leaves all three queues
// unchanged.
func (h *History) ApplyLocal(op algebra.Operation) (algebra.Operation, error) {
	h.mu.Lock()

	resolved, err := h.doc.Apply(op)
	if err != nil {
		h.mu.Unlock()
		return algebra.Operation{}, err
	}

	inv, err := resolved.Inverse()
	if err != nil {
		h.mu.Unlock()
		return algebra.Operation{}, err
	}

	h.pushApplied(resolved)
	h.pushUndo(undoEntry{forward: resolved, inverse: inv})
	h.redo = nil

	ev := ChangeEvent{State: h.doc.Snapshot(), Op: resolved}
	h.mu.Unlock()

	h.emit(ev)
	return resolved, nil
}

// ApplyRemote rebases op through the tail of the log the remote author
// had not yet seen (starting at sourceVersion), applies the rebased
// form, and transforms the undo/redo stacks against the original op so
// a later undo still targets the correct region.
func (h *History) ApplyRemote(op algebra.Operation, sourceVersion uint64) (algebra.Operation, error) {
	h.mu.Lock()

	if sourceVersion < h.appliedFrom {
		h.mu.Unlock()
		return algebra.Operation{}, ErrDesync
	}
	tailStart := sourceVersion - h.appliedFrom
	if tailStart > uint64(len(h.applied)) {
		h.mu.Unlock()
		return algebra.Operation{}, ErrDesync
	}

	transformed := op
	for _, prior := range h.applied[tailStart:] {
		var err error
		transformed, err = transformed.Transform(prior)
		if err != nil {
			h.mu.Unlock()
			return algebra.Operation{}, err
		}
	}

	resolved, err := h.doc.Apply(transformed)
	if err != nil {
		h.mu.Unlock()
		return algebra.Operation{}, err
	}

	newUndo, err := transformEntries(h.undo, op)
	if err != nil {
		h.mu.Unlock()
		return algebra.Operation{}, err
	}
	newRedo, err := transformEntries(h.redo, op)
	if err != nil {
		h.mu.Unlock()
		return algebra.Operation{}, err
	}
	h.undo = newUndo
	h.redo = newRedo

	h.pushApplied(resolved)

	ev := ChangeEvent{State: h.doc.Snapshot(), Op: resolved}
	h.mu.Unlock()

	h.emit(ev)
	return resolved, nil
}

// Undo pops the undo stack, applies the stored inverse, and pushes the
// original operation onto the redo stack. It returns the applied
// inverse so the caller can broadcast it, plus the id of the operation
// it reverses (the controller uses this as RelatedID).
func (h *History) Undo() (algebra.Operation, algebra.ID, error) {
	h.mu.Lock()

	if len(h.undo) == 0 {
		h.mu.Unlock()
		return algebra.Operation{}, algebra.ID{}, ErrNothingToUndo
	}

	entry := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]

	resolvedInv, err := h.doc.Apply(entry.inverse)
	if err != nil {
		h.undo = append(h.undo, entry)
		h.mu.Unlock()
		return algebra.Operation{}, algebra.ID{}, err
	}

	h.pushApplied(resolvedInv)
	h.redo = append(h.redo, undoEntry{forward: entry.forward, inverse: resolvedInv})

	ev := ChangeEvent{State: h.doc.Snapshot(), Op: resolvedInv}
	reversed := entry.forward.ID
	h.mu.Unlock()

	h.emit(ev)
	return resolvedInv, reversed, nil
}

// Redo pops the redo stack, re-applies the original forward operation,
// and pushes a freshly computed inverse back onto the undo stack.
func (h *History) Redo() (algebra.Operation, error) {
	h.mu.Lock()

	if len(h.redo) == 0 {
		h.mu.Unlock()
		return algebra.Operation{}, ErrNothingToRedo
	}

	entry := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]

	resolvedFwd, err := h.doc.Apply(entry.forward)
	if err != nil {
		h.redo = append(h.redo, entry)
		h.mu.Unlock()
		return algebra.Operation{}, err
	}

	inv, err := resolvedFwd.Inverse()
	if err != nil {
		h.mu.Unlock()
		return algebra.Operation{}, err
	}

	h.pushApplied(resolvedFwd)
	h.pushUndo(undoEntry{forward: resolvedFwd, inverse: inv})

	ev := ChangeEvent{State: h.doc.Snapshot(), Op: resolvedFwd}
	h.mu.Unlock()

	h.emit(ev)
	return resolvedFwd, nil
}

// pushApplied appends to the log, evicting the oldest entry once the
// log exceeds capacity.
func (h *History) pushApplied(op algebra.Operation) {
	h.applied = append(h.applied, op)
	if len(h.applied) > h.maxApplied {
		h.applied = h.applied[1:]
		h.appliedFrom++
	}
}

// pushUndo appends to the undo stack, dropping the oldest (front) entry
// once it exceeds capacity — that operation becomes non-undoable.
func (h *History) pushUndo(e undoEntry) {
	h.undo = append(h.undo, e)
	if len(h.undo) > h.maxUndo {
		h.undo = h.undo[1:]
	}
}

func transformEntries(entries []undoEntry, against algebra.Operation) ([]undoEntry, error) {
	if len(entries) == 0 {
		return entries, nil
	}
	out := make([]undoEntry, len(entries))
	for i, e := range entries {
		fwd, err := e.forward.Transform(against)
		if err != nil {
			return nil, err
		}
		inv, err := e.inverse.Transform(against)
		if err != nil {
			return nil, err
		}
		out[i] = undoEntry{forward: fwd, inverse: inv}
	}
	return out, nil
}
