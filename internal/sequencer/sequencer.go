// Package sequencer implements the server-side Operation Manager: the
// per-document sequencer that turns the partially ordered stream of
// client edits into one canonical, linearly ordered history.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/abhilashshingan/collaborative-editor/internal/algebra"
	"github.com/abhilashshingan/collaborative-editor/internal/storage"
)

// Errors surfaced by Process. RevisionInFuture and transform failures
// are replica-fatal for the caller (it should request a full resync);
// Rejected is returned to the originating client only.
var (
	ErrRevisionInFuture = errors.New("sequencer: base revision is ahead of the document")
	ErrRejected         = errors.New("sequencer: operation rejected after rebase")
	ErrClosed           = errors.New("sequencer: document sequencer is closed")
)

// Broadcaster fans a canonical operation out to every session with the
// document open. It is satisfied by an adapter over ws.Hub (in-process)
// or internal/presence (cross-process, Redis-backed) — the sequencer
// does not know or care which.
type Broadcaster interface {
	Broadcast(docID string, op algebra.Operation, revision uint64, excludeClientID string)
}

// AckHook is invoked after a canonical operation commits, so the
// Session Registry can update the author's lastAckRevision and push the
// canonical operation onto their server-side undo stack (§4.5); the
// inverse is computed when an undo is requested.
type AckHook interface {
	RecordAck(userID, docID string, op algebra.Operation, revision uint64)
}

// Document is the server-side sequencer for a single document: it owns
// the authoritative algebra.Document, the canonical operation log used
// to rebase late arrivals, and persistence/fan-out for the result. It
// is the direct analogue of the teacher's per-document Session, built
// around the operation algebra and wire protocol instead of a
// character-oriented OT queue.
type Document struct {
	docID string

	mu       sync.Mutex
	document *algebra.Document
	log      []storage.LoggedOperation // canonical log since startRevision
	closed   bool

	store          storage.Store
	snapshotPolicy *storage.SnapshotPolicy
	broadcaster    Broadcaster
	ackHook        AckHook
}

// Config holds the collaborators a Document sequencer needs.
type Config struct {
	DocID          string
	Store          storage.Store
	SnapshotPolicy *storage.SnapshotPolicy
	Broadcaster    Broadcaster
	AckHook        AckHook
}

// New creates a sequencer for a single document. Callers must call
// Load before Process.
func New(cfg Config) *Document {
	return &Document{
		docID:          cfg.DocID,
		document:       algebra.NewDocument(""),
		store:          cfg.Store,
		snapshotPolicy: cfg.SnapshotPolicy,
		broadcaster:    cfg.Broadcaster,
		ackHook:        cfg.AckHook,
	}
}

// Load replays the document's persisted snapshot and operation log so
// the in-memory sequencer starts at the correct content and revision.
func (d *Document) Load(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	loader := storage.NewDocumentLoader(d.store)
	result, err := loader.Load(ctx, d.docID)
	if err != nil {
		return fmt.Errorf("sequencer: load %s: %w", d.docID, err)
	}

	d.document = algebra.NewDocument("")
	d.document.Restore(algebra.State{Content: result.Content, Version: result.Revision})
	d.log = nil

	return nil
}

// Process implements the OM.process algorithm from §4.4: rebase op
// through the canonical tail since baseRevision, dry-run validate the
// result, commit it, persist, ack the author, and fan out to every
// session with the document open except the submitting clientID.
func (d *Document) Process(ctx context.Context, op algebra.Operation, clientID string, baseRevision uint64) (algebra.Operation, uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return algebra.Operation{}, 0, ErrClosed
	}

	current := d.document.Version()
	if baseRevision > current {
		return algebra.Operation{}, 0, ErrRevisionInFuture
	}

	tail := d.tailSince(baseRevision)

	transformed := op
	for _, logged := range tail {
		if logged.Op.ID == op.ID {
			// Idempotence: this operation has already been committed;
			// return its already-recorded canonical form.
			return logged.Op, logged.Revision, nil
		}

		var err error
		transformed, err = transformed.Transform(logged.Op)
		if err != nil {
			return algebra.Operation{}, 0, fmt.Errorf("sequencer: rebase %s: %w", d.docID, err)
		}
	}

	if err := d.document.DryRun(transformed); err != nil {
		return algebra.Operation{}, 0, fmt.Errorf("%w: %v", ErrRejected, err)
	}

	resolved, err := d.document.Apply(transformed)
	if err != nil {
		return algebra.Operation{}, 0, fmt.Errorf("%w: %v", ErrRejected, err)
	}

	revision := d.document.Version()
	logged := storage.LoggedOperation{DocID: d.docID, Revision: revision, Op: resolved}
	d.log = append(d.log, logged)

	if err := d.store.AppendOperation(ctx, logged); err != nil {
		return algebra.Operation{}, 0, fmt.Errorf("sequencer: append %s: %w", d.docID, err)
	}

	d.maybeSnapshot(ctx)

	if d.ackHook != nil {
		d.ackHook.RecordAck(resolved.UserID, d.docID, resolved, revision)
	}

	if d.broadcaster != nil {
		d.broadcaster.Broadcast(d.docID, resolved, revision, clientID)
	}

	return resolved, revision, nil
}

// tailSince returns the logged operations with revision strictly
// greater than baseRevision, assuming the full canonical log since
// Load is retained in memory (the server never evicts its own log;
// only client-side History has a capacity bound).
func (d *Document) tailSince(baseRevision uint64) []storage.LoggedOperation {
	for i, entry := range d.log {
		if entry.Revision > baseRevision {
			return d.log[i:]
		}
	}
	return nil
}

func (d *Document) maybeSnapshot(ctx context.Context) {
	if d.snapshotPolicy == nil {
		return
	}
	if !d.snapshotPolicy.RecordOperation(d.docID) {
		return
	}
	snap := d.document.Snapshot()
	if err := d.store.SaveSnapshot(ctx, d.docID, snap.Version, snap.Content); err == nil {
		d.log = d.tailSince(snap.Version)
		d.snapshotPolicy.Reset(d.docID)
	}
}

// Snapshot returns the current (content, version) pair for
// reconnecting clients requesting a full resync (§6 Sync-State).
func (d *Document) Snapshot() algebra.State {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.document.Snapshot()
}

// OperationsSince returns the canonical operations applied after
// fromVersion, for a Sync-Response incremental catch-up.
func (d *Document) OperationsSince(fromVersion uint64) []algebra.Operation {
	d.mu.Lock()
	defer d.mu.Unlock()

	tail := d.tailSince(fromVersion)
	ops := make([]algebra.Operation, len(tail))
	for i, entry := range tail {
		ops[i] = entry.Op
	}
	return ops
}

// Close marks the sequencer closed and saves a final snapshot.
func (d *Document) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	snap := d.document.Snapshot()
	return d.store.SaveSnapshot(ctx, d.docID, snap.Version, snap.Content)
}
