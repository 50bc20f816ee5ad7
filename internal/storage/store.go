// Package storage persists document snapshots and operation logs so a
// session can be reconstructed after a process restart or handed off
// between sequencer instances.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/abhilashshingan/collaborative-editor/internal/algebra"
)

// Common errors.
var (
	ErrDocumentNotFound = errors.New("storage: document not found")
	ErrDocumentExists   = errors.New("storage: document already exists")
	ErrSnapshotNotFound = errors.New("storage: snapshot not found")
)

// Snapshot is a point-in-time capture of a document's state.
type Snapshot struct {
	DocID     string
	Revision  uint64
	Content   string
	CreatedAt time.Time
}

// LoggedOperation is a canonical operation as recorded by the
// sequencer, tagged with the revision it was assigned.
type LoggedOperation struct {
	DocID    string
	Revision uint64
	Op       algebra.Operation
}

// Store persists document state. Implementations can be in-memory
// (tests, single-process dev) or backed by a real database.
type Store interface {
	// CreateDocument creates a new document, optionally seeded with
	// initialContent. Returns ErrDocumentExists if docID is taken.
	CreateDocument(ctx context.Context, docID, initialContent string) error

	// DocumentExists reports whether docID has been created.
	DocumentExists(ctx context.Context, docID string) (bool, error)

	// ListDocuments returns every known document id.
	ListDocuments(ctx context.Context) ([]string, error)

	// DeleteDocument removes a document and all of its history.
	DeleteDocument(ctx context.Context, docID string) error

	// RenameDocument changes a document's id, carrying over its
	// revision and log. Returns ErrDocumentNotFound if oldID is
	// unknown and ErrDocumentExists if newID is taken.
	RenameDocument(ctx context.Context, oldID, newID string) error

	// SaveSnapshot persists a snapshot at the given revision and
	// prunes operations the snapshot now covers.
	SaveSnapshot(ctx context.Context, docID string, revision uint64, content string) error

	// LoadSnapshot retrieves the latest snapshot for a document.
	LoadSnapshot(ctx context.Context, docID string) (Snapshot, error)

	// AppendOperation appends a canonical operation to the document's
	// log.
	AppendOperation(ctx context.Context, op LoggedOperation) error

	// LoadOperations retrieves every logged operation with revision
	// strictly greater than sinceRevision, in revision order.
	LoadOperations(ctx context.Context, docID string, sinceRevision uint64) ([]LoggedOperation, error)

	// LatestRevision returns the highest revision recorded for docID.
	LatestRevision(ctx context.Context, docID string) (uint64, error)
}
