package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/abhilashshingan/collaborative-editor/internal/algebra"
)

// SnapshotPolicy determines when to create snapshots.
type SnapshotPolicy struct {
	mu               sync.Mutex
	threshold        int            // Create snapshot every N operations
	opsSinceSnapshot map[string]int // Track ops per document since last snapshot
}

// NewSnapshotPolicy creates a policy that triggers snapshots every N operations.
func NewSnapshotPolicy(threshold int) *SnapshotPolicy {
	return &SnapshotPolicy{
		threshold:        threshold,
		opsSinceSnapshot: make(map[string]int),
	}
}

// RecordOperation records that an operation was applied.
// Returns true if a snapshot should be created.
func (p *SnapshotPolicy) RecordOperation(docID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.opsSinceSnapshot[docID]++

	return p.opsSinceSnapshot[docID] >= p.threshold
}

// Reset resets the counter after a snapshot is created.
func (p *SnapshotPolicy) Reset(docID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.opsSinceSnapshot[docID] = 0
}

// OperationsSinceSnapshot returns the number of operations since the last snapshot.
func (p *SnapshotPolicy) OperationsSinceSnapshot(docID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.opsSinceSnapshot[docID]
}

// DocumentLoader reconstructs a document from storage by replaying its
// operation log onto the most recent snapshot.
type DocumentLoader struct {
	store Store
}

// NewDocumentLoader creates a new document loader.
func NewDocumentLoader(store Store) *DocumentLoader {
	return &DocumentLoader{store: store}
}

// LoadResult is the outcome of reconstructing a document.
type LoadResult struct {
	Content  string
	Revision uint64
	IsNew    bool
}

// Load loads the latest snapshot (if any) and replays every operation
// recorded since it, in revision order.
func (l *DocumentLoader) Load(ctx context.Context, docID string) (LoadResult, error) {
	snapshot, err := l.store.LoadSnapshot(ctx, docID)

	var content string
	var startRevision uint64

	switch {
	case errors.Is(err, ErrSnapshotNotFound):
		content = ""
		startRevision = 0
	case err != nil:
		return LoadResult{}, err
	default:
		content = snapshot.Content
		startRevision = snapshot.Revision
	}

	ops, err := l.store.LoadOperations(ctx, docID, startRevision)
	if err != nil {
		return LoadResult{}, err
	}

	doc := algebra.NewDocument(content)
	currentRevision := startRevision

	for _, logged := range ops {
		if _, err := doc.Apply(logged.Op); err != nil {
			return LoadResult{}, err
		}
		currentRevision = logged.Revision
	}

	return LoadResult{
		Content:  doc.Content(),
		Revision: currentRevision,
		IsNew:    startRevision == 0 && len(ops) == 0,
	}, nil
}
