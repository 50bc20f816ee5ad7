package storage

import (
	"context"
	"sync"
	"time"
)

// documentData holds all persisted data for a single document.
type documentData struct {
	snapshot   *Snapshot
	operations []LoggedOperation
}

// MemoryStore is an in-memory implementation of Store. Useful for
// testing and single-process development.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*documentData
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]*documentData),
	}
}

// CreateDocument creates a new document, optionally seeded with
// initialContent.
func (m *MemoryStore) CreateDocument(_ context.Context, docID, initialContent string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.docs[docID]; exists {
		return ErrDocumentExists
	}

	m.docs[docID] = &documentData{
		operations: make([]LoggedOperation, 0),
	}
	if initialContent != "" {
		m.docs[docID].snapshot = &Snapshot{
			DocID:     docID,
			Revision:  0,
			Content:   initialContent,
			CreatedAt: time.Now(),
		}
	}

	return nil
}

// DocumentExists checks if a document exists.
func (m *MemoryStore) DocumentExists(_ context.Context, docID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.docs[docID]

	return exists, nil
}

// ListDocuments returns every known document id.
func (m *MemoryStore) ListDocuments(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}

	return ids, nil
}

// DeleteDocument removes a document and all of its history.
func (m *MemoryStore) DeleteDocument(_ context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.docs[docID]; !exists {
		return ErrDocumentNotFound
	}

	delete(m.docs, docID)

	return nil
}

// RenameDocument changes a document's id, carrying over its revision
// and log.
func (m *MemoryStore) RenameDocument(_ context.Context, oldID, newID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, exists := m.docs[oldID]
	if !exists {
		return ErrDocumentNotFound
	}
	if _, taken := m.docs[newID]; taken {
		return ErrDocumentExists
	}

	delete(m.docs, oldID)
	if doc.snapshot != nil {
		doc.snapshot.DocID = newID
	}
	for i := range doc.operations {
		doc.operations[i].DocID = newID
	}
	m.docs[newID] = doc

	return nil
}

// SaveSnapshot persists a snapshot of the document at the given
// revision and prunes operations it now covers.
func (m *MemoryStore) SaveSnapshot(_ context.Context, docID string, revision uint64, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, exists := m.docs[docID]
	if !exists {
		return ErrDocumentNotFound
	}

	doc.snapshot = &Snapshot{
		DocID:     docID,
		Revision:  revision,
		Content:   content,
		CreatedAt: time.Now(),
	}

	m.pruneOperations(doc, revision)

	return nil
}

// pruneOperations removes operations at or before the snapshot revision.
func (m *MemoryStore) pruneOperations(doc *documentData, snapshotRevision uint64) {
	kept := doc.operations[:0:0]

	for _, op := range doc.operations {
		if op.Revision > snapshotRevision {
			kept = append(kept, op)
		}
	}

	doc.operations = kept
}

// LoadSnapshot retrieves the latest snapshot for a document.
func (m *MemoryStore) LoadSnapshot(_ context.Context, docID string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, exists := m.docs[docID]
	if !exists {
		return Snapshot{}, ErrDocumentNotFound
	}

	if doc.snapshot == nil {
		return Snapshot{}, ErrSnapshotNotFound
	}

	return *doc.snapshot, nil
}

// AppendOperation adds a canonical operation to the document's log.
func (m *MemoryStore) AppendOperation(_ context.Context, op LoggedOperation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, exists := m.docs[op.DocID]
	if !exists {
		return ErrDocumentNotFound
	}

	doc.operations = append(doc.operations, op)

	return nil
}

// LoadOperations retrieves all operations after the given revision.
func (m *MemoryStore) LoadOperations(_ context.Context, docID string, sinceRevision uint64) ([]LoggedOperation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, exists := m.docs[docID]
	if !exists {
		return nil, ErrDocumentNotFound
	}

	var result []LoggedOperation

	for _, op := range doc.operations {
		if op.Revision > sinceRevision {
			result = append(result, op)
		}
	}

	return result, nil
}

// LatestRevision returns the highest revision number for a document.
func (m *MemoryStore) LatestRevision(_ context.Context, docID string) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, exists := m.docs[docID]
	if !exists {
		return 0, ErrDocumentNotFound
	}

	if len(doc.operations) > 0 {
		return doc.operations[len(doc.operations)-1].Revision, nil
	}

	if doc.snapshot != nil {
		return doc.snapshot.Revision, nil
	}

	return 0, nil
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
