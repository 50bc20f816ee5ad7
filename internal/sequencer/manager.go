package sequencer

import (
	"context"
	"sync"

	"github.com/abhilashshingan/collaborative-editor/internal/storage"
)

// Manager owns one Document sequencer per open document, creating them
// lazily and loading their state from Store on first access. It is the
// multi-document counterpart of Document, mirroring the way the
// teacher's collab.Manager multiplexes collab.Session per docID.
type Manager struct {
	mu   sync.RWMutex
	docs map[string]*Document

	store          storage.Store
	snapshotPolicy *storage.SnapshotPolicy
	broadcaster    Broadcaster
	ackHook        AckHook
}

// ManagerConfig holds the collaborators shared by every Document
// sequencer the Manager creates.
type ManagerConfig struct {
	Store          storage.Store
	SnapshotPolicy *storage.SnapshotPolicy
	Broadcaster    Broadcaster
	AckHook        AckHook
}

// NewManager creates a sequencer manager.
func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		docs:           make(map[string]*Document),
		store:          cfg.Store,
		snapshotPolicy: cfg.SnapshotPolicy,
		broadcaster:    cfg.Broadcaster,
		ackHook:        cfg.AckHook,
	}
}

// Open returns the sequencer for docID, creating and loading it if this
// is the first request for that document in this process.
func (m *Manager) Open(ctx context.Context, docID string) (*Document, error) {
	m.mu.RLock()
	doc, ok := m.docs[docID]
	m.mu.RUnlock()

	if ok {
		return doc, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if doc, ok = m.docs[docID]; ok {
		return doc, nil
	}

	doc = New(Config{
		DocID:          docID,
		Store:          m.store,
		SnapshotPolicy: m.snapshotPolicy,
		Broadcaster:    m.broadcaster,
		AckHook:        m.ackHook,
	})

	if err := doc.Load(ctx); err != nil {
		return nil, err
	}

	m.docs[docID] = doc

	return doc, nil
}

// Get returns the sequencer for docID if it has already been opened in
// this process, or nil otherwise.
func (m *Manager) Get(docID string) *Document {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.docs[docID]
}

// Close closes and forgets the sequencer for docID, if open.
func (m *Manager) Close(ctx context.Context, docID string) error {
	m.mu.Lock()
	doc, ok := m.docs[docID]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.docs, docID)
	m.mu.Unlock()

	return doc.Close(ctx)
}

// CloseAll closes every open sequencer, used on graceful shutdown.
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	docs := make([]*Document, 0, len(m.docs))
	for _, doc := range m.docs {
		docs = append(docs, doc)
	}
	m.docs = make(map[string]*Document)
	m.mu.Unlock()

	var lastErr error
	for _, doc := range docs {
		if err := doc.Close(ctx); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// OpenCount returns the number of currently open document sequencers.
func (m *Manager) OpenCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.docs)
}
