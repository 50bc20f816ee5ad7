// Package registry implements the Session Registry: the per-user state
// the Operation Manager needs to correctly transform and undo — last
// acknowledged revision per document, per-(user,document) undo/redo
// stacks holding canonical operations, and open-document membership.
package registry

import (
	"errors"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/abhilashshingan/collaborative-editor/internal/algebra"
)

// State is a session's position in the connect/authenticate lifecycle.
type State int

const (
	StateConnecting State = iota
	StateAuthenticating
	StateAuthenticated
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

var (
	ErrSessionNotFound  = errors.New("registry: session not found")
	ErrUsernameTaken    = errors.New("registry: username already in use")
	ErrNotAuthenticated = errors.New("registry: session is not authenticated")
)

// Record is the server-side per-connection state described in §3.
type Record struct {
	SessionID string
	UserID    string
	Username  string
	State     State

	mu              sync.Mutex
	lastActivity    time.Time
	openDocs        mapset.Set[string]
	lastAckRevision map[string]uint64
	undoStacks      map[string][]stackEntry
	redoStacks      map[string][]stackEntry
}

// stackEntry pairs a canonical operation with the revision the server
// assigned it, so a later undo request can rebase its inverse through
// exactly the canonical operations that committed after it.
type stackEntry struct {
	op       algebra.Operation
	revision uint64
}

func newRecord(sessionID string) *Record {
	return &Record{
		SessionID:       sessionID,
		State:           StateConnecting,
		lastActivity:    time.Now(),
		openDocs:        mapset.NewSet[string](),
		lastAckRevision: make(map[string]uint64),
		undoStacks:      make(map[string][]stackEntry),
		redoStacks:      make(map[string][]stackEntry),
	}
}

// touch records activity on the record, resetting the idle clock.
func (r *Record) touch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastActivity = time.Now()
}

// LastActivity returns the time of the record's most recent activity.
func (r *Record) LastActivity() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActivity
}

// OpenDocs returns the set of document IDs this session has open.
func (r *Record) OpenDocs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.openDocs.ToSlice()
}

// LastAckRevision returns the last revision acknowledged for docID.
func (r *Record) LastAckRevision(docID string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastAckRevision[docID]
}

// Registry tracks every connected session, keyed by session id, plus
// the set of authenticated usernames (unique while authenticated).
type Registry struct {
	mu        sync.RWMutex
	sessions  map[string]*Record
	usernames map[string]string // username -> sessionID
}

// New creates an empty Session Registry.
func New() *Registry {
	return &Registry{
		sessions:  make(map[string]*Record),
		usernames: make(map[string]string),
	}
}

// Create registers a new connecting session.
func (reg *Registry) Create(sessionID string) *Record {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	record := newRecord(sessionID)
	reg.sessions[sessionID] = record
	return record
}

// IsUsernameAvailable reports whether username is not currently claimed
// by an authenticated session.
func (reg *Registry) IsUsernameAvailable(username string) bool {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	_, taken := reg.usernames[username]
	return !taken
}

// Authenticate binds a username to sessionID, provided the name is
// free. On success the session transitions to StateAuthenticated.
func (reg *Registry) Authenticate(sessionID, username string) (*Record, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	record, ok := reg.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	if _, taken := reg.usernames[username]; taken {
		return nil, ErrUsernameTaken
	}

	record.Username = username
	record.UserID = username
	record.State = StateAuthenticated
	reg.usernames[username] = sessionID
	record.touch()

	return record, nil
}

// Get returns the record for sessionID, or nil if unknown.
func (reg *Registry) Get(sessionID string) *Record {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	return reg.sessions[sessionID]
}

// Close removes a session, freeing its username for reuse.
func (reg *Registry) Close(sessionID string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	record, ok := reg.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}

	if record.Username != "" {
		delete(reg.usernames, record.Username)
	}
	delete(reg.sessions, sessionID)

	return nil
}

// OpenDocument marks docID as open for sessionID.
func (reg *Registry) OpenDocument(sessionID, docID string) error {
	record := reg.Get(sessionID)
	if record == nil {
		return ErrSessionNotFound
	}

	record.mu.Lock()
	record.openDocs.Add(docID)
	record.mu.Unlock()
	record.touch()

	return nil
}

// CloseDocument marks docID as closed for sessionID.
func (reg *Registry) CloseDocument(sessionID, docID string) error {
	record := reg.Get(sessionID)
	if record == nil {
		return ErrSessionNotFound
	}

	record.mu.Lock()
	record.openDocs.Remove(docID)
	record.mu.Unlock()
	record.touch()

	return nil
}

// UsersOnDocument returns the usernames of every authenticated session
// with docID currently open.
func (reg *Registry) UsersOnDocument(docID string) []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	var users []string
	for _, record := range reg.sessions {
		record.mu.Lock()
		open := record.openDocs.Contains(docID)
		record.mu.Unlock()

		if open && record.Username != "" {
			users = append(users, record.Username)
		}
	}
	return users
}

// CleanupIdle closes every session whose last activity is older than
// maxIdle, returning the number reaped.
func (reg *Registry) CleanupIdle(maxIdle time.Duration) int {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	reaped := 0

	for sessionID, record := range reg.sessions {
		if record.LastActivity().Before(cutoff) {
			if record.Username != "" {
				delete(reg.usernames, record.Username)
			}
			delete(reg.sessions, sessionID)
			reaped++
		}
	}

	return reaped
}

// RecordAck updates the author's lastAckRevision and pushes the
// canonical operation onto their server-side undo stack. It implements
// sequencer.AckHook, called by the Operation Manager on every commit
// (§4.4 step 6).
func (reg *Registry) RecordAck(userID, docID string, op algebra.Operation, revision uint64) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	for _, record := range reg.sessions {
		if record.UserID != userID {
			continue
		}

		record.mu.Lock()
		record.lastAckRevision[docID] = revision
		if op.Origin == algebra.OriginLocal {
			record.undoStacks[docID] = append(record.undoStacks[docID], stackEntry{op: op, revision: revision})
			record.redoStacks[docID] = nil
		}
		record.mu.Unlock()
	}
}

// PopUndo pops the most recent canonical operation a user can undo on
// docID. The caller is responsible for rebasing the inverse through
// intervening canonical operations before resubmitting it, per §4.5's
// dual-history rationale; PopUndoAt is the variant that also returns
// the revision needed to do that rebase.
func (reg *Registry) PopUndo(userID, docID string) (algebra.Operation, bool) {
	entry, ok := reg.popStack(userID, docID, true)
	return entry.op, ok
}

// PopRedo pops the most recent canonical operation a user can redo on
// docID.
func (reg *Registry) PopRedo(userID, docID string) (algebra.Operation, bool) {
	entry, ok := reg.popStack(userID, docID, false)
	return entry.op, ok
}

// PopUndoAt behaves like PopUndo but also returns the revision the
// server assigned the popped operation, which the caller needs to know
// how far to rebase the computed inverse before resubmitting it.
func (reg *Registry) PopUndoAt(userID, docID string) (algebra.Operation, uint64, bool) {
	entry, ok := reg.popStack(userID, docID, true)
	return entry.op, entry.revision, ok
}

// PopRedoAt is the Redo counterpart of PopUndoAt.
func (reg *Registry) PopRedoAt(userID, docID string) (algebra.Operation, uint64, bool) {
	entry, ok := reg.popStack(userID, docID, false)
	return entry.op, entry.revision, ok
}

func (reg *Registry) popStack(userID, docID string, undo bool) (stackEntry, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	for _, record := range reg.sessions {
		if record.UserID != userID {
			continue
		}

		record.mu.Lock()
		defer record.mu.Unlock()

		stacks := record.undoStacks
		other := record.redoStacks
		if !undo {
			stacks, other = record.redoStacks, record.undoStacks
		}

		stack := stacks[docID]
		if len(stack) == 0 {
			return stackEntry{}, false
		}

		entry := stack[len(stack)-1]
		stacks[docID] = stack[:len(stack)-1]
		other[docID] = append(other[docID], entry)

		return entry, true
	}

	return stackEntry{}, false
}

// SessionCount returns the number of currently tracked sessions.
func (reg *Registry) SessionCount() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	return len(reg.sessions)
}
