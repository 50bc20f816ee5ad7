package algebra

import (
	"sync"
	"unicode/utf8"
)

// Document holds the authoritative byte content of a replica and a
// monotone version counter. It is safe for concurrent use; callers that
// need atomicity across several reads (e.g. a dry-run validate followed
// by apply) should use Snapshot/Restore rather than interleaving calls.
type Document struct {
	mu      sync.RWMutex
	content []byte
	version uint64
}

// NewDocument creates a document with the given initial byte content.
func NewDocument(initial string) *Document {
	return &Document{content: []byte(initial)}
}

// Content returns the current document content.
func (d *Document) Content() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return string(d.content)
}

// Len returns the document length in bytes.
func (d *Document) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.content)
}

// Version returns the current version counter.
func (d *Document) Version() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

// State is a snapshot pair (content, version), per §3 DocumentState.
type State struct {
	Content string
	Version uint64
}

// Snapshot returns the current (content, version) pair.
func (d *Document) Snapshot() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return State{Content: string(d.content), Version: d.version}
}

// Restore replaces the document's content and version wholesale. Used
// when a replica falls back to a full resync after a transform failure.
func (d *Document) Restore(s State) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.content = []byte(s.Content)
	d.version = s.Version
}

// Apply applies op to the document, advancing the version by exactly
// one. It returns the resolved form of op — identical to the input
// except that a Delete (or a Composite containing one) has DeletedText
// populated from the content actually removed, which inverse() needs to
// be total. On failure the document is left unchanged.
func (d *Document) Apply(op Operation) (Operation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	newContent, resolved, err := applyTo(d.content, op)
	if err != nil {
		return Operation{}, err
	}
	d.content = newContent
	d.version++
	return resolved, nil
}

// DryRun validates that op would apply successfully without mutating
// the document. Used by the server to re-validate a rebased operation
// against canonical content before committing it.
func (d *Document) DryRun(op Operation) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, _, err := applyTo(d.content, op)
	return err
}

// applyTo is the pure core of Apply: given content and an operation, it
// returns the new content and the resolved operation, or an error that
// leaves content conceptually unchanged (the caller never sees a
// partial mutation because this function only returns newContent on
// total success).
func applyTo(content []byte, op Operation) ([]byte, Operation, error) {
	switch op.Kind {
	case KindInsert:
		return applyInsert(content, op)
	case KindDelete:
		return applyDelete(content, op)
	case KindComposite:
		return applyComposite(content, op)
	default:
		return nil, Operation{}, ErrUnknownKind
	}
}

func applyInsert(content []byte, op Operation) ([]byte, Operation, error) {
	if op.Position < 0 || op.Position > len(content) {
		return nil, Operation{}, ErrOutOfRange
	}
	if !runeBoundary(content, op.Position) {
		return nil, Operation{}, ErrMalformed
	}
	out := make([]byte, 0, len(content)+len(op.Text))
	out = append(out, content[:op.Position]...)
	out = append(out, []byte(op.Text)...)
	out = append(out, content[op.Position:]...)
	return out, op, nil
}

func applyDelete(content []byte, op Operation) ([]byte, Operation, error) {
	if op.Position < 0 || op.Length < 0 || op.end() > len(content) {
		return nil, Operation{}, ErrOutOfRange
	}
	if !runeBoundary(content, op.Position) || !runeBoundary(content, op.end()) {
		return nil, Operation{}, ErrMalformed
	}
	deleted := string(content[op.Position:op.end()])
	out := make([]byte, 0, len(content)-op.Length)
	out = append(out, content[:op.Position]...)
	out = append(out, content[op.end():]...)

	resolved := op
	resolved.DeletedText = deleted
	return out, resolved, nil
}

// runeBoundary reports whether pos lands on a UTF-8 code point boundary
// within content, so an Insert or Delete can never split a multi-byte
// rune (§3 of the expanded spec fixes byte offsets). Apply and DryRun
// reject a split with ErrMalformed; the JSON codec has no content to
// check against and does not.
func runeBoundary(content []byte, pos int) bool {
	if pos <= 0 || pos >= len(content) {
		return true
	}
	return utf8.RuneStart(content[pos])
}

// applyComposite applies children left-to-right on a working copy so
// that a mid-sequence failure leaves the original content untouched.
func applyComposite(content []byte, op Operation) ([]byte, Operation, error) {
	working := content
	resolvedChildren := make([]Operation, len(op.Children))

	for i, child := range op.Children {
		next, resolvedChild, err := applyTo(working, child)
		if err != nil {
			return nil, Operation{}, err
		}
		working = next
		resolvedChildren[i] = resolvedChild
	}

	resolved := op
	resolved.Children = resolvedChildren
	return working, resolved, nil
}
