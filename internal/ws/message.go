package ws

import "github.com/abhilashshingan/collaborative-editor/internal/algebra"

// Type identifies the kind of wire frame, grouped by family: Auth
// (100s), Document management (200s), Edit (300s), Sync (400s),
// Presence (500s), System (900s).
type Type int

const (
	TypeLogin       Type = 100
	TypeLogout      Type = 101
	TypeRegister    Type = 102
	TypeAuthSuccess Type = 103
	TypeAuthFailure Type = 104

	TypeDocCreate   Type = 200
	TypeDocOpen     Type = 201
	TypeDocClose    Type = 202
	TypeDocList     Type = 203
	TypeDocInfo     Type = 204
	TypeDocDelete   Type = 205
	TypeDocRename   Type = 206
	TypeDocResponse Type = 207

	TypeEditInsert  Type = 300
	TypeEditDelete  Type = 301
	TypeEditReplace Type = 302
	TypeEditApply   Type = 303 // server ack carrying the canonical op
	TypeEditReject  Type = 304

	TypeSyncRequest  Type = 400
	TypeSyncResponse Type = 401
	TypeSyncState    Type = 402
	TypeSyncAck      Type = 403

	TypePresenceJoin      Type = 500
	TypePresenceLeave     Type = 501
	TypePresenceCursor    Type = 502
	TypePresenceSelection Type = 503
	TypePresenceUpdate    Type = 504

	TypeSystemError      Type = 900
	TypeSystemInfo       Type = 901
	TypeSystemHeartbeat  Type = 902
	TypeSystemDisconnect Type = 903
)

// Frame is the single self-describing envelope every wire message
// uses, one per line (newline-delimited). Only the fields relevant to
// Type are populated; the rest are left zero.
type Frame struct {
	Type           Type   `json:"type"`
	ClientID       string `json:"clientId"`
	SessionID      string `json:"sessionId"`
	SequenceNumber uint64 `json:"sequenceNumber"`
	Timestamp      int64  `json:"timestamp"`

	// Auth.
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`

	// Document management.
	DocumentID     string   `json:"documentId,omitempty"`
	InitialContent string   `json:"initialContent,omitempty"`
	DocumentIDs    []string `json:"documentIds,omitempty"`
	NewDocumentID  string   `json:"newDocumentId,omitempty"`
	ActiveUsers    int      `json:"activeUsers,omitempty"`

	// Edit.
	DocumentVersion uint64             `json:"documentVersion,omitempty"`
	OperationID     string             `json:"operationId,omitempty"`
	Position        int                `json:"position,omitempty"`
	Length          int                `json:"length,omitempty"`
	Text            string             `json:"text,omitempty"`
	Operation       *algebra.Operation `json:"operation,omitempty"`

	// Sync.
	FromVersion   uint64              `json:"fromVersion,omitempty"`
	ToVersion     uint64              `json:"toVersion,omitempty"`
	Operations    []algebra.Operation `json:"operations,omitempty"`
	DocumentState string              `json:"documentState,omitempty"`

	// Presence.
	Cursor         *int     `json:"cursor,omitempty"`
	SelectionStart *int     `json:"selectionStart,omitempty"`
	SelectionEnd   *int     `json:"selectionEnd,omitempty"`
	Users          []string `json:"users,omitempty"`

	// System / errors.
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Error codes carried in System-Error and Edit-Reject frames.
const (
	ErrorCodeAccessDenied     = "access_denied"
	ErrorCodeInvalidMessage   = "invalid_message"
	ErrorCodeInternalError    = "internal_error"
	ErrorCodeRevisionInFuture = "revision_in_future"
	ErrorCodeRejected         = "rejected"
	ErrorCodeUsernameTaken    = "username_taken"
)
