package registry_test

import (
	"testing"
	"time"

	"github.com/sanity-io/litter"
	"github.com/stretchr/testify/require"

	"github.com/abhilashshingan/collaborative-editor/internal/algebra"
	"github.com/abhilashshingan/collaborative-editor/internal/registry"
)

func TestRegistry_AuthenticateClaimsUsername(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	reg.Create("s1")

	require.True(t, reg.IsUsernameAvailable("alice"))

	record, err := reg.Authenticate("s1", "alice")
	require.NoError(t, err)
	require.Equal(t, registry.StateAuthenticated, record.State)
	require.False(t, reg.IsUsernameAvailable("alice"))
}

func TestRegistry_AuthenticateRejectsTakenUsername(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	reg.Create("s1")
	reg.Create("s2")

	_, err := reg.Authenticate("s1", "alice")
	require.NoError(t, err)

	_, err = reg.Authenticate("s2", "alice")
	require.ErrorIs(t, err, registry.ErrUsernameTaken)
}

func TestRegistry_AuthenticateUnknownSession(t *testing.T) {
	t.Parallel()

	reg := registry.New()

	_, err := reg.Authenticate("ghost", "alice")
	require.ErrorIs(t, err, registry.ErrSessionNotFound)
}

func TestRegistry_CloseFreesUsername(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	reg.Create("s1")
	_, err := reg.Authenticate("s1", "alice")
	require.NoError(t, err)

	require.NoError(t, reg.Close("s1"))
	require.True(t, reg.IsUsernameAvailable("alice"))
	require.Equal(t, 0, reg.SessionCount())
}

func TestRegistry_OpenCloseDocumentTracksMembership(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	reg.Create("s1")
	_, err := reg.Authenticate("s1", "alice")
	require.NoError(t, err)

	require.NoError(t, reg.OpenDocument("s1", "doc1"))
	require.Equal(t, []string{"alice"}, reg.UsersOnDocument("doc1"))

	require.NoError(t, reg.CloseDocument("s1", "doc1"))
	require.Empty(t, reg.UsersOnDocument("doc1"))
}

func TestRegistry_CleanupIdleReapsStaleSessions(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	record := reg.Create("s1")
	_, err := reg.Authenticate("s1", "alice")
	require.NoError(t, err)

	// Force the record's activity into the past by sleeping past a tiny
	// idle threshold instead of reaching into its internals.
	_ = record
	time.Sleep(5 * time.Millisecond)

	reaped := reg.CleanupIdle(1 * time.Millisecond)
	require.Equal(t, 1, reaped)
	require.Equal(t, 0, reg.SessionCount())
	require.True(t, reg.IsUsernameAvailable("alice"))
}

func TestRegistry_CleanupIdleKeepsActiveSessions(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	reg.Create("s1")
	_, err := reg.Authenticate("s1", "alice")
	require.NoError(t, err)

	reaped := reg.CleanupIdle(1 * time.Hour)
	require.Equal(t, 0, reaped)
	require.Equal(t, 1, reg.SessionCount())
}

func TestRegistry_RecordAckPushesLocalOpsOntoUndoStack(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	reg.Create("s1")
	_, err := reg.Authenticate("s1", "alice")
	require.NoError(t, err)

	op := algebra.NewInsert(algebra.ID{UserID: "alice", Seq: 1}, 0, "hi").WithOrigin(algebra.OriginLocal)
	reg.RecordAck("alice", "doc1", op, 1)

	popped, ok := reg.PopUndo("alice", "doc1")
	require.True(t, ok)
	require.Equal(t, op.Text, popped.Text, "popped operation did not match what was recorded:\n%s", litter.Sdump(popped))

	_, ok = reg.PopUndo("alice", "doc1")
	require.False(t, ok)
}

func TestRegistry_RecordAckIgnoresNonLocalOrigins(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	reg.Create("s1")
	_, err := reg.Authenticate("s1", "alice")
	require.NoError(t, err)

	op := algebra.NewInsert(algebra.ID{UserID: "alice", Seq: 1}, 0, "hi").WithOrigin(algebra.OriginRemote)
	reg.RecordAck("alice", "doc1", op, 1)

	_, ok := reg.PopUndo("alice", "doc1")
	require.False(t, ok)
}

func TestRegistry_PopUndoMovesOperationToRedoStack(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	reg.Create("s1")
	_, err := reg.Authenticate("s1", "alice")
	require.NoError(t, err)

	op := algebra.NewInsert(algebra.ID{UserID: "alice", Seq: 1}, 0, "hi").WithOrigin(algebra.OriginLocal)
	reg.RecordAck("alice", "doc1", op, 1)

	_, ok := reg.PopUndo("alice", "doc1")
	require.True(t, ok)

	redone, ok := reg.PopRedo("alice", "doc1")
	require.True(t, ok)
	require.Equal(t, op.Text, redone.Text)
}

func TestRegistry_LastAckRevisionTracksPerDocument(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	reg.Create("s1")
	record, err := reg.Authenticate("s1", "alice")
	require.NoError(t, err)

	op := algebra.NewInsert(algebra.ID{UserID: "alice", Seq: 1}, 0, "hi")
	reg.RecordAck("alice", "doc1", op, 7)

	require.Equal(t, uint64(7), record.LastAckRevision("doc1"))
	require.Equal(t, uint64(0), record.LastAckRevision("doc2"))
}
