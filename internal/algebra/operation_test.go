package algebra_test

import (
	"testing"

	"github.com/abhilashshingan/collaborative-editor/internal/algebra"
	"github.com/stretchr/testify/require"
)

func TestDocument_Apply_InsertAndDelete(t *testing.T) {
	t.Parallel()

	doc := algebra.NewDocument("hello")

	resolved, err := doc.Apply(algebra.NewInsert(algebra.ID{UserID: "alice", Seq: 1}, 5, " world"))
	require.NoError(t, err)
	require.Equal(t, " world", resolved.Text)
	require.Equal(t, "hello world", doc.Content())
	require.Equal(t, uint64(1), doc.Version())

	resolved, err = doc.Apply(algebra.NewDelete(algebra.ID{UserID: "alice", Seq: 2}, 0, 5, ""))
	require.NoError(t, err)
	require.Equal(t, "hello", resolved.DeletedText)
	require.Equal(t, " world", doc.Content())
}

func TestDocument_Apply_OutOfRange(t *testing.T) {
	t.Parallel()

	doc := algebra.NewDocument("abc")

	_, err := doc.Apply(algebra.NewInsert(algebra.ID{UserID: "u", Seq: 1}, 10, "x"))
	require.ErrorIs(t, err, algebra.ErrOutOfRange)
	require.Equal(t, "abc", doc.Content())

	_, err = doc.Apply(algebra.NewDelete(algebra.ID{UserID: "u", Seq: 2}, 2, 5, ""))
	require.ErrorIs(t, err, algebra.ErrOutOfRange)
	require.Equal(t, "abc", doc.Content())
}

func TestDocument_Apply_CompositeIsTransactional(t *testing.T) {
	t.Parallel()

	doc := algebra.NewDocument("foo")
	id := algebra.ID{UserID: "alice", Seq: 1}
	composite := algebra.NewComposite(id,
		algebra.NewInsert(id, 0, "bar"),
		algebra.NewDelete(id, 100, 1, ""), // out of range once prefix exists
	)

	_, err := doc.Apply(composite)
	require.ErrorIs(t, err, algebra.ErrOutOfRange)
	require.Equal(t, "foo", doc.Content(), "failed composite must leave the document unchanged")
}

func TestRoundTrip_InsertInverse(t *testing.T) {
	t.Parallel()

	doc := algebra.NewDocument("hello")
	op := algebra.NewInsert(algebra.ID{UserID: "u", Seq: 1}, 2, "XY")

	resolved, err := doc.Apply(op)
	require.NoError(t, err)
	require.Equal(t, "heXYllo", doc.Content())

	inv, err := resolved.Inverse()
	require.NoError(t, err)

	_, err = doc.Apply(inv)
	require.NoError(t, err)
	require.Equal(t, "hello", doc.Content())
}

func TestRoundTrip_DeleteInverse(t *testing.T) {
	t.Parallel()

	doc := algebra.NewDocument("hello world")
	op := algebra.NewDelete(algebra.ID{UserID: "u", Seq: 1}, 5, 6, "")

	resolved, err := doc.Apply(op)
	require.NoError(t, err)
	require.Equal(t, "hello", doc.Content())

	inv, err := resolved.Inverse()
	require.NoError(t, err)

	_, err = doc.Apply(inv)
	require.NoError(t, err)
	require.Equal(t, "hello world", doc.Content())
}

func TestInverse_MissingDeletedTextFails(t *testing.T) {
	t.Parallel()

	op := algebra.NewDelete(algebra.ID{UserID: "u", Seq: 1}, 0, 3, "")
	_, err := op.Inverse()
	require.ErrorIs(t, err, algebra.ErrMissingDeletedText)
}

func TestRoundTrip_CompositeInverse(t *testing.T) {
	t.Parallel()

	doc := algebra.NewDocument("foo")
	id := algebra.ID{UserID: "alice", Seq: 1}
	composite := algebra.NewComposite(id,
		algebra.NewDelete(id, 0, 3, ""),
		algebra.NewInsert(id, 0, "bar"),
	)

	resolved, err := doc.Apply(composite)
	require.NoError(t, err)
	require.Equal(t, "bar", doc.Content())

	inv, err := resolved.Inverse()
	require.NoError(t, err)

	_, err = doc.Apply(inv)
	require.NoError(t, err)
	require.Equal(t, "foo", doc.Content())
}

func TestCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	id := algebra.ID{UserID: "alice", Seq: 7}
	composite := algebra.NewComposite(id,
		algebra.NewInsert(id, 0, "bar"),
		algebra.NewDelete(id, 1, 2, "ar"),
	)

	data, err := composite.MarshalJSON()
	require.NoError(t, err)

	var decoded algebra.Operation
	require.NoError(t, decoded.UnmarshalJSON(data))

	require.Equal(t, algebra.KindComposite, decoded.Kind)
	require.Len(t, decoded.Children, 2)
	require.Equal(t, "bar", decoded.Children[0].Text)
}

func TestCodec_MalformedRejected(t *testing.T) {
	t.Parallel()

	var op algebra.Operation
	err := op.UnmarshalJSON([]byte(`{"type":"frobnicate"}`))
	require.ErrorIs(t, err, algebra.ErrMalformed)

	err = op.UnmarshalJSON([]byte(`not json`))
	require.ErrorIs(t, err, algebra.ErrMalformed)
}
