package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	st, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st2, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, st2.Close())
}

func TestCreateRunAndReadBack(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateRun(ctx, "run-1", "corpora/epoch_forks.json"))

	run, err := st.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.RunID)
	assert.Equal(t, "corpora/epoch_forks.json", run.CorpusPath)
	assert.NotEmpty(t, run.CreatedAt)
}

func TestCreateRunRejectsDuplicateID(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateRun(ctx, "run-1", "a.json"))
	assert.Error(t, st.CreateRun(ctx, "run-1", "b.json"), "runs are immutable once recorded")
}

func TestGetRunNotFound(t *testing.T) {
	st := openTestStore(t)

	_, err := st.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLatestRunEmptyArchive(t *testing.T) {
	st := openTestStore(t)

	_, err := st.LatestRun(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWriteEnvelopeRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateRun(ctx, "run-1", "a.json"))
	body := []byte(`{"scenario_id":"s1","status":"pass"}`)
	require.NoError(t, st.WriteEnvelope(ctx, "run-1", "s1", "pass", body))

	envelopes, err := st.ReadEnvelopes(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, envelopes, 1)
	assert.Equal(t, "pass", envelopes["s1"].Status)
	assert.Equal(t, body, envelopes["s1"].Body)
}

func TestWriteEnvelopeIsIdempotent(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateRun(ctx, "run-1", "a.json"))
	require.NoError(t, st.WriteEnvelope(ctx, "run-1", "s1", "pass", []byte(`{"v":1}`)))
	// The second write is silently ignored, never an overwrite.
	require.NoError(t, st.WriteEnvelope(ctx, "run-1", "s1", "fail", []byte(`{"v":2}`)))

	envelopes, err := st.ReadEnvelopes(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "pass", envelopes["s1"].Status)
	assert.Equal(t, []byte(`{"v":1}`), envelopes["s1"].Body)
}

func TestListRunsNewestFirst(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateRun(ctx, "run-a", "a.json"))
	require.NoError(t, st.CreateRun(ctx, "run-b", "b.json"))

	runs, err := st.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	// Identical created_at timestamps fall back to run_id descending.
	assert.Equal(t, runs[0].CreatedAt >= runs[1].CreatedAt, true)
}
