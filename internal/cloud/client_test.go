package cloud

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divijg19/lakecross/internal/analytics"
	"github.com/divijg19/lakecross/internal/core"
)

type memObjects struct {
	data map[string][]byte
}

type memWriter struct {
	bytes.Buffer
	commit func([]byte)
}

func (w *memWriter) Close() error {
	w.commit(w.Bytes())
	return nil
}

func (m *memObjects) NewWriter(_ context.Context, bucket, object string) io.WriteCloser {
	return &memWriter{commit: func(b []byte) { m.data[bucket+"/"+object] = b }}
}

func (m *memObjects) NewReader(_ context.Context, bucket, object string) (io.ReadCloser, error) {
	b, ok := m.data[bucket+"/"+object]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func newMemMirror() *Mirror {
	return &Mirror{objects: &memObjects{data: map[string][]byte{}}, Bucket: "b", Object: "lake/sessions.ndjson"}
}

func TestMirror_ExportThenAggregate(t *testing.T) {
	m := newMemMirror()
	ctx := context.Background()

	docs, err := m.Documents(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)

	sessions := []core.SessionRecord{
		{ID: "1", Status: core.StatusCompleted, Won: true, MoveCount: 11, Mistakes: []core.Mistake{}},
		{ID: "2", Status: core.StatusCompleted, MoveCount: 5, Mistakes: []core.Mistake{core.MistakeInvalidBoatLoad}},
		{ID: "3", Status: core.StatusInProgress},
	}
	require.NoError(t, m.Export(ctx, sessions))

	docs, err = m.Documents(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 3)

	sum, err := analytics.NewService(m, 11).Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.TotalGames)
	assert.Equal(t, 1, sum.Wins)
	assert.Equal(t, 1, sum.OptimalSolutionCount)
	assert.Equal(t, 1, sum.MistakeFrequency[core.MistakeInvalidBoatLoad])
}

func TestParseURL(t *testing.T) {
	b, o, err := ParseURL("gs://my-bucket/exports/sessions.ndjson")
	require.NoError(t, err)
	assert.Equal(t, "my-bucket", b)
	assert.Equal(t, "exports/sessions.ndjson", o)

	for _, bad := range []string{"s3://b/o", "gs://bucket", "gs:///object", "gs://bucket/"} {
		_, _, err := ParseURL(bad)
		assert.Error(t, err, bad)
	}
}

func TestNewMirror_Validation(t *testing.T) {
	ctx := context.Background()
	_, err := NewMirror(ctx, "", "o", "")
	assert.Error(t, err)

	_, err = NewMirror(ctx, "b", "o", "/nonexistent/key.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service account key not found")

	bad := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(bad, []byte("not valid json"), 0o600))
	_, err = NewMirror(ctx, "b", "o", bad)
	assert.Error(t, err)
}
