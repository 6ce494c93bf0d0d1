package vectorstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragproxy/internal/domain"
)

func fragment(id string, vec ...float64) domain.Fragment {
	return domain.Fragment{
		ID:        id,
		Text:      "text for " + id,
		Embedding: vec,
		Metadata:  domain.Metadata{DocumentID: "doc", CreatedAt: 1700000000},
	}
}

func TestSearchEmptyStore(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "db.json"), true)
	assert.Empty(t, s.Search([]float64{1, 0}, 5))
}

func TestSearchRanking(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "db.json"), true)
	require.NoError(t, s.Add(fragment("a", 1, 0, 0)))
	require.NoError(t, s.Add(fragment("b", 0.9, 0.1, 0)))
	require.NoError(t, s.Add(fragment("c", 0, 1, 0)))
	require.NoError(t, s.Add(fragment("d", 0, 0, 1)))

	res := s.Search([]float64{1, 0, 0}, 10)
	require.Len(t, res, 2, "orthogonal vectors score 0 and fall below the floor")
	assert.Equal(t, "a", res[0].Fragment.ID)
	assert.InDelta(t, 1.0, res[0].Score, 1e-9)
	assert.Equal(t, "b", res[1].Fragment.ID)
	for i := 1; i < len(res); i++ {
		assert.GreaterOrEqual(t, res[i-1].Score, res[i].Score)
	}
	for _, r := range res {
		assert.Greater(t, r.Score, MinScore)
	}
}

func TestSearchTopKBound(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "db.json"), true)
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.Add(fragment(id, 1, 0)))
	}
	assert.Len(t, s.Search([]float64{1, 0}, 2), 2)
}

func TestSearchTieBreakKeepsInsertionOrder(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "db.json"), true)
	require.NoError(t, s.Add(fragment("first", 1, 0)))
	require.NoError(t, s.Add(fragment("second", 2, 0))) // same direction, same cosine
	require.NoError(t, s.Add(fragment("third", 1, 0)))

	res := s.Search([]float64{1, 0}, 3)
	require.Len(t, res, 3)
	assert.Equal(t, []string{"first", "second", "third"},
		[]string{res[0].Fragment.ID, res[1].Fragment.ID, res[2].Fragment.ID})
}

func TestSearchZeroVectors(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "db.json"), true)
	require.NoError(t, s.Add(fragment("zero", 0, 0)))

	assert.Empty(t, s.Search([]float64{1, 0}, 5))
	assert.Empty(t, s.Search([]float64{0, 0}, 5))
}

func TestAddStrictDimensionCheck(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "db.json"), true)
	require.NoError(t, s.Add(fragment("a", 1, 0, 0)))

	err := s.Add(fragment("b", 1, 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.Equal(t, 1, s.Len())
}

func TestAddPermissiveMode(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "db.json"), false)
	require.NoError(t, s.Add(fragment("a", 1, 0, 0)))
	require.NoError(t, s.Add(fragment("b", 1, 0)))
	assert.Equal(t, 2, s.Len())
}

func TestAddDuplicateIDs(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "db.json"), true)
	require.NoError(t, s.Add(fragment("dup", 1, 0)))
	require.NoError(t, s.Add(fragment("dup", 1, 0)))
	assert.Len(t, s.Search([]float64{1, 0}, 5), 2)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	s := Open(path, true)
	want := []domain.Fragment{
		{
			ID:        "doc_1_chunk_0",
			Text:      "first chunk",
			Embedding: []float64{0.25, -0.5, 0.75},
			Metadata:  domain.Metadata{DocumentID: "doc_1", ChunkIndex: 0, SourcePath: "/tmp/a.txt", CreatedAt: 1700000000},
		},
		{
			ID:        "doc_1_chunk_1",
			Text:      "second chunk",
			Embedding: []float64{-0.1, 0.2, -0.3},
			Metadata:  domain.Metadata{DocumentID: "doc_1", ChunkIndex: 1, SourcePath: "/tmp/a.txt", CreatedAt: 1700000001},
		},
	}
	for _, f := range want {
		require.NoError(t, s.Add(f))
	}
	require.NoError(t, s.Save())

	// The temp file must not linger after a successful save.
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	reopened := Open(path, true)
	reopened.Load()
	assert.Equal(t, want, reopened.Fragments())
}

func TestLoadMissingFile(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "absent.json"), true)
	s.Load()
	assert.Equal(t, 0, s.Len())
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	require.NoError(t, os.WriteFile(path, []byte("{{{not json"), 0o644))

	s := Open(path, true)
	s.Load()
	assert.Equal(t, 0, s.Len())

	// A corrupt file must not block later writes.
	require.NoError(t, s.Add(fragment("a", 1, 0)))
	require.NoError(t, s.Save())
}
