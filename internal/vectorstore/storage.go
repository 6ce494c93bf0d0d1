// Package vectorstore holds document fragments with their embeddings in
// memory, persisted wholesale to a single JSON file. Search is a full
// linear cosine scan, which is the scalability ceiling of this store.
package vectorstore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"sync"

	"ragproxy/internal/domain"
)

// MinScore is the similarity floor below which fragments are never returned.
const MinScore = 0.1

const defaultTopK = 5

// Storage is a file-backed vector store. All mutations are serialized
// behind a write lock; searches run concurrently against the shared state
// under a read lock.
type Storage struct {
	mu        sync.RWMutex
	path      string
	strict    bool
	fragments []domain.Fragment
}

// Open creates a store backed by the file at path. When strict is true,
// Add rejects fragments whose vector length differs from the fragments
// already stored. Call Load to read existing state.
func Open(path string, strict bool) *Storage {
	return &Storage{path: path, strict: strict}
}

// Load reads the backing file into memory. A missing or unparseable file
// is not fatal: the store resets to empty and the service keeps running.
func (s *Storage) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("vector store unreadable, starting empty", "path", s.path, "err", err)
		}
		s.fragments = nil
		return
	}
	var fragments []domain.Fragment
	if err := json.Unmarshal(data, &fragments); err != nil {
		slog.Warn("vector store corrupt, starting empty", "path", s.path, "err", err)
		s.fragments = nil
		return
	}
	s.fragments = fragments
	slog.Info("vector store loaded", "path", s.path, "fragments", len(fragments))
}

// Add appends a fragment. Duplicate ids are tolerated; both entries stay
// retrievable. In strict mode a vector whose length differs from the
// existing set is rejected.
func (s *Storage) Add(f domain.Fragment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.strict && len(s.fragments) > 0 {
		if want := len(s.fragments[0].Embedding); len(f.Embedding) != want {
			return fmt.Errorf("%w: store holds %d-d vectors, fragment %q has %d",
				domain.ErrDimensionMismatch, want, f.ID, len(f.Embedding))
		}
	}
	s.fragments = append(s.fragments, f)
	return nil
}

// Save rewrites the backing file with the full fragment set. The write
// goes to a temporary file first and is renamed into place, so a crash
// mid-write cannot truncate a previously good file.
func (s *Storage) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.MarshalIndent(s.fragments, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal vector store: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write vector store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace vector store: %w", err)
	}
	return nil
}

// Search ranks every stored fragment by cosine similarity to query and
// returns at most topK results scoring above MinScore, best first. Ties
// keep insertion order. An empty store yields an empty result.
func (s *Storage) Search(query []float64, topK int) []domain.SearchResult {
	if topK <= 0 {
		topK = defaultTopK
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]domain.SearchResult, 0, len(s.fragments))
	for _, f := range s.fragments {
		score := cosine(query, f.Embedding)
		if score > MinScore {
			results = append(results, domain.SearchResult{Fragment: f, Score: score})
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// Len returns the number of stored fragments.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.fragments)
}

// Fragments returns a copy of the stored fragment sequence in insertion
// order.
func (s *Storage) Fragments() []domain.Fragment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Fragment, len(s.fragments))
	copy(out, s.fragments)
	return out
}

// cosine returns the normalized dot product of a and b. A zero vector on
// either side scores 0 by convention rather than dividing by zero.
func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
