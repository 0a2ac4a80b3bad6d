// Package library implements the Library aggregate: an owning collection
// of chunks plus the one current index built over them.
//
// A Library's chunk list and its index are always kept in lockstep: every
// mutation (Upsert, Delete) rebuilds the index from the post-mutation
// chunk list before returning, so Search always reflects the library's
// current contents exactly (invariant L3).
package library

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/orneryd/vecstore/pkg/chunk"
	"github.com/orneryd/vecstore/pkg/filter"
	"github.com/orneryd/vecstore/pkg/index"
	"github.com/orneryd/vecstore/pkg/vserr"
)

// Library is an aggregate root owning an ordered chunk list and the
// single current index built over it.
//
// Library is not safe for concurrent use on its own — pkg/store wraps
// each Library with a dedicated rwlock.RWLock and is the only place
// mutation/read concurrency is arbitrated, matching §4.I's lock
// discipline (Library itself assumes its caller already holds the right
// lock).
type Library struct {
	ID        string
	Name      string
	Metadata  map[string]filter.Value
	CreatedAt time.Time

	dim     int
	chunks  []chunk.Chunk
	byID    map[string]int // chunk id -> position in chunks
	idxKind index.Kind
	idx     index.Index
}

// New constructs an empty Library with the given name, generating an id
// if one is not supplied, and builds its initial index of kind idxKind
// over zero chunks.
func New(id, name string, metadata map[string]filter.Value, dim int, idxKind index.Kind) *Library {
	if id == "" {
		id = uuid.NewString()
	}
	if metadata == nil {
		metadata = map[string]filter.Value{}
	}
	l := &Library{
		ID:        id,
		Name:      name,
		Metadata:  metadata,
		CreatedAt: time.Now(),
		dim:       dim,
		byID:      map[string]int{},
		idxKind:   idxKind,
	}
	l.idx = newIndex(idxKind)
	_ = l.rebuildIndex() // empty build never fails
	return l
}

// Restore reconstructs a Library from previously persisted state (used by
// pkg/store's snapshot loader), bypassing id generation and dimension
// revalidation since the chunks were already valid when saved.
func Restore(id, name string, metadata map[string]filter.Value, dim int, idxKind index.Kind, createdAt time.Time, chunks []chunk.Chunk) (*Library, error) {
	l := &Library{
		ID:        id,
		Name:      name,
		Metadata:  metadata,
		CreatedAt: createdAt,
		dim:       dim,
		chunks:    chunks,
		byID:      make(map[string]int, len(chunks)),
		idxKind:   idxKind,
	}
	for i, c := range chunks {
		l.byID[c.ID] = i
	}
	l.idx = newIndex(idxKind)
	if err := l.rebuildIndex(); err != nil {
		return nil, err
	}
	return l, nil
}

func newIndex(kind index.Kind) index.Index {
	switch kind {
	case index.KindBallTree:
		return index.NewBallTreeIndex(0)
	default:
		return index.NewBruteForceIndex(true)
	}
}

// Upsert validates every chunk's embedding dimension, then replaces
// in-place any chunk whose id is already known (else appends it), and
// rebuilds the index from the resulting chunk list. Validation is
// all-or-nothing: if any input chunk has the wrong dimension, no change
// is applied. An empty input is a no-op; the index is left untouched.
func (l *Library) Upsert(chunks []chunk.Chunk) ([]chunk.Chunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	for _, c := range chunks {
		if err := c.ValidateDimension(l.dim); err != nil {
			return nil, err
		}
	}

	written := make([]chunk.Chunk, len(chunks))
	for i, c := range chunks {
		written[i] = c.Clone()
		if pos, ok := l.byID[c.ID]; ok {
			l.chunks[pos] = c.Clone()
		} else {
			l.chunks = append(l.chunks, c.Clone())
			l.byID[c.ID] = len(l.chunks) - 1
		}
	}

	if err := l.rebuildIndex(); err != nil {
		return nil, err
	}
	return written, nil
}

// Delete removes chunks by id, or clears the whole list when ids is nil,
// then rebuilds the index.
func (l *Library) Delete(ids []string) error {
	if ids == nil {
		l.chunks = nil
		l.byID = map[string]int{}
		return l.rebuildIndex()
	}

	remove := make(map[string]bool, len(ids))
	for _, id := range ids {
		remove[id] = true
	}

	kept := l.chunks[:0:0]
	for _, c := range l.chunks {
		if !remove[c.ID] {
			kept = append(kept, c)
		}
	}
	l.chunks = kept
	l.byID = make(map[string]int, len(kept))
	for i, c := range kept {
		l.byID[c.ID] = i
	}

	return l.rebuildIndex()
}

// DeleteByFilter removes every chunk whose metadata matches f, then
// rebuilds the index.
func (l *Library) DeleteByFilter(f filter.Filter) error {
	// Non-nil even when nothing matches: Delete(nil) clears the library.
	ids := []string{}
	for _, c := range l.chunks {
		if filter.Passes(c.Metadata, f) {
			ids = append(ids, c.ID)
		}
	}
	return l.Delete(ids)
}

// GetAllChunks returns an immutable snapshot of the ordered chunk list.
func (l *Library) GetAllChunks() []chunk.Chunk {
	out := make([]chunk.Chunk, len(l.chunks))
	for i, c := range l.chunks {
		out[i] = c.Clone()
	}
	return out
}

// Count returns the number of chunks currently in the library.
func (l *Library) Count() int { return len(l.chunks) }

// BuildIndex replaces the current index with a freshly built instance of
// kind, built over the current chunk list.
func (l *Library) BuildIndex(kind index.Kind) error {
	l.idxKind = kind
	l.idx = newIndex(kind)
	return l.rebuildIndex()
}

// IndexKind returns the kind of the library's current index.
func (l *Library) IndexKind() index.Kind { return l.idxKind }

// Search delegates to the current index, then the caller (pkg/store) maps
// the returned ids back to Chunk records.
func (l *Library) Search(query []float32, k int) ([]index.SearchResult, error) {
	return l.idx.Search(query, k)
}

// rebuildIndex rebuilds the current index from l.chunks, detecting
// duplicate ids (which should be unreachable given Upsert/Delete
// maintain l.byID) as an invariant violation rather than silently
// building a corrupt index.
func (l *Library) rebuildIndex() error {
	seen := make(map[string]bool, len(l.chunks))
	vectors := make([][]float32, len(l.chunks))
	ids := make([]string, len(l.chunks))
	for i, c := range l.chunks {
		if seen[c.ID] {
			return fmt.Errorf("library %s: duplicate chunk id %s: %w", l.ID, c.ID, vserr.ErrInvariant)
		}
		seen[c.ID] = true
		vectors[i] = c.Embedding
		ids[i] = c.ID
	}
	return l.idx.Build(vectors, ids)
}
