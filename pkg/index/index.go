// Package index provides the pluggable nearest-neighbor index used by
// pkg/library: an abstract contract plus two implementations.
//
//   - BruteForceIndex: dense matrix, exhaustive cosine scan.
//   - BallTreeIndex: recursive cosine-metric spatial partition with
//     triangle-inequality pruning.
//
// Both satisfy the same Index contract, so pkg/library can hold either
// behind one interface field and rebuild it wholesale on every mutation.
//
// Example Usage:
//
//	idx := index.NewBruteForceIndex(true) // normalize=true
//	if err := idx.Build(vectors, ids); err != nil {
//		log.Fatal(err)
//	}
//	results, err := idx.Search(query, 5)
//
// Thread Safety:
//
//	Both implementations are thread-safe for concurrent Search calls once
//	built. Build replaces all state under each index's own write lock, so
//	it never overlaps a Search on the same index; pkg/store additionally
//	serializes mutations with its per-library lock.
package index

import (
	"fmt"

	"github.com/orneryd/vecstore/pkg/vserr"
)

// Kind names a concrete Index implementation, used by the transport layer
// and pkg/library.BuildIndex to select which to construct.
type Kind string

const (
	KindBruteForce Kind = "BruteForceIndex"
	KindBallTree   Kind = "BallTreeIndex"
)

// SearchResult pairs an id with its cosine similarity to the query,
// sorted by Search in descending order of Score.
type SearchResult struct {
	ID    string
	Score float64
}

// Index is the shared contract both BruteForceIndex and BallTreeIndex
// satisfy.
//
// Build replaces all index state; it is idempotent (repeated builds fully
// replace prior state) and fails on a vector/id length mismatch or a
// vector whose length differs from the first vector's length (the index
// takes its dimension from the first vector of each build).
//
// Search returns up to k (id, similarity) pairs sorted by descending
// similarity, failing with vserr.ErrNotBuilt if called before any Build.
type Index interface {
	Build(vectors [][]float32, ids []string) error
	Search(query []float32, k int) ([]SearchResult, error)
	Name() Kind
}

// validateBuildInput checks the common Build precondition shared by both
// implementations: equal-length vectors/ids, and every vector matching
// dim (when dim > 0; dim == 0 means "take the dimension from the first
// vector", used when an index is built before any dimension is known).
func validateBuildInput(vectors [][]float32, ids []string, dim int) (int, error) {
	if len(vectors) != len(ids) {
		return 0, fmt.Errorf("index: %d vectors but %d ids: %w", len(vectors), len(ids), vserr.ErrBadDimension)
	}
	if len(vectors) == 0 {
		return dim, nil
	}
	if dim == 0 {
		dim = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) != dim {
			return 0, fmt.Errorf("index: vector %d has length %d, want %d: %w", i, len(v), dim, vserr.ErrBadDimension)
		}
	}
	return dim, nil
}

// clampK normalizes a requested k against the number of available
// candidates n, per the contract "result length is min(k, |ids|)" and
// "k <= 0 returns the empty list".
func clampK(k, n int) int {
	if k <= 0 {
		return 0
	}
	if k > n {
		return n
	}
	return k
}
