package index

import (
	"fmt"
	"sort"
	"sync"

	"github.com/orneryd/vecstore/pkg/pool"
	"github.com/orneryd/vecstore/pkg/vector"
	"github.com/orneryd/vecstore/pkg/vserr"
)

// BruteForceIndex is an exhaustive cosine-similarity scan over a dense
// row-major matrix.
//
// Build stacks the input vectors into a dense matrix and computes each
// row's norm. If normalize is true, rows are divided in place to unit
// length (and their recorded norm becomes 1); otherwise the raw norms are
// kept and similarity divides them out at search time. A zero-norm row is
// treated as having norm 1 to avoid division by zero — the row stays all
// zero, so its dot product (and hence similarity) with any query is 0.
//
// Search computes similarities against every stored row, stable-sorts all
// of the candidates by descending similarity (ties keep insertion order)
// and returns the first k. No partial selection is done: every candidate
// is sorted, whatever k is.
type BruteForceIndex struct {
	mu        sync.RWMutex
	normalize bool
	dim       int
	matrix    [][]float32
	rowNorms  []float64
	ids       []string
	built     bool
}

// NewBruteForceIndex constructs an empty BruteForceIndex. When normalize
// is true, stored rows are unit-normalized at Build time and the query is
// normalized at Search time, so similarity reduces to a plain dot
// product.
func NewBruteForceIndex(normalize bool) *BruteForceIndex {
	return &BruteForceIndex{normalize: normalize}
}

// Name returns KindBruteForce.
func (b *BruteForceIndex) Name() Kind { return KindBruteForce }

// Build replaces all index state with the given vectors and parallel ids.
func (b *BruteForceIndex) Build(vectors [][]float32, ids []string) error {
	dim, err := validateBuildInput(vectors, ids, 0)
	if err != nil {
		return err
	}

	matrix := make([][]float32, len(vectors))
	rowNorms := make([]float64, len(vectors))
	idsCopy := make([]string, len(ids))
	copy(idsCopy, ids)

	for i, v := range vectors {
		row := make([]float32, len(v))
		copy(row, v)

		norm := vector.Vector(row).Norm()
		if norm == 0 {
			rowNorms[i] = 1
		} else {
			rowNorms[i] = norm
		}

		if b.normalize {
			if norm > 0 {
				for j := range row {
					row[j] = float32(float64(row[j]) / norm)
				}
			}
			rowNorms[i] = 1
		}

		matrix[i] = row
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.dim = dim
	b.matrix = matrix
	b.rowNorms = rowNorms
	b.ids = idsCopy
	b.built = true
	return nil
}

// Search returns the top-k (id, similarity) pairs for query, descending by
// similarity.
func (b *BruteForceIndex) Search(query []float32, k int) ([]SearchResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.built {
		return nil, fmt.Errorf("bruteforce index: %w", vserr.ErrNotBuilt)
	}

	n := clampK(k, len(b.ids))
	if n == 0 {
		return []SearchResult{}, nil
	}

	q := query
	var qNorm float64 = 1
	if b.normalize {
		q = vector.Normalize(query)
	} else {
		qNorm = vector.Vector(query).Norm()
		if qNorm == 0 {
			qNorm = 1
		}
	}

	candidates := pool.GetScoredIDSlice()
	defer pool.PutScoredIDSlice(candidates)

	for i, row := range b.matrix {
		dot := vector.DotProduct(row, q)
		var sim float64
		if b.normalize {
			sim = dot
		} else {
			sim = dot / (b.rowNorms[i] * qNorm)
		}
		candidates = append(candidates, pool.ScoredID{ID: b.ids[i], Score: sim})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	out := make([]SearchResult, n)
	for i := 0; i < n; i++ {
		out[i] = SearchResult{ID: candidates[i].ID, Score: candidates[i].Score}
	}
	return out, nil
}
