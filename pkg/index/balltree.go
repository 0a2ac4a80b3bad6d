package index

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/orneryd/vecstore/pkg/vector"
	"github.com/orneryd/vecstore/pkg/vserr"
)

// defaultLeafSize is the default leaf_size parameter: nodes covering this
// many points or fewer are emitted as leaves rather than split further.
const defaultLeafSize = 16

// ballNode is one node of the tree. Leaves have left == nil && right ==
// nil and carry the indices they cover; internal nodes always have both
// children and do not carry indices (every point lives in exactly one
// leaf).
type ballNode struct {
	centroid []float32 // unit vector (or degenerate all-zero)
	radius   float64   // max cosine distance from centroid to any covered point
	indices  []int     // only set on leaves
	left     *ballNode
	right    *ballNode
}

// BallTreeIndex is a recursive cosine-metric spatial partition over
// unit-normalized vectors, searched with triangle-inequality pruning.
//
// Build (expected O(n log n)):
//  1. Row-normalize the input matrix.
//  2. Recursively partition a set of indices: compute the centroid (mean,
//     renormalized to unit — left unmodified if its norm is zero, a
//     degenerate but legal leaf), compute the radius as the max cosine
//     distance from the centroid to any covered point, and emit a leaf if
//     the covered set is at most leafSize. Otherwise project every
//     covered point onto the centroid, split at the median projection,
//     and recurse on each half. If the split is degenerate (one side
//     empty, e.g. all projections equal because of duplicate vectors),
//     the node is emitted as a leaf instead of recursing forever.
//
// Search maintains a bounded best-set of up to k (index, distance) pairs
// and, once k pairs are held, prunes any subtree whose lower-bound
// distance to the query is greater than or equal to the current k-th best
// distance.
type BallTreeIndex struct {
	mu       sync.RWMutex
	leafSize int
	dim      int
	matrix   [][]float32 // unit-normalized
	ids      []string
	root     *ballNode
	built    bool
}

// NewBallTreeIndex constructs an empty BallTreeIndex with the given leaf
// size. A leafSize <= 0 uses defaultLeafSize.
func NewBallTreeIndex(leafSize int) *BallTreeIndex {
	if leafSize <= 0 {
		leafSize = defaultLeafSize
	}
	return &BallTreeIndex{leafSize: leafSize}
}

// Name returns KindBallTree.
func (t *BallTreeIndex) Name() Kind { return KindBallTree }

// Build replaces all index state, row-normalizing the input vectors and
// recursively constructing the tree. An empty build (zero vectors) leaves
// the index with no root; subsequent Search fails with vserr.ErrNotBuilt.
func (t *BallTreeIndex) Build(vectors [][]float32, ids []string) error {
	dim, err := validateBuildInput(vectors, ids, 0)
	if err != nil {
		return err
	}

	matrix := make([][]float32, len(vectors))
	for i, v := range vectors {
		matrix[i] = vector.Normalize(v)
	}
	idsCopy := make([]string, len(ids))
	copy(idsCopy, ids)

	var root *ballNode
	if len(matrix) > 0 {
		all := make([]int, len(matrix))
		for i := range all {
			all[i] = i
		}
		root = buildNode(matrix, all, dim, t.leafSize)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.dim = dim
	t.matrix = matrix
	t.ids = idsCopy
	t.root = root
	t.built = len(matrix) > 0
	return nil
}

// buildNode recursively constructs the subtree covering indices.
func buildNode(matrix [][]float32, indices []int, dim, leafSize int) *ballNode {
	centroid := computeCentroid(matrix, indices, dim)
	radius := computeRadius(matrix, indices, centroid)

	if len(indices) <= leafSize {
		return &ballNode{centroid: centroid, radius: radius, indices: indices}
	}

	// Project every covered point onto the centroid and split at the
	// median projection.
	type proj struct {
		idx int
		p   float64
	}
	projs := make([]proj, len(indices))
	for i, idx := range indices {
		projs[i] = proj{idx: idx, p: vector.DotProduct(matrix[idx], centroid)}
	}
	sort.Slice(projs, func(i, j int) bool { return projs[i].p < projs[j].p })

	mid := len(projs) / 2
	median := projs[mid].p

	var left, right []int
	for _, pr := range projs {
		if pr.p <= median {
			left = append(left, pr.idx)
		} else {
			right = append(right, pr.idx)
		}
	}

	if len(left) == 0 || len(right) == 0 {
		// Degenerate split (e.g. duplicate vectors put every projection
		// at the median): emit a leaf to guarantee termination.
		return &ballNode{centroid: centroid, radius: radius, indices: indices}
	}

	return &ballNode{
		centroid: centroid,
		radius:   radius,
		left:     buildNode(matrix, left, dim, leafSize),
		right:    buildNode(matrix, right, dim, leafSize),
	}
}

func computeCentroid(matrix [][]float32, indices []int, dim int) []float32 {
	sum := make([]float64, dim)
	for _, idx := range indices {
		row := matrix[idx]
		for j := 0; j < dim; j++ {
			sum[j] += float64(row[j])
		}
	}
	n := float64(len(indices))
	centroid := make([]float32, dim)
	for j := range sum {
		centroid[j] = float32(sum[j] / n)
	}

	norm := vector.Vector(centroid).Norm()
	if norm == 0 {
		// Degenerate but legal: leave the centroid unmodified (all zero).
		return centroid
	}
	for j := range centroid {
		centroid[j] = float32(float64(centroid[j]) / norm)
	}
	return centroid
}

// computeRadius returns max_i (1 - centroid . x_i) over the covered
// points, which is non-negative by construction since both centroid and
// x_i are unit vectors (or the degenerate all-zero centroid, for which
// every distance is exactly 1).
func computeRadius(matrix [][]float32, indices []int, centroid []float32) float64 {
	var maxDist float64
	for _, idx := range indices {
		d := 1 - vector.DotProduct(matrix[idx], centroid)
		if d > maxDist {
			maxDist = d
		}
	}
	return maxDist
}

// Search returns the top-k (id, similarity) pairs for query, descending
// by similarity, using depth-first traversal with triangle-inequality
// pruning.
func (t *BallTreeIndex) Search(query []float32, k int) ([]SearchResult, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.built {
		return nil, fmt.Errorf("balltree index: %w", vserr.ErrNotBuilt)
	}

	n := clampK(k, len(t.ids))
	if n == 0 {
		return []SearchResult{}, nil
	}

	q := vector.Normalize(query)
	best := newBestSet(n)
	t.visit(t.root, q, best)

	items := best.sorted()
	out := make([]SearchResult, len(items))
	for i, it := range items {
		out[i] = SearchResult{ID: t.ids[it.index], Score: 1 - it.dist}
	}
	return out, nil
}

func (t *BallTreeIndex) visit(node *ballNode, q []float32, best *bestSet) {
	if node == nil {
		return
	}

	lb := lowerBound(q, node)
	if best.full() && lb >= best.worst() {
		return
	}

	if node.left == nil && node.right == nil {
		for _, idx := range node.indices {
			d := 1 - vector.DotProduct(q, t.matrix[idx])
			best.push(idx, d)
		}
		return
	}

	leftDist := 1 - vector.DotProduct(q, node.left.centroid)
	rightDist := 1 - vector.DotProduct(q, node.right.centroid)

	if leftDist <= rightDist {
		t.visit(node.left, q, best)
		t.visit(node.right, q, best)
	} else {
		t.visit(node.right, q, best)
		t.visit(node.left, q, best)
	}
}

// lowerBound computes max(0, (1 - q.c) - r): the minimum possible cosine
// distance from q to any point covered by node.
func lowerBound(q []float32, node *ballNode) float64 {
	lb := (1 - vector.DotProduct(q, node.centroid)) - node.radius
	if lb < 0 {
		return 0
	}
	return lb
}

// bestSet is a bounded accumulator of the k smallest (index, distance)
// pairs seen so far. k is typically small for top-k queries, so a linear
// scan for the current worst is cheaper in practice than heap bookkeeping.
type bestSet struct {
	k     int
	items []bestItem
}

type bestItem struct {
	index int
	dist  float64
}

func newBestSet(k int) *bestSet {
	return &bestSet{k: k, items: make([]bestItem, 0, k)}
}

func (b *bestSet) full() bool { return len(b.items) >= b.k }

// worst returns the current k-th best (i.e. largest kept) distance, or
// +Inf if fewer than k items have been seen.
func (b *bestSet) worst() float64 {
	if len(b.items) < b.k {
		return math.Inf(1)
	}
	w := b.items[0].dist
	for _, it := range b.items[1:] {
		if it.dist > w {
			w = it.dist
		}
	}
	return w
}

func (b *bestSet) push(index int, dist float64) {
	if len(b.items) < b.k {
		b.items = append(b.items, bestItem{index: index, dist: dist})
		return
	}
	// Replace the current max on overflow.
	worstIdx := 0
	for i := 1; i < len(b.items); i++ {
		if b.items[i].dist > b.items[worstIdx].dist {
			worstIdx = i
		}
	}
	if dist < b.items[worstIdx].dist {
		b.items[worstIdx] = bestItem{index: index, dist: dist}
	}
}

func (b *bestSet) sorted() []bestItem {
	out := make([]bestItem, len(b.items))
	copy(out, b.items)
	sort.SliceStable(out, func(i, j int) bool { return out[i].dist < out[j].dist })
	return out
}
