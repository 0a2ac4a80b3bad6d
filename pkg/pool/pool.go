// Package pool provides scratch-buffer pooling for vecstore's hot search
// path, reducing allocations during repeated top-k selection.
//
// Pooled objects:
//   - Result scratch slices used by BruteForceIndex while accumulating
//     candidates before the final sort. BallTreeIndex does not use the
//     pool.
package pool

import "sync"

// PoolConfig configures pooling behavior.
type PoolConfig struct {
	// Enabled controls whether pooling is active.
	Enabled bool
	// MaxSize limits maximum capacity kept in the pool; larger slices are
	// dropped on Put rather than retained (memory-leak prevention).
	MaxSize int
}

var globalConfig = PoolConfig{
	Enabled: true,
	MaxSize: 4096,
}

// Configure sets global pool configuration. Should be called early during
// initialization.
func Configure(config PoolConfig) {
	globalConfig = config
}

// IsEnabled returns whether pooling is enabled.
func IsEnabled() bool {
	return globalConfig.Enabled
}

// ScoredID is a candidate (id, score) pair produced while scanning an
// index before the final top-k sort and trim.
type ScoredID struct {
	ID    string
	Score float64
}

var scoredIDSlicePool = sync.Pool{
	New: func() any {
		return make([]ScoredID, 0, 64)
	},
}

// GetScoredIDSlice returns a scratch []ScoredID from the pool with length
// 0 and some existing capacity. Call PutScoredIDSlice when done.
func GetScoredIDSlice() []ScoredID {
	if !globalConfig.Enabled {
		return make([]ScoredID, 0, 64)
	}
	return scoredIDSlicePool.Get().([]ScoredID)[:0]
}

// PutScoredIDSlice returns a scratch slice to the pool.
func PutScoredIDSlice(s []ScoredID) {
	if !globalConfig.Enabled {
		return
	}
	if cap(s) > globalConfig.MaxSize {
		return
	}
	scoredIDSlicePool.Put(s[:0])
}
