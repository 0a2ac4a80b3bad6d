// Package chunk defines the Chunk entity: an identified embedding record
// with opaque metadata, owned by a library.
package chunk

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/orneryd/vecstore/pkg/filter"
	"github.com/orneryd/vecstore/pkg/vserr"
)

// Chunk is an immutable-after-insertion record: a stable identifier, its
// embedding vector, and an opaque metadata mapping consumed only by the
// predicate evaluator in pkg/filter. Updates replace the record wholesale,
// keyed by ID.
type Chunk struct {
	ID        string
	Embedding []float32
	Metadata  map[string]filter.Value
}

// New constructs a Chunk, generating a UUID v4 ID if id is empty.
func New(id string, embedding []float32, metadata map[string]filter.Value) Chunk {
	if id == "" {
		id = uuid.NewString()
	}
	if metadata == nil {
		metadata = map[string]filter.Value{}
	}
	return Chunk{ID: id, Embedding: embedding, Metadata: metadata}
}

// ValidateDimension reports vserr.ErrBadDimension if the chunk's embedding
// length does not equal dim.
func (c Chunk) ValidateDimension(dim int) error {
	if len(c.Embedding) != dim {
		return fmt.Errorf("chunk %s: embedding length %d, want %d: %w", c.ID, len(c.Embedding), dim, vserr.ErrBadDimension)
	}
	return nil
}

// Clone returns a deep copy of c, so callers holding a snapshot of a
// library's chunk list cannot mutate the library's internal state through
// it.
func (c Chunk) Clone() Chunk {
	embedding := make([]float32, len(c.Embedding))
	copy(embedding, c.Embedding)

	metadata := make(map[string]filter.Value, len(c.Metadata))
	for k, v := range c.Metadata {
		metadata[k] = v
	}

	return Chunk{ID: c.ID, Embedding: embedding, Metadata: metadata}
}
