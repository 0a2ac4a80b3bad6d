package chunk

import (
	"errors"
	"testing"

	"github.com/orneryd/vecstore/pkg/vserr"
)

func TestNewGeneratesIDWhenAbsent(t *testing.T) {
	c := New("", []float32{1, 2, 3}, nil)
	if c.ID == "" {
		t.Error("New should generate an id when none is supplied")
	}
	if c.Metadata == nil {
		t.Error("New should never leave Metadata nil")
	}
}

func TestNewKeepsSuppliedID(t *testing.T) {
	c := New("explicit-id", []float32{1}, nil)
	if c.ID != "explicit-id" {
		t.Errorf("ID = %q, want %q", c.ID, "explicit-id")
	}
}

func TestValidateDimension(t *testing.T) {
	c := New("a", []float32{1, 2, 3}, nil)
	if err := c.ValidateDimension(3); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if err := c.ValidateDimension(4); !errors.Is(err, vserr.ErrBadDimension) {
		t.Errorf("expected ErrBadDimension, got %v", err)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	c := New("a", []float32{1, 2, 3}, nil)
	clone := c.Clone()
	clone.Embedding[0] = 99
	if c.Embedding[0] == 99 {
		t.Error("Clone should not share the embedding backing array")
	}
}
