package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	os.Unsetenv("SNAPSHOT_PATH")
	os.Unsetenv("SNAPSHOT_INTERVAL")
	os.Unsetenv("EMBEDDING_DIM")

	cfg := LoadFromEnv()
	if cfg.SnapshotPath != "./vectorstore_snapshot.json" {
		t.Errorf("SnapshotPath = %q", cfg.SnapshotPath)
	}
	if cfg.SnapshotInterval != 10*time.Second {
		t.Errorf("SnapshotInterval = %v", cfg.SnapshotInterval)
	}
	if cfg.EmbeddingDim != 1536 {
		t.Errorf("EmbeddingDim = %d", cfg.EmbeddingDim)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("SNAPSHOT_PATH", "/tmp/snap.json")
	t.Setenv("SNAPSHOT_INTERVAL", "30s")
	t.Setenv("EMBEDDING_DIM", "64")

	cfg := LoadFromEnv()
	if cfg.SnapshotPath != "/tmp/snap.json" {
		t.Errorf("SnapshotPath = %q", cfg.SnapshotPath)
	}
	if cfg.SnapshotInterval != 30*time.Second {
		t.Errorf("SnapshotInterval = %v", cfg.SnapshotInterval)
	}
	if cfg.EmbeddingDim != 64 {
		t.Errorf("EmbeddingDim = %d", cfg.EmbeddingDim)
	}
}

func TestLoadFromEnvSecondsFallback(t *testing.T) {
	t.Setenv("SNAPSHOT_INTERVAL", "45")
	cfg := LoadFromEnv()
	if cfg.SnapshotInterval != 45*time.Second {
		t.Errorf("SnapshotInterval = %v, want 45s", cfg.SnapshotInterval)
	}
}

func TestValidateRejectsBadDimension(t *testing.T) {
	cfg := &Config{SnapshotPath: "x", SnapshotInterval: time.Second, EmbeddingDim: 0}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero embedding dimension")
	}
}

func TestValidateRejectsBadInterval(t *testing.T) {
	cfg := &Config{SnapshotPath: "x", SnapshotInterval: 0, EmbeddingDim: 8}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero snapshot interval")
	}
}
