package pool

import "testing"

func TestConfigure(t *testing.T) {
	origConfig := globalConfig
	defer func() { Configure(origConfig) }()

	t.Run("enable pooling", func(t *testing.T) {
		Configure(PoolConfig{Enabled: true, MaxSize: 500})

		if !IsEnabled() {
			t.Error("IsEnabled() = false, want true")
		}
		if globalConfig.MaxSize != 500 {
			t.Errorf("MaxSize = %d, want 500", globalConfig.MaxSize)
		}
	})

	t.Run("disable pooling", func(t *testing.T) {
		Configure(PoolConfig{Enabled: false, MaxSize: 1000})

		if IsEnabled() {
			t.Error("IsEnabled() = true, want false")
		}
	})
}

func TestGetPutScoredIDSlice(t *testing.T) {
	origConfig := globalConfig
	defer func() { Configure(origConfig) }()
	Configure(PoolConfig{Enabled: true, MaxSize: 4096})

	s := GetScoredIDSlice()
	if len(s) != 0 {
		t.Errorf("GetScoredIDSlice len = %d, want 0", len(s))
	}
	s = append(s, ScoredID{ID: "a", Score: 1})
	PutScoredIDSlice(s)

	s2 := GetScoredIDSlice()
	if len(s2) != 0 {
		t.Errorf("GetScoredIDSlice len = %d, want 0", len(s2))
	}
}

func TestPutScoredIDSliceDropsOversized(t *testing.T) {
	origConfig := globalConfig
	defer func() { Configure(origConfig) }()
	Configure(PoolConfig{Enabled: true, MaxSize: 2})

	big := make([]ScoredID, 0, 100)
	// Should not panic; oversized slices are simply dropped.
	PutScoredIDSlice(big)
}

func TestDisabledPoolBypassesPool(t *testing.T) {
	origConfig := globalConfig
	defer func() { Configure(origConfig) }()
	Configure(PoolConfig{Enabled: false})

	s := GetScoredIDSlice()
	if cap(s) == 0 {
		t.Error("expected a freshly allocated slice with capacity even when disabled")
	}
	PutScoredIDSlice(s) // no-op, must not panic
}
