package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/vecstore/pkg/config"
	"github.com/orneryd/vecstore/pkg/store"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		SnapshotPath:     filepath.Join(t.TempDir(), "snapshot.json"),
		SnapshotInterval: time.Hour,
		EmbeddingDim:     3,
	}
	st, err := store.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(st.Close)

	s, err := New(st, nil)
	require.NoError(t, err)
	return s
}

func do(s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.buildRouter().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestCreateAndGetLibrary(t *testing.T) {
	s := testServer(t)

	rec := do(s, http.MethodPost, "/libraries", map[string]interface{}{"name": "docs"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]interface{}
	decode(t, rec, &created)
	id, _ := created["ID"].(string)
	require.NotEmpty(t, id)

	rec = do(s, http.MethodGet, "/libraries/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateLibraryMissingNameIs422(t *testing.T) {
	s := testServer(t)
	rec := do(s, http.MethodPost, "/libraries", map[string]interface{}{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGetUnknownLibraryIs404(t *testing.T) {
	s := testServer(t)
	rec := do(s, http.MethodGet, "/libraries/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpsertAndSearch(t *testing.T) {
	s := testServer(t)

	rec := do(s, http.MethodPost, "/libraries", map[string]interface{}{"name": "docs"})
	var info map[string]interface{}
	decode(t, rec, &info)
	id := info["ID"].(string)

	rec = do(s, http.MethodPost, "/libraries/"+id+"/chunks", map[string]interface{}{
		"chunks": []map[string]interface{}{
			{"id": "a", "embedding": []float32{1, 0, 0}},
			{"id": "b", "embedding": []float32{0, 1, 0}},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(s, http.MethodGet, "/libraries/"+id+"/chunks/count", nil)
	var count map[string]int
	decode(t, rec, &count)
	assert.Equal(t, 2, count["count"])

	rec = do(s, http.MethodPost, "/libraries/"+id+"/search?k=1", map[string]interface{}{
		"query": []float32{1, 0, 0},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var results []map[string]interface{}
	decode(t, rec, &results)
	require.Len(t, results, 1)
}

func TestSearchWrongDimensionIs400(t *testing.T) {
	s := testServer(t)
	rec := do(s, http.MethodPost, "/libraries", map[string]interface{}{"name": "docs"})
	var info map[string]interface{}
	decode(t, rec, &info)
	id := info["ID"].(string)

	rec = do(s, http.MethodPost, "/libraries/"+id+"/search", map[string]interface{}{
		"query": []float32{1, 2},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteLibrary(t *testing.T) {
	s := testServer(t)
	rec := do(s, http.MethodPost, "/libraries", map[string]interface{}{"name": "docs"})
	var info map[string]interface{}
	decode(t, rec, &info)
	id := info["ID"].(string)

	rec = do(s, http.MethodDelete, "/libraries/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(s, http.MethodGet, "/libraries/"+id+"/exists", nil)
	var exists map[string]bool
	decode(t, rec, &exists)
	assert.False(t, exists["exists"])
}
