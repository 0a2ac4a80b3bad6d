// Package store implements the process-wide vector store: a map of
// libraries guarded by a global lock plus one lock per library, and a
// background snapshot writer that periodically serializes the whole
// store to disk.
//
// Lock discipline follows one rule: any operation touching the set of
// libraries (list, create, delete, snapshot) takes the global lock; any
// operation touching a single library's contents takes that library's
// own lock. Snapshotting takes the global write lock and then every
// per-library write lock in turn, so the serialized image is internally
// consistent.
package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orneryd/vecstore/pkg/chunk"
	"github.com/orneryd/vecstore/pkg/config"
	"github.com/orneryd/vecstore/pkg/filter"
	"github.com/orneryd/vecstore/pkg/index"
	"github.com/orneryd/vecstore/pkg/library"
	"github.com/orneryd/vecstore/pkg/rwlock"
	"github.com/orneryd/vecstore/pkg/vserr"
)

// LibraryInfo is the read-only projection of a library's identity,
// returned by list/get/create operations.
type LibraryInfo struct {
	ID        string
	Name      string
	Metadata  map[string]filter.Value
	IndexKind index.Kind
	CreatedAt time.Time
}

// ScoredChunk pairs a Chunk with its similarity score from a search.
type ScoredChunk struct {
	Chunk chunk.Chunk
	Score float64
}

// Store is the process-wide aggregate: libraries, their per-library
// locks, and the id->Chunk lookup table the search path consults to
// join index results back to full records.
type Store struct {
	cfg *config.Config

	global    rwlock.RWLock
	libraries map[string]*library.Library
	locks     map[string]*rwlock.RWLock
	lookups   map[string]map[string]chunk.Chunk

	stopSnapshot chan struct{}
	snapshotDone chan struct{}
}

// Open constructs a Store: attempts to load SnapshotPath (missing file
// starts empty; a corrupt file is logged and also starts empty — it
// never fails startup), then launches the background snapshot writer.
func Open(cfg *config.Config) (*Store, error) {
	s := &Store{
		cfg:       cfg,
		libraries: make(map[string]*library.Library),
		locks:     make(map[string]*rwlock.RWLock),
		lookups:   make(map[string]map[string]chunk.Chunk),
	}

	if err := s.loadSnapshot(); err != nil {
		log.Printf("store: snapshot load failed, starting empty: %v", err)
	}

	s.stopSnapshot = make(chan struct{})
	s.snapshotDone = make(chan struct{})
	go s.snapshotLoop()

	return s, nil
}

// Close stops the background snapshot writer. It does not write a final
// snapshot; callers that want a clean shutdown image should call
// SaveSnapshot explicitly before Close.
func (s *Store) Close() {
	close(s.stopSnapshot)
	<-s.snapshotDone
}

func (s *Store) snapshotLoop() {
	defer close(s.snapshotDone)
	ticker := time.NewTicker(s.cfg.SnapshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopSnapshot:
			return
		case <-ticker.C:
			if err := s.saveSnapshot(); err != nil {
				log.Printf("store: snapshot write failed: %v", err)
			}
		}
	}
}

var (
	singletonOnce  sync.Once
	singleton      *Store
	singletonError error
)

// InitOnce constructs the process-wide singleton Store on first call and
// returns the same instance on every subsequent call, regardless of cfg
// (only the first caller's cfg takes effect).
func InitOnce(cfg *config.Config) (*Store, error) {
	singletonOnce.Do(func() {
		singleton, singletonError = Open(cfg)
	})
	return singleton, singletonError
}

// Get returns the singleton Store if InitOnce has already run.
func Get() (*Store, bool) {
	return singleton, singleton != nil
}

// ListLibraries returns identity info for every library, ordered by id.
func (s *Store) ListLibraries() []LibraryInfo {
	s.global.RLock()
	defer s.global.RUnlock()

	out := make([]LibraryInfo, 0, len(s.libraries))
	for _, lib := range s.libraries {
		out = append(out, infoOf(lib))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CreateLibrary adds a new library with the given name, metadata, and
// index kind (KindBruteForce if idxKind is empty), returning its info.
func (s *Store) CreateLibrary(name string, metadata map[string]filter.Value, idxKind index.Kind) LibraryInfo {
	if idxKind == "" {
		idxKind = index.KindBruteForce
	}

	s.global.Lock()
	defer s.global.Unlock()

	lib := library.New(uuid.NewString(), name, metadata, s.cfg.EmbeddingDim, idxKind)
	s.libraries[lib.ID] = lib
	s.locks[lib.ID] = &rwlock.RWLock{}
	s.lookups[lib.ID] = map[string]chunk.Chunk{}
	return infoOf(lib)
}

// GetLibrary returns info for a single library, or vserr.ErrNotFound.
func (s *Store) GetLibrary(id string) (LibraryInfo, error) {
	s.global.RLock()
	defer s.global.RUnlock()

	lib, ok := s.libraries[id]
	if !ok {
		return LibraryInfo{}, fmt.Errorf("library %s: %w", id, vserr.ErrNotFound)
	}
	return infoOf(lib), nil
}

// Exists reports whether a library with the given id exists.
func (s *Store) Exists(id string) bool {
	s.global.RLock()
	defer s.global.RUnlock()
	_, ok := s.libraries[id]
	return ok
}

// DeleteLibrary removes a library, its lock, and its lookup table
// atomically, or returns vserr.ErrNotFound if it does not exist.
func (s *Store) DeleteLibrary(id string) error {
	s.global.Lock()
	defer s.global.Unlock()

	if _, ok := s.libraries[id]; !ok {
		return fmt.Errorf("library %s: %w", id, vserr.ErrNotFound)
	}
	delete(s.libraries, id)
	delete(s.locks, id)
	delete(s.lookups, id)
	return nil
}

// acquire returns the library and its lock under the global read lock.
// The caller then locks/unlocks the per-library lock independently of
// the global lock, matching §4.I's two-tier discipline.
func (s *Store) acquire(id string) (*library.Library, *rwlock.RWLock, error) {
	s.global.RLock()
	defer s.global.RUnlock()

	lib, ok := s.libraries[id]
	if !ok {
		return nil, nil, fmt.Errorf("library %s: %w", id, vserr.ErrNotFound)
	}
	return lib, s.locks[id], nil
}

// ListChunks returns every chunk in a library, in insertion order.
func (s *Store) ListChunks(libID string) ([]chunk.Chunk, error) {
	lib, lock, err := s.acquire(libID)
	if err != nil {
		return nil, err
	}
	lock.RLock()
	defer lock.RUnlock()
	return lib.GetAllChunks(), nil
}

// CountChunks returns the number of chunks in a library.
func (s *Store) CountChunks(libID string) (int, error) {
	lib, lock, err := s.acquire(libID)
	if err != nil {
		return 0, err
	}
	lock.RLock()
	defer lock.RUnlock()
	return lib.Count(), nil
}

// UpsertChunks upserts chunks into a library. If f is non-nil, only
// chunks whose metadata passes f are written; the rest are silently
// dropped. Returns the chunks actually written.
func (s *Store) UpsertChunks(libID string, chunks []chunk.Chunk, f filter.Filter) ([]chunk.Chunk, error) {
	lib, lock, err := s.acquire(libID)
	if err != nil {
		return nil, err
	}

	if f != nil {
		if err := f.Validate(); err != nil {
			return nil, err
		}
		filtered := chunks[:0:0]
		for _, c := range chunks {
			if filter.Passes(c.Metadata, f) {
				filtered = append(filtered, c)
			}
		}
		chunks = filtered
	}

	lock.Lock()
	defer lock.Unlock()

	written, err := lib.Upsert(chunks)
	if err != nil {
		return nil, err
	}
	s.refreshLookup(libID, lib)
	return written, nil
}

// DeleteChunks deletes chunks from a library. A nil f deletes every
// chunk; a non-nil f deletes only chunks whose metadata matches it.
func (s *Store) DeleteChunks(libID string, f filter.Filter) error {
	lib, lock, err := s.acquire(libID)
	if err != nil {
		return err
	}
	if f != nil {
		if err := f.Validate(); err != nil {
			return err
		}
	}

	lock.Lock()
	defer lock.Unlock()

	if f == nil {
		err = lib.Delete(nil)
	} else {
		err = lib.DeleteByFilter(f)
	}
	if err != nil {
		return err
	}
	s.refreshLookup(libID, lib)
	return nil
}

// Search runs a top-k query against a library's current index, joins the
// returned ids back to full Chunk records via the store's lookup table,
// and applies f (if non-nil) to the joined results — so fewer than k
// results may come back when a filter is present.
func (s *Store) Search(libID string, query []float32, k int, f filter.Filter) ([]ScoredChunk, error) {
	if len(query) != s.cfg.EmbeddingDim {
		return nil, fmt.Errorf("search: query length %d, want %d: %w", len(query), s.cfg.EmbeddingDim, vserr.ErrBadDimension)
	}
	if f != nil {
		if err := f.Validate(); err != nil {
			return nil, err
		}
	}

	lib, lock, err := s.acquire(libID)
	if err != nil {
		return nil, err
	}

	lock.RLock()
	defer lock.RUnlock()

	results, err := lib.Search(query, k)
	if err != nil {
		return nil, err
	}

	s.global.RLock()
	lookup := s.lookups[libID]
	s.global.RUnlock()
	if lookup == nil {
		return nil, fmt.Errorf("search: no lookup table for library %s: %w", libID, vserr.ErrNotBuilt)
	}

	out := make([]ScoredChunk, 0, len(results))
	for _, r := range results {
		c, ok := lookup[r.ID]
		if !ok {
			continue
		}
		if f != nil && !filter.Passes(c.Metadata, f) {
			continue
		}
		out = append(out, ScoredChunk{Chunk: c, Score: r.Score})
	}
	return out, nil
}

// refreshLookup rebuilds the id->Chunk lookup for libID from the
// library's current chunk list. Called with the library's write lock
// already held, inside the mutation's own critical section, so readers
// never observe the lookup out of sync with the chunk list.
func (s *Store) refreshLookup(libID string, lib *library.Library) {
	chunks := lib.GetAllChunks()
	lookup := make(map[string]chunk.Chunk, len(chunks))
	for _, c := range chunks {
		lookup[c.ID] = c
	}

	s.global.Lock()
	s.lookups[libID] = lookup
	s.global.Unlock()
}

func infoOf(lib *library.Library) LibraryInfo {
	return LibraryInfo{
		ID:        lib.ID,
		Name:      lib.Name,
		Metadata:  lib.Metadata,
		IndexKind: lib.IndexKind(),
		CreatedAt: lib.CreatedAt,
	}
}

// snapshotFile is the on-disk shape written by saveSnapshot and read by
// loadSnapshot: a flat list of libraries, each carrying its own chunks
// (the chunk_lookup table is never persisted directly — it is rebuilt
// from each library's chunk list on load).
type snapshotFile struct {
	Libraries []snapshotLibrary `json:"libraries"`
}

type snapshotLibrary struct {
	ID        string                  `json:"id"`
	Name      string                  `json:"name"`
	Metadata  map[string]filter.Value `json:"metadata"`
	IndexKind index.Kind              `json:"index_kind"`
	CreatedAt time.Time               `json:"created_at"`
	Chunks    []chunk.Chunk           `json:"chunks"`
}

// saveSnapshot takes the global write lock and every per-library write
// lock (in sorted id order, released in reverse), serializes the whole
// store, and atomically replaces SnapshotPath via temp-file + rename.
func (s *Store) saveSnapshot() error {
	s.global.Lock()
	defer s.global.Unlock()

	ids := make([]string, 0, len(s.libraries))
	for id := range s.libraries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		s.locks[id].Lock()
	}
	defer func() {
		for i := len(ids) - 1; i >= 0; i-- {
			s.locks[ids[i]].Unlock()
		}
	}()

	snap := snapshotFile{Libraries: make([]snapshotLibrary, 0, len(ids))}
	for _, id := range ids {
		lib := s.libraries[id]
		snap.Libraries = append(snap.Libraries, snapshotLibrary{
			ID:        lib.ID,
			Name:      lib.Name,
			Metadata:  lib.Metadata,
			IndexKind: lib.IndexKind(),
			CreatedAt: lib.CreatedAt,
			Chunks:    lib.GetAllChunks(),
		})
	}

	return writeSnapshotFile(s.cfg.SnapshotPath, snap)
}

// SaveSnapshot forces an out-of-cycle snapshot write, used by an
// explicit "snapshot now" request and by tests.
func (s *Store) SaveSnapshot() error {
	return s.saveSnapshot()
}

func writeSnapshotFile(path string, snap snapshotFile) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("store: creating snapshot directory: %w: %v", vserr.ErrIOError, err)
		}
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("store: creating snapshot file: %w: %v", vserr.ErrIOError, err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("store: encoding snapshot: %w: %v", vserr.ErrIOError, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("store: syncing snapshot: %w: %v", vserr.ErrIOError, err)
	}
	f.Close()

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("store: renaming snapshot: %w: %v", vserr.ErrIOError, err)
	}
	return nil
}

// loadSnapshot reads SnapshotPath and restores libraries from it. A
// missing file is not an error (the store starts empty); a corrupt file
// is reported to the caller, which logs it and also starts empty.
func (s *Store) loadSnapshot() error {
	f, err := os.Open(s.cfg.SnapshotPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("store: opening snapshot: %w: %v", vserr.ErrIOError, err)
	}
	defer f.Close()

	var snap snapshotFile
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return fmt.Errorf("store: decoding snapshot: %w: %v", vserr.ErrIOError, err)
	}

	restored := make([]*library.Library, 0, len(snap.Libraries))
	for _, sl := range snap.Libraries {
		lib, err := library.Restore(sl.ID, sl.Name, sl.Metadata, s.cfg.EmbeddingDim, sl.IndexKind, sl.CreatedAt, sl.Chunks)
		if err != nil {
			return fmt.Errorf("store: restoring library %s: %w", sl.ID, err)
		}
		restored = append(restored, lib)
	}
	for _, lib := range restored {
		s.libraries[lib.ID] = lib
		s.locks[lib.ID] = &rwlock.RWLock{}
		s.refreshLookup(lib.ID, lib)
	}
	return nil
}
