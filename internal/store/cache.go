package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbaird/canteen/internal/model"
)

const (
	cacheMetaKey  = "menu-cache-meta"
	cacheChunkKey = "menu-cache-chunk-"
	chunkSize     = MaxValueBytes
	maxChunkSlots = 16
)

// cacheMeta is the reassembly record for the chunked cache blob. It is always
// written after the chunks it points at, so a reader never sees metadata
// referencing slots that do not exist yet.
type cacheMeta struct {
	ChunkCount int   `json:"chunkCount"`
	TotalSize  int   `json:"totalSize"`
	Timestamp  int64 `json:"timestamp"`
}

// MenuCacheStore persists the device-wide menu cache. The serialized cache can
// exceed the per-key ceiling of the storage table, so it is split into
// fixed-size chunk slots with a metadata record describing the split.
//
// Reads fail open: a missing or corrupt chunk yields an empty cache, never an
// error. Writes that cannot complete clear every slot rather than leaving a
// half-written blob behind.
type MenuCacheStore struct {
	mu     sync.Mutex
	kv     *KV
	logger *slog.Logger
	now    func() time.Time
}

func NewMenuCacheStore(kv *KV, logger *slog.Logger) *MenuCacheStore {
	return &MenuCacheStore{kv: kv, logger: logger, now: time.Now}
}

func chunkKey(i int) string {
	return fmt.Sprintf("%s%d", cacheChunkKey, i)
}

// Load reassembles and deserializes the cache. Any inconsistency yields an
// empty cache.
func (s *MenuCacheStore) Load() model.MenuCache {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *MenuCacheStore) load() model.MenuCache {
	empty := model.MenuCache{}

	rawMeta, ok, err := s.kv.Get(cacheMetaKey)
	if err != nil {
		s.logger.Error("load cache metadata", "error", err)
		return empty
	}
	if !ok {
		return empty
	}

	var meta cacheMeta
	if err := json.Unmarshal([]byte(rawMeta), &meta); err != nil {
		s.logger.Error("parse cache metadata", "error", err)
		return empty
	}
	if meta.ChunkCount == 0 {
		return empty
	}
	if meta.ChunkCount < 0 || meta.ChunkCount > maxChunkSlots {
		s.logger.Warn("cache metadata out of range", "chunk_count", meta.ChunkCount)
		return empty
	}

	var blob strings.Builder
	blob.Grow(meta.TotalSize)
	for i := 0; i < meta.ChunkCount; i++ {
		chunk, ok, err := s.kv.Get(chunkKey(i))
		if err != nil {
			s.logger.Error("load cache chunk", "chunk", i, "error", err)
			return empty
		}
		if !ok {
			s.logger.Warn("cache chunk missing, treating cache as empty", "chunk", i)
			return empty
		}
		blob.WriteString(chunk)
	}

	if blob.Len() != meta.TotalSize {
		s.logger.Warn("cache size mismatch, treating cache as empty",
			"want", meta.TotalSize, "got", blob.Len())
		return empty
	}

	cache := model.MenuCache{}
	if err := json.Unmarshal([]byte(blob.String()), &cache); err != nil {
		s.logger.Error("parse cache blob", "error", err)
		return empty
	}
	return cache
}

// Save serializes and persists the full cache, replacing whatever was stored.
// A cache too large for the slot ceiling is refused and the storage cleared;
// the app then simply runs without a persisted cache.
func (s *MenuCacheStore) Save(cache model.MenuCache) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.save(cache)
}

func (s *MenuCacheStore) save(cache model.MenuCache) {
	data, err := json.Marshal(cache)
	if err != nil {
		s.logger.Error("marshal cache", "error", err)
		return
	}

	// Old chunks go first so a failed write can never be read against stale
	// metadata.
	s.clear()

	if len(cache) == 0 {
		return
	}

	chunkCount := (len(data) + chunkSize - 1) / chunkSize
	if chunkCount > maxChunkSlots {
		s.logger.Warn("cache exceeds chunk ceiling, refusing to persist",
			"size", len(data), "chunks", chunkCount, "ceiling", maxChunkSlots)
		return
	}

	for i := 0; i < chunkCount; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > len(data) {
			end = len(data)
		}
		if err := s.kv.Set(chunkKey(i), string(data[start:end])); err != nil {
			s.logger.Error("write cache chunk", "chunk", i, "error", err)
			s.clear()
			return
		}
	}

	meta := cacheMeta{
		ChunkCount: chunkCount,
		TotalSize:  len(data),
		Timestamp:  s.now().UnixMilli(),
	}
	rawMeta, err := json.Marshal(meta)
	if err != nil {
		s.logger.Error("marshal cache metadata", "error", err)
		s.clear()
		return
	}
	if err := s.kv.Set(cacheMetaKey, string(rawMeta)); err != nil {
		s.logger.Error("write cache metadata", "error", err)
		s.clear()
	}
}

// clear removes the metadata record and every chunk slot up to the ceiling.
func (s *MenuCacheStore) clear() {
	if err := s.kv.Delete(cacheMetaKey); err != nil {
		s.logger.Error("clear cache metadata", "error", err)
	}
	for i := 0; i < maxChunkSlots; i++ {
		if err := s.kv.Delete(chunkKey(i)); err != nil {
			s.logger.Error("clear cache chunk", "chunk", i, "error", err)
		}
	}
}

// CacheMenu stores one freshly fetched menu with the current timestamp.
func (s *MenuCacheStore) CacheMenu(menuID string, menu model.Menu) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cache := s.load()
	cache[menuID] = model.CachedMenu{Menu: menu, Timestamp: s.now().UnixMilli()}
	s.save(cache)
}

// CacheMenus stores a batch of menus, all stamped with the same timestamp.
func (s *MenuCacheStore) CacheMenus(menus map[string]model.Menu) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cache := s.load()
	ts := s.now().UnixMilli()
	for id, menu := range menus {
		cache[id] = model.CachedMenu{Menu: menu, Timestamp: ts}
	}
	s.save(cache)
}
