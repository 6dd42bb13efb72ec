package store

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rbaird/canteen/internal/model"
)

func setupCacheStore(t *testing.T) (*MenuCacheStore, *KV) {
	t.Helper()
	kv := setupKV(t)
	return NewMenuCacheStore(kv, slog.Default()), kv
}

func testMenu(id, desc string) model.Menu {
	return model.Menu{
		ID:    id,
		Label: model.Label{En: "Lunch"},
		Groups: []model.MenuGroup{{
			ID:    id + "-g1",
			Label: model.Label{En: "Mains"},
			Items: []model.MenuItem{{
				ID:          id + "-i1",
				Label:       model.Label{En: "Classic Cheeseburger"},
				Description: model.Label{En: desc},
				Price:       model.Price{Amount: decimal.NewFromFloat(9.99)},
			}},
		}},
	}
}

// cacheOfSerializedSize builds a one-entry cache whose JSON encoding is
// exactly size bytes long, by padding the item description.
func cacheOfSerializedSize(t *testing.T, size int) model.MenuCache {
	t.Helper()
	base := model.MenuCache{"m1": {Menu: testMenu("m1", ""), Timestamp: 1700000000000}}
	data, err := json.Marshal(base)
	if err != nil {
		t.Fatalf("marshal base cache: %v", err)
	}
	pad := size - len(data)
	if pad < 0 {
		t.Fatalf("base cache already %d bytes, larger than requested %d", len(data), size)
	}
	return model.MenuCache{"m1": {Menu: testMenu("m1", strings.Repeat("a", pad)), Timestamp: 1700000000000}}
}

func loadMeta(t *testing.T, kv *KV) (cacheMeta, bool) {
	t.Helper()
	raw, ok, err := kv.Get(cacheMetaKey)
	if err != nil {
		t.Fatalf("get meta: %v", err)
	}
	if !ok {
		return cacheMeta{}, false
	}
	var meta cacheMeta
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		t.Fatalf("parse meta: %v", err)
	}
	return meta, true
}

func assertRoundTrip(t *testing.T, cs *MenuCacheStore, in model.MenuCache) {
	t.Helper()
	got := cs.Load()
	wantJSON, _ := json.Marshal(in)
	gotJSON, _ := json.Marshal(got)
	if !bytes.Equal(wantJSON, gotJSON) {
		t.Errorf("round trip mismatch: got %d bytes, want %d bytes", len(gotJSON), len(wantJSON))
	}
}

func TestCacheLoadEmpty(t *testing.T) {
	cs, _ := setupCacheStore(t)

	if got := cs.Load(); len(got) != 0 {
		t.Errorf("expected empty cache, got %d entries", len(got))
	}
}

func TestCacheRoundTripSingleChunk(t *testing.T) {
	cs, kv := setupCacheStore(t)

	in := model.MenuCache{"m1": {Menu: testMenu("m1", "with fries"), Timestamp: 1700000000000}}
	cs.Save(in)

	meta, ok := loadMeta(t, kv)
	if !ok {
		t.Fatal("metadata record missing after save")
	}
	if meta.ChunkCount != 1 {
		t.Errorf("chunk count = %d, want 1", meta.ChunkCount)
	}
	assertRoundTrip(t, cs, in)
}

func TestCacheChunkBoundary(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		wantChunks int
	}{
		{"just below", chunkSize - 1, 1},
		{"exactly at", chunkSize, 1},
		{"just above", chunkSize + 1, 2},
		{"two and a bit", 2*chunkSize + 100, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs, kv := setupCacheStore(t)

			in := cacheOfSerializedSize(t, tt.size)
			cs.Save(in)

			meta, ok := loadMeta(t, kv)
			if !ok {
				t.Fatal("metadata record missing after save")
			}
			if meta.ChunkCount != tt.wantChunks {
				t.Errorf("chunk count = %d, want %d", meta.ChunkCount, tt.wantChunks)
			}
			if meta.TotalSize != tt.size {
				t.Errorf("total size = %d, want %d", meta.TotalSize, tt.size)
			}
			assertRoundTrip(t, cs, in)

			// No slop past the last chunk
			if _, ok, _ := kv.Get(chunkKey(tt.wantChunks)); ok {
				t.Errorf("unexpected chunk slot %d", tt.wantChunks)
			}
		})
	}
}

func TestCacheRefusesOversizeCache(t *testing.T) {
	cs, kv := setupCacheStore(t)

	// Seed a valid cache so we can verify the refusal clears it.
	cs.Save(model.MenuCache{"m1": {Menu: testMenu("m1", "x"), Timestamp: 1}})

	in := cacheOfSerializedSize(t, maxChunkSlots*chunkSize+1)
	cs.Save(in)

	if _, ok := loadMeta(t, kv); ok {
		t.Error("metadata should be cleared when the save is refused")
	}
	for i := 0; i < maxChunkSlots; i++ {
		if _, ok, _ := kv.Get(chunkKey(i)); ok {
			t.Errorf("stale chunk slot %d left behind", i)
		}
	}
	if got := cs.Load(); len(got) != 0 {
		t.Errorf("expected empty cache after refused save, got %d entries", len(got))
	}
}

func TestCacheMissingChunkFailsOpen(t *testing.T) {
	cs, kv := setupCacheStore(t)

	cs.Save(cacheOfSerializedSize(t, chunkSize+100))
	if err := kv.Delete(chunkKey(1)); err != nil {
		t.Fatalf("delete chunk: %v", err)
	}

	if got := cs.Load(); len(got) != 0 {
		t.Errorf("expected empty cache when a chunk is missing, got %d entries", len(got))
	}
}

func TestCacheCorruptBlobFailsOpen(t *testing.T) {
	cs, kv := setupCacheStore(t)

	cs.Save(model.MenuCache{"m1": {Menu: testMenu("m1", "x"), Timestamp: 1}})
	if err := kv.Set(chunkKey(0), "{definitely not the blob"); err != nil {
		t.Fatalf("corrupt chunk: %v", err)
	}

	if got := cs.Load(); len(got) != 0 {
		t.Errorf("expected empty cache for corrupt blob, got %d entries", len(got))
	}
}

func TestCacheSaveEmptyClearsSlots(t *testing.T) {
	cs, kv := setupCacheStore(t)

	cs.Save(cacheOfSerializedSize(t, chunkSize+100))
	cs.Save(model.MenuCache{})

	if _, ok := loadMeta(t, kv); ok {
		t.Error("metadata should be gone after saving an empty cache")
	}
	if _, ok, _ := kv.Get(chunkKey(0)); ok {
		t.Error("chunk slots should be gone after saving an empty cache")
	}
}

func TestCacheMenuStampsCurrentTime(t *testing.T) {
	cs, _ := setupCacheStore(t)

	now := time.Date(2025, 6, 2, 12, 30, 0, 0, time.UTC)
	cs.now = func() time.Time { return now }

	cs.CacheMenu("m1", testMenu("m1", "fresh"))

	got := cs.Load()
	entry, ok := got["m1"]
	if !ok {
		t.Fatal("menu m1 not cached")
	}
	if entry.Timestamp != now.UnixMilli() {
		t.Errorf("timestamp = %d, want %d", entry.Timestamp, now.UnixMilli())
	}

	// Last write wins
	later := now.Add(time.Hour)
	cs.now = func() time.Time { return later }
	cs.CacheMenu("m1", testMenu("m1", "fresher"))

	if got := cs.Load()["m1"].Timestamp; got != later.UnixMilli() {
		t.Errorf("timestamp after rewrite = %d, want %d", got, later.UnixMilli())
	}
}

func TestCacheMenusBatchSharesTimestamp(t *testing.T) {
	cs, _ := setupCacheStore(t)

	now := time.Date(2025, 6, 2, 12, 30, 0, 0, time.UTC)
	cs.now = func() time.Time { return now }

	// Pre-existing entry from an earlier day survives the batch write.
	cs.CacheMenu("old", testMenu("old", "stale"))

	later := now.Add(24 * time.Hour)
	cs.now = func() time.Time { return later }
	cs.CacheMenus(map[string]model.Menu{
		"m1": testMenu("m1", ""),
		"m2": testMenu("m2", ""),
	})

	got := cs.Load()
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got["m1"].Timestamp != later.UnixMilli() || got["m2"].Timestamp != later.UnixMilli() {
		t.Error("batch entries should share the batch timestamp")
	}
	if got["old"].Timestamp != now.UnixMilli() {
		t.Errorf("pre-existing entry timestamp = %d, want %d", got["old"].Timestamp, now.UnixMilli())
	}
}
