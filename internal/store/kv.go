package store

import (
	"database/sql"
	"fmt"
	"time"
)

// MaxValueBytes is the per-key size ceiling of the storage table. Values
// larger than this must be split across keys by the caller (see MenuCacheStore).
const MaxValueBytes = 1 << 20

// KV is a string key/value store over the storage table. It underpins both
// persisted records (preferences and the chunked menu cache).
type KV struct {
	db *sql.DB
}

func NewKV(db *sql.DB) *KV {
	return &KV{db: db}
}

// Get returns the value for key. The second return is false when the key does
// not exist.
func (s *KV) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM storage WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

// Set writes value under key, replacing any previous value. Values above
// MaxValueBytes are rejected.
func (s *KV) Set(key, value string) error {
	if len(value) > MaxValueBytes {
		return fmt.Errorf("set %q: value is %d bytes, limit is %d", key, len(value), MaxValueBytes)
	}
	_, err := s.db.Exec(
		`INSERT INTO storage (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *KV) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM storage WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}
