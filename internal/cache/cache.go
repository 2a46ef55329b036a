// Package cache persists per-file evaluation results in SQLite so unchanged
// files skip parsing and evaluation between runs. Entries are keyed by file
// path, content hash and a fingerprint of the active rule set; any change to
// the file or the rules misses.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"cppstyle/internal/logging"
	"cppstyle/internal/report"
)

// Store is the SQLite-backed result cache.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// Open initializes the cache database at the given path, creating the
// directory and schema as needed.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logging.Cache("Open: cache at %s", path)
	return s, nil
}

// initialize creates the results table.
func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS results (
		path TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		violations TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (path, content_hash, fingerprint)
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create cache schema: %w", err)
	}
	return nil
}

// Get returns the cached violations for (path, hash, fingerprint), if any.
func (s *Store) Get(path, hash, fingerprint string) ([]report.Violation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	err := s.db.QueryRow(
		`SELECT violations FROM results WHERE path = ? AND content_hash = ? AND fingerprint = ?`,
		path, hash, fingerprint,
	).Scan(&raw)
	if err != nil {
		if err != sql.ErrNoRows {
			logging.Get(logging.CategoryCache).Warn("Get: query failed for %s: %v", path, err)
		}
		return nil, false
	}

	var vs []report.Violation
	if err := json.Unmarshal([]byte(raw), &vs); err != nil {
		logging.Get(logging.CategoryCache).Warn("Get: corrupt entry for %s: %v", path, err)
		return nil, false
	}
	return vs, true
}

// Put stores the violations for (path, hash, fingerprint), replacing stale
// entries for the same path.
func (s *Store) Put(path, hash, fingerprint string, vs []report.Violation) error {
	if vs == nil {
		vs = []report.Violation{}
	}
	raw, err := json.Marshal(vs)
	if err != nil {
		return fmt.Errorf("failed to encode violations: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// One entry per path: older hashes/fingerprints are dead weight.
	if _, err := s.db.Exec(`DELETE FROM results WHERE path = ?`, path); err != nil {
		return fmt.Errorf("failed to evict stale entries: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO results (path, content_hash, fingerprint, violations) VALUES (?, ?, ?, ?)`,
		path, hash, fingerprint, string(raw),
	)
	if err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}
	return nil
}

// Purge drops every cached entry.
func (s *Store) Purge() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM results`)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Fingerprint derives a stable digest of the active rule set. Rule ids are
// expected pre-sorted (Registry.IDs sorts them).
func Fingerprint(ruleIDs []string) string {
	sum := sha256.Sum256([]byte(strings.Join(ruleIDs, ";")))
	return hex.EncodeToString(sum[:8])
}
