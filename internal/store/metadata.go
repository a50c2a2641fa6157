package store

import (
	"database/sql"
	"time"
)

// SetMetadata upserts a key-value pair in the platform_metadata table.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO platform_metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM platform_metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// MarkImported records a content file's hash so repeat imports are skipped.
func (s *Store) MarkImported(sha256, filename string) error {
	_, err := s.db.Exec(
		`INSERT INTO imported_files (sha256, filename, imported_at) VALUES (?, ?, ?)
		 ON CONFLICT(sha256) DO NOTHING`,
		sha256, filename, time.Now(),
	)
	return err
}

// IsImported reports whether a content file with this hash was already
// imported.
func (s *Store) IsImported(sha256 string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM imported_files WHERE sha256 = ?`, sha256).Scan(&n)
	return n > 0, err
}
