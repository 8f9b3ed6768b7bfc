package gallerypress

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Delivery is one local record of an outcome: an article published to the
// platform or a notification email accepted by the mail API. Only outcomes
// are recorded; image bytes and submission content are never stored.
type Delivery struct {
	ID         int64  `json:"id"`
	Kind       string `json:"kind"` // "article" or "email"
	ArticleID  int64  `json:"articleId,omitempty"`
	ArticleURL string `json:"articleUrl,omitempty"`
	Nickname   string `json:"nickname,omitempty"`
	CleanURL   string `json:"cleanUrl,omitempty"`
	LogoURL    string `json:"logoUrl,omitempty"`
	CreatedAt  string `json:"createdAt"`
}

// Store wraps a SQLite database holding the delivery log.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and creates the schema.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL for concurrent read/write, busy timeout so writers wait instead of
	// returning SQLITE_BUSY immediately.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS deliveries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    kind TEXT NOT NULL,
    article_id INTEGER NOT NULL DEFAULT 0,
    article_url TEXT NOT NULL DEFAULT '',
    nickname TEXT NOT NULL DEFAULT '',
    clean_url TEXT NOT NULL DEFAULT '',
    logo_url TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);
`)
	return err
}

// SaveDelivery appends one delivery record.
func (s *Store) SaveDelivery(d Delivery) error {
	if d.CreatedAt == "" {
		d.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := s.db.Exec(
		`INSERT INTO deliveries (kind, article_id, article_url, nickname, clean_url, logo_url, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.Kind, d.ArticleID, d.ArticleURL, d.Nickname, d.CleanURL, d.LogoURL, d.CreatedAt,
	)
	return err
}

// ListDeliveries returns the most recent records, newest first.
func (s *Store) ListDeliveries(limit int) ([]Delivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, kind, article_id, article_url, nickname, clean_url, logo_url, created_at FROM deliveries ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.ID, &d.Kind, &d.ArticleID, &d.ArticleURL, &d.Nickname, &d.CleanURL, &d.LogoURL, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
