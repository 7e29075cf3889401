package facts

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// SystemTag marks internal bookkeeping facts. They persist like any
// other fact but never appear in prompt context.
const SystemTag = "_system"

type Fact struct {
	Key       string
	Content   string
	Tags      []string
	UpdatedAt time.Time
}

// Store persists long-term memory. Keys are unique; saving an existing
// key replaces its content and tags.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Upsert(key, content string, tags []string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("fact key must not be empty")
	}

	_, err := s.db.Exec(`
		INSERT INTO facts (key, content, tags, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET content=excluded.content, tags=excluded.tags, updated_at=excluded.updated_at`,
		key, content, strings.Join(tags, ","), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert fact %q: %w", key, err)
	}
	return nil
}

// Delete removes a fact by key. Returns false when no such key existed.
func (s *Store) Delete(key string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM facts WHERE key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("delete fact %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM facts`); err != nil {
		return fmt.Errorf("clear facts: %w", err)
	}
	return nil
}

func (s *Store) Get(key string) (*Fact, error) {
	row := s.db.QueryRow(`SELECT key, content, tags, updated_at FROM facts WHERE key = ?`, key)
	f, err := scanFact(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get fact %q: %w", key, err)
	}
	return f, nil
}

func (s *Store) List() ([]Fact, error) {
	rows, err := s.db.Query(`SELECT key, content, tags, updated_at FROM facts ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}
	defer rows.Close()

	var out []Fact
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// FormatForPrompt renders remembered facts as a markdown list for the
// model context. System-tagged facts are skipped.
func (s *Store) FormatForPrompt() (string, error) {
	all, err := s.List()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, f := range all {
		if hasTag(f.Tags, SystemTag) {
			continue
		}
		b.WriteString("- ")
		b.WriteString(f.Key)
		b.WriteString(": ")
		b.WriteString(f.Content)
		if len(f.Tags) > 0 {
			b.WriteString(" (")
			b.WriteString(strings.Join(f.Tags, ", "))
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFact(r rowScanner) (*Fact, error) {
	var f Fact
	var tags, updated string
	if err := r.Scan(&f.Key, &f.Content, &tags, &updated); err != nil {
		return nil, err
	}
	if tags != "" {
		f.Tags = strings.Split(tags, ",")
	}
	if t, err := time.Parse(time.RFC3339, updated); err == nil {
		f.UpdatedAt = t
	}
	return &f, nil
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}
