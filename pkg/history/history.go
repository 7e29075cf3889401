package history

import (
	"database/sql"
	"fmt"
	"sync"
	"time"
)

const DefaultMaxMessages = 50

type Message struct {
	Role      string
	Content   string
	CreatedAt time.Time
}

type ChannelStat struct {
	Channel string
	Count   int
}

// Store keeps a rolling window of conversation per channel. Appends on
// the same channel are serialized so the trim below the cap cannot race
// between the webhook goroutine and the heartbeat.
type Store struct {
	db  *sql.DB
	max int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStore(db *sql.DB, maxMessages int) *Store {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	return &Store{
		db:    db,
		max:   maxMessages,
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *Store) channelLock(channel string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[channel]
	if !ok {
		l = &sync.Mutex{}
		s.locks[channel] = l
	}
	return l
}

// Append records a message and evicts the oldest entries beyond the
// channel's cap.
func (s *Store) Append(channel, role, content string) error {
	l := s.channelLock(channel)
	l.Lock()
	defer l.Unlock()

	_, err := s.db.Exec(`INSERT INTO history (channel, role, content, created_at) VALUES (?, ?, ?, ?)`,
		channel, role, content, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}

	_, err = s.db.Exec(`
		DELETE FROM history WHERE channel = ? AND id NOT IN (
			SELECT id FROM history WHERE channel = ? ORDER BY id DESC LIMIT ?
		)`, channel, channel, s.max)
	if err != nil {
		return fmt.Errorf("trim history: %w", err)
	}
	return nil
}

// Recent returns up to n messages for the channel, oldest first.
func (s *Store) Recent(channel string, n int) ([]Message, error) {
	if n <= 0 || n > s.max {
		n = s.max
	}

	rows, err := s.db.Query(`
		SELECT role, content, created_at FROM (
			SELECT id, role, content, created_at FROM history
			WHERE channel = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, channel, n)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var created string
		if err := rows.Scan(&m.Role, &m.Content, &created); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339, created); err == nil {
			m.CreatedAt = t
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) Count(channel string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM history WHERE channel = ?`, channel).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return n, nil
}

// Stats returns per-channel message counts, ordered by channel id.
func (s *Store) Stats() ([]ChannelStat, error) {
	rows, err := s.db.Query(`SELECT channel, COUNT(*) FROM history GROUP BY channel ORDER BY channel`)
	if err != nil {
		return nil, fmt.Errorf("history stats: %w", err)
	}
	defer rows.Close()

	var out []ChannelStat
	for rows.Next() {
		var st ChannelStat
		if err := rows.Scan(&st.Channel, &st.Count); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) Clear(channel string) error {
	l := s.channelLock(channel)
	l.Lock()
	defer l.Unlock()

	_, err := s.db.Exec(`DELETE FROM history WHERE channel = ?`, channel)
	if err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func (s *Store) ClearAll() error {
	if _, err := s.db.Exec(`DELETE FROM history`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func (s *Store) MaxMessages() int {
	return s.max
}
