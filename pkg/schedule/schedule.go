package schedule

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"
)

const (
	TriggerCron  = "cron"
	TriggerDaily = "daily"
	TriggerOnce  = "once"
)

// Job is a reminder or recurring task. For cron and daily triggers Expr
// is a five-field cron expression; for one-shot jobs it is the RFC3339
// fire time. Channel names the delivery surface the job was created
// from and ChatID the room on that surface, so the reply returns to
// where the job originated.
type Job struct {
	ID        string
	Name      string
	Trigger   string
	Expr      string
	Prompt    string
	Channel   string
	ChatID    string
	Enabled   bool
	LastRun   string // YYYY-MM-DD of the last fire, empty if never
	CreatedAt time.Time
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

var dailyRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

var onceLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// Normalize turns a trigger expression into (trigger, stored expr).
// "HH:MM" becomes a daily cron, an absolute timestamp becomes a
// one-shot, and anything else must be valid five-field cron.
func Normalize(expr string) (string, string, error) {
	expr = strings.TrimSpace(expr)

	if m := dailyRe.FindStringSubmatch(expr); m != nil {
		hour, minute := atoi(m[1]), atoi(m[2])
		if hour > 23 || minute > 59 {
			return "", "", fmt.Errorf("invalid time of day %q", expr)
		}
		return TriggerDaily, fmt.Sprintf("%d %d * * *", minute, hour), nil
	}

	for _, layout := range onceLayouts {
		if at, err := time.ParseInLocation(layout, expr, time.Local); err == nil {
			return TriggerOnce, at.Format(time.RFC3339), nil
		}
	}

	if !gronx.New().IsValid(expr) {
		return "", "", fmt.Errorf("invalid schedule expression %q", expr)
	}
	return TriggerCron, expr, nil
}

func atoi(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}

// Add validates and stores a new job, returning it with its id set.
func (s *Store) Add(name, expr, prompt, channel, chatID string) (*Job, error) {
	trigger, stored, err := Normalize(expr)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("schedule prompt must not be empty")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "unnamed"
	}

	job := &Job{
		ID:        uuid.NewString(),
		Name:      name,
		Trigger:   trigger,
		Expr:      stored,
		Prompt:    strings.TrimSpace(prompt),
		Channel:   channel,
		ChatID:    chatID,
		Enabled:   true,
		CreatedAt: time.Now().UTC(),
	}

	_, err = s.db.Exec(`
		INSERT INTO schedules (id, name, trigger, expr, prompt, channel, chat_id, enabled, last_run, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, '', ?)`,
		job.ID, job.Name, job.Trigger, job.Expr, job.Prompt, job.Channel, job.ChatID,
		job.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert schedule: %w", err)
	}
	return job, nil
}

func (s *Store) List() ([]Job, error) {
	rows, err := s.db.Query(`
		SELECT id, name, trigger, expr, prompt, channel, chat_id, enabled, last_run, created_at
		FROM schedules ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		var j Job
		var enabled int
		var created string
		if err := rows.Scan(&j.ID, &j.Name, &j.Trigger, &j.Expr, &j.Prompt, &j.Channel, &j.ChatID, &enabled, &j.LastRun, &created); err != nil {
			return nil, err
		}
		j.Enabled = enabled != 0
		if t, err := time.Parse(time.RFC3339, created); err == nil {
			j.CreatedAt = t
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (s *Store) Delete(id string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete schedule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) SetEnabled(id string, enabled bool) (bool, error) {
	val := 0
	if enabled {
		val = 1
	}
	res, err := s.db.Exec(`UPDATE schedules SET enabled = ? WHERE id = ?`, val, id)
	if err != nil {
		return false, fmt.Errorf("update schedule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM schedules`); err != nil {
		return fmt.Errorf("clear schedules: %w", err)
	}
	return nil
}

// MarkRun records that the job fired on the given day. One-shot jobs
// are also disabled so they never fire again.
func (s *Store) MarkRun(job *Job, day time.Time) error {
	enabled := 1
	if job.Trigger == TriggerOnce {
		enabled = 0
	}
	_, err := s.db.Exec(`UPDATE schedules SET last_run = ?, enabled = ? WHERE id = ?`,
		day.Format("2006-01-02"), enabled, job.ID)
	if err != nil {
		return fmt.Errorf("mark schedule run: %w", err)
	}
	job.LastRun = day.Format("2006-01-02")
	job.Enabled = enabled != 0
	return nil
}

// IsDue reports whether the job should fire at now.
//
// Recurring jobs are due when their most recent cron match falls on
// today's date at or before now, and they have not already run today.
// Missed times earlier in the day still fire on the next tick;
// yesterday's misses do not. One-shot jobs are due once now has reached
// their fire time and they have never run.
func IsDue(job Job, now time.Time) bool {
	if !job.Enabled {
		return false
	}

	if job.Trigger == TriggerOnce {
		if job.LastRun != "" {
			return false
		}
		at, err := time.Parse(time.RFC3339, job.Expr)
		if err != nil {
			return false
		}
		return !now.Before(at)
	}

	if job.LastRun == now.Format("2006-01-02") {
		return false
	}

	prev, err := gronx.PrevTickBefore(job.Expr, now, true)
	if err != nil {
		return false
	}

	py, pm, pd := prev.Date()
	ny, nm, nd := now.Date()
	return py == ny && pm == nm && pd == nd
}

// Due returns every stored job that should fire at now.
func (s *Store) Due(now time.Time) ([]Job, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}

	var due []Job
	for _, j := range all {
		if IsDue(j, now) {
			due = append(due, j)
		}
	}
	return due, nil
}
