package dailylog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyunwoolee/bandi/pkg/logger"
)

// Log keeps append-only narrative notes in per-day markdown files under
// dir, named YYYY-MM-DD.md. Recent days are injected into model context
// so the assistant has a story of what happened beyond chat history.
type Log struct {
	dir string
	now func() time.Time
}

func New(dir string) *Log {
	return &Log{dir: dir, now: time.Now}
}

func (l *Log) path(day time.Time) string {
	return filepath.Join(l.dir, day.Format("2006-01-02")+".md")
}

// Append writes a timestamped entry to today's file, creating it with a
// date heading on first write.
func (l *Log) Append(entry string) error {
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	today := l.now()
	path := l.path(today)

	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open daily log: %w", err)
	}
	defer f.Close()

	if isNew {
		if _, err := fmt.Fprintf(f, "# %s\n\n", today.Format("2006-01-02")); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(f, "- %s: %s\n", today.Format("15:04"), strings.TrimSpace(entry)); err != nil {
		return err
	}
	return nil
}

// Recent returns the last n days of log content joined for the model
// context, empty when no logs exist yet.
func (l *Log) Recent(days int) string {
	if days <= 0 {
		days = 2
	}

	today := l.now()
	var sections []string
	for i := days - 1; i >= 0; i-- {
		path := l.path(today.AddDate(0, 0, -i))
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				logger.WarnCF("dailylog", "failed to read log file", map[string]interface{}{
					"path":  path,
					"error": err.Error(),
				})
			}
			continue
		}
		if content := strings.TrimSpace(string(data)); content != "" {
			sections = append(sections, content)
		}
	}

	if len(sections) == 0 {
		return ""
	}
	return "## Daily Log\n\n" + strings.Join(sections, "\n\n---\n\n")
}
