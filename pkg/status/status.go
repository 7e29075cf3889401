package status

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyunwoolee/bandi/pkg/facts"
	"github.com/hyunwoolee/bandi/pkg/history"
	"github.com/hyunwoolee/bandi/pkg/logger"
	"github.com/hyunwoolee/bandi/pkg/schedule"
	"github.com/hyunwoolee/bandi/pkg/skills"
)

// Writer regenerates data/status.md, a human-readable snapshot of all
// durable state. Refreshed after any directive mutates a store.
type Writer struct {
	path      string
	facts     *facts.Store
	schedules *schedule.Store
	history   *history.Store
	skills    *skills.Manager
}

func NewWriter(dataDir string, f *facts.Store, s *schedule.Store, h *history.Store, sk *skills.Manager) *Writer {
	return &Writer{
		path:      filepath.Join(dataDir, "status.md"),
		facts:     f,
		schedules: s,
		history:   h,
		skills:    sk,
	}
}

// Refresh rewrites the snapshot. Errors are logged, not returned; a
// stale snapshot must never fail the pipeline.
func (w *Writer) Refresh() {
	if err := w.refresh(); err != nil {
		logger.WarnCF("status", "snapshot refresh failed", map[string]interface{}{"error": err.Error()})
	}
}

func (w *Writer) refresh() error {
	var b strings.Builder

	now := time.Now().UTC().Format("2006-01-02 15:04 UTC")
	fmt.Fprintf(&b, "# Bandi Status\n\n_Auto-generated at %s. Do not edit, changes will be overwritten._\n\n", now)

	b.WriteString("## Memories\n\n")
	allFacts, err := w.facts.List()
	if err != nil {
		return err
	}
	wrote := false
	for _, f := range allFacts {
		if containsTag(f.Tags, facts.SystemTag) {
			continue
		}
		tagPart := ""
		if len(f.Tags) > 0 {
			tagPart = fmt.Sprintf(" `[%s]`", strings.Join(f.Tags, ","))
		}
		fmt.Fprintf(&b, "- **%s**: %s%s  _(updated %s)_\n", f.Key, f.Content, tagPart, f.UpdatedAt.Format("2006-01-02"))
		wrote = true
	}
	if !wrote {
		b.WriteString("_No memories stored._\n")
	}
	b.WriteString("\n")

	b.WriteString("## Scheduled Jobs\n\n")
	jobs, err := w.schedules.List()
	if err != nil {
		return err
	}
	if len(jobs) > 0 {
		b.WriteString("| Name | Type | Schedule | Channel | Chat | Prompt | Enabled | Last Run |\n")
		b.WriteString("|---|---|---|---|---|---|---|---|\n")
		for _, j := range jobs {
			enabled := "yes"
			if !j.Enabled {
				enabled = "no"
			}
			lastRun := j.LastRun
			if lastRun == "" {
				lastRun = "never"
			}
			fmt.Fprintf(&b, "| %s | %s | `%s` | %s | %s | %s | %s | %s |\n",
				j.Name, j.Trigger, j.Expr, j.Channel, j.ChatID, j.Prompt, enabled, lastRun)
		}
	} else {
		b.WriteString("_No scheduled jobs._\n")
	}
	b.WriteString("\n")

	b.WriteString("## Conversation History\n\n")
	stats, err := w.history.Stats()
	if err != nil {
		return err
	}
	if len(stats) > 0 {
		for _, st := range stats {
			fmt.Fprintf(&b, "- Channel %s: %d messages\n", st.Channel, st.Count)
		}
	} else {
		b.WriteString("_No conversation history._\n")
	}
	b.WriteString("\n")

	b.WriteString("## Skills\n\n")
	names := w.skills.List()
	if len(names) > 0 {
		for _, name := range names {
			fmt.Fprintf(&b, "- %s\n", name)
		}
	} else {
		b.WriteString("_No skills installed._\n")
	}

	if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
		return err
	}
	return os.WriteFile(w.path, []byte(b.String()), 0644)
}

func containsTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}
