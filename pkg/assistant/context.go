package assistant

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyunwoolee/bandi/pkg/dailylog"
	"github.com/hyunwoolee/bandi/pkg/facts"
	"github.com/hyunwoolee/bandi/pkg/history"
	"github.com/hyunwoolee/bandi/pkg/llm"
	"github.com/hyunwoolee/bandi/pkg/logger"
	"github.com/hyunwoolee/bandi/pkg/schedule"
	"github.com/hyunwoolee/bandi/pkg/skills"
	"github.com/hyunwoolee/bandi/pkg/sysinfo"
)

const fallbackSoul = "You are Bandi, a helpful personal AI assistant."

// Assembler composes the bounded context that accompanies every model
// call: persona, remembered facts, daily log narrative, schedule list,
// live status, and installed skills.
type Assembler struct {
	soulPath  string
	dataDir   string
	facts     *facts.Store
	dailyLog  *dailylog.Log
	schedules *schedule.Store
	skills    *skills.Manager
	now       func() time.Time
}

func NewAssembler(workspace string, f *facts.Store, dl *dailylog.Log, s *schedule.Store, sk *skills.Manager) *Assembler {
	return &Assembler{
		soulPath:  filepath.Join(workspace, "SOUL.md"),
		dataDir:   filepath.Join(workspace, "data"),
		facts:     f,
		dailyLog:  dl,
		schedules: s,
		skills:    sk,
		now:       time.Now,
	}
}

// Soul reads the persona file, substituting {BANDI_DATA_DIR} so the
// file stays portable across installations.
func (a *Assembler) Soul() string {
	data, err := os.ReadFile(a.soulPath)
	if err != nil {
		logger.WarnCF("assistant", "persona file not found", map[string]interface{}{"path": a.soulPath})
		return fallbackSoul
	}
	soul := strings.TrimSpace(string(data))
	return strings.ReplaceAll(soul, "{BANDI_DATA_DIR}", filepath.ToSlash(a.dataDir))
}

// MemoryContext renders remembered facts plus the recent daily log
// narrative.
func (a *Assembler) MemoryContext() string {
	var parts []string

	factsCtx, err := a.facts.FormatForPrompt()
	if err != nil {
		logger.WarnCF("assistant", "failed to load facts", map[string]interface{}{"error": err.Error()})
	} else if factsCtx != "" {
		parts = append(parts, "## Memory\n\n"+factsCtx)
	}

	if logs := a.dailyLog.Recent(2); logs != "" {
		parts = append(parts, logs)
	}

	return strings.Join(parts, "\n\n")
}

// LiveContext renders the current time, host status, and the schedule
// list.
func (a *Assembler) LiveContext() string {
	var b strings.Builder

	now := a.now()
	fmt.Fprintf(&b, "## Now\n- %s (%s)\n", now.Format("2006-01-02 15:04"), now.Weekday())

	b.WriteString("\n")
	b.WriteString(sysinfo.Collect().FormatForPrompt())

	jobs, err := a.schedules.List()
	if err != nil {
		logger.WarnCF("assistant", "failed to load schedules", map[string]interface{}{"error": err.Error()})
	} else if len(jobs) > 0 {
		b.WriteString("\n## Scheduled Jobs\n")
		for _, j := range jobs {
			state := ""
			if !j.Enabled {
				state = " (done)"
			}
			fmt.Fprintf(&b, "- %s: `%s` %s%s\n", j.Name, j.Expr, j.Prompt, state)
		}
	}

	return b.String()
}

// BuildMessages assembles the full message list for a model call:
// system (soul + memory + live context + skills), history, user turn.
// Skills are loaded fresh each call so self-created ones apply
// immediately.
func (a *Assembler) BuildMessages(hist []history.Message, userContent string) []llm.Message {
	systemParts := []string{a.Soul()}
	if mem := a.MemoryContext(); mem != "" {
		systemParts = append(systemParts, mem)
	}
	if live := a.LiveContext(); live != "" {
		systemParts = append(systemParts, live)
	}
	if sk := a.skills.LoadContext(); sk != "" {
		systemParts = append(systemParts, sk)
	}

	messages := []llm.Message{{Role: "system", Content: strings.Join(systemParts, "\n\n")}}
	for _, m := range hist {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: userContent})
	return messages
}
