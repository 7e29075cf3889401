package assistant

import (
	"github.com/hyunwoolee/bandi/pkg/dailylog"
	"github.com/hyunwoolee/bandi/pkg/directives"
	"github.com/hyunwoolee/bandi/pkg/facts"
	"github.com/hyunwoolee/bandi/pkg/logger"
	"github.com/hyunwoolee/bandi/pkg/notify"
	"github.com/hyunwoolee/bandi/pkg/schedule"
	"github.com/hyunwoolee/bandi/pkg/skills"
	"github.com/hyunwoolee/bandi/pkg/status"
)

// Executor applies parsed directives against the stores. Shared by the
// message pipeline and the heartbeat so both paths honor the same
// commands.
type Executor struct {
	facts     *facts.Store
	schedules *schedule.Store
	skills    *skills.Manager
	dailyLog  *dailylog.Log
	notifier  *notify.Notifier
	status    *status.Writer
}

func NewExecutor(f *facts.Store, s *schedule.Store, sk *skills.Manager, dl *dailylog.Log, n *notify.Notifier, st *status.Writer) *Executor {
	return &Executor{
		facts:     f,
		schedules: s,
		skills:    sk,
		dailyLog:  dl,
		notifier:  n,
		status:    st,
	}
}

// Apply executes every directive against the originating channel and
// chat, so schedules created here fire back on the same surface.
// Individual failures are logged and skipped so one bad directive
// cannot block the rest. The status snapshot refreshes when any store
// mutated.
func (e *Executor) Apply(cmds directives.Commands, channel, chatID string) {
	mutated := false

	for _, cmd := range cmds.MemorySaves {
		if err := e.facts.Upsert(cmd.Key, cmd.Value, cmd.Tags); err != nil {
			logger.WarnCF("assistant", "memory save failed", map[string]interface{}{"key": cmd.Key, "error": err.Error()})
			continue
		}
		logger.InfoCF("assistant", "memory saved", map[string]interface{}{"key": cmd.Key})
		mutated = true
	}

	for _, cmd := range cmds.MemoryDeletes {
		removed, err := e.facts.Delete(cmd.Key)
		if err != nil {
			logger.WarnCF("assistant", "memory delete failed", map[string]interface{}{"key": cmd.Key, "error": err.Error()})
			continue
		}
		if removed {
			logger.InfoCF("assistant", "memory deleted", map[string]interface{}{"key": cmd.Key})
			mutated = true
		}
	}

	for _, cmd := range cmds.Schedules {
		job, err := e.schedules.Add(cmd.Name, cmd.Expr, cmd.Prompt, channel, chatID)
		if err != nil {
			logger.WarnCF("assistant", "schedule create failed", map[string]interface{}{"name": cmd.Name, "error": err.Error()})
			continue
		}
		logger.InfoCF("assistant", "schedule created", map[string]interface{}{"name": job.Name, "trigger": job.Trigger})
		mutated = true
	}

	for _, cmd := range cmds.SkillCreates {
		if _, err := e.skills.Create(cmd.Name, cmd.Description, cmd.Body); err != nil {
			logger.WarnCF("assistant", "skill create failed", map[string]interface{}{"name": cmd.Name, "error": err.Error()})
			continue
		}
		mutated = true
	}

	for _, cmd := range cmds.DailyLogs {
		if err := e.dailyLog.Append(cmd.Text); err != nil {
			logger.WarnCF("assistant", "daily log append failed", map[string]interface{}{"error": err.Error()})
		}
	}

	for _, cmd := range cmds.Notifies {
		e.notifier.Send(cmd.Title, cmd.Message)
	}

	if mutated {
		e.status.Refresh()
	}
}
