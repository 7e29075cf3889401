package heartbeat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hyunwoolee/bandi/pkg/assistant"
	"github.com/hyunwoolee/bandi/pkg/directives"
	"github.com/hyunwoolee/bandi/pkg/facts"
	"github.com/hyunwoolee/bandi/pkg/history"
	"github.com/hyunwoolee/bandi/pkg/llm"
	"github.com/hyunwoolee/bandi/pkg/logger"
	"github.com/hyunwoolee/bandi/pkg/schedule"
)

// probeSentinel is the user turn for the autonomous decision call. It
// is deliberately non-conversational so the model cannot mistake it
// for something the user typed; legacySentinel is the older phrasing,
// still matched for echo suppression.
const (
	probeSentinel  = "[HEARTBEAT_PROBE]"
	legacySentinel = "What should you do right now?"
)

const (
	// Compaction: when a channel's history reaches this fraction of
	// its cap, ask the model to persist important facts before older
	// entries are evicted, at most once per flushCooldown.
	flushThreshold = 0.8
	flushCooldown  = 6 * time.Hour
)

const probeSystemPrompt = `You are Bandi running an autonomous background tick. It is now %s.

Below is everything you know about the user and recent conversation context.
Decide if there is anything genuinely useful to do proactively RIGHT NOW.

Respond ONLY with a single JSON object, no prose before or after:
  {"action": "none"}
  {"action": "message", "content": "<message to send>"}
  {"action": "task", "content": "<description of task to run>"}
  {"action": "schedule", "name": "<job name>", "schedule": "<cron or HH:MM or ISO time>", "prompt": "<what to do>"}

Be conservative. Only act when there is genuine value. Prefer "none".`

const taskSystemPrompt = `You are Bandi executing a background task. Complete the following task and return a concise summary of the result.

Task: %s`

const flushPrompt = `The conversation history for this channel is nearly full and older messages will soon be evicted. Review the recent conversation and save any important durable facts you have not yet saved, using [MEMORY_SAVE: key=..., value=..., tags=...] directives. Reply with directives only.`

// Controller runs the periodic autonomous loop: active-hours gate, due
// jobs, compaction flush, and the proactive decision probe. Cooldown
// state is injected so the loop stays testable.
type Controller struct {
	enabled     bool
	hours       ActiveHours
	interval    time.Duration
	homeChannel string

	assembler *assistant.Assembler
	history   *history.Store
	schedules *schedule.Store
	facts     *facts.Store
	executor  *assistant.Executor
	model     llm.Completer
	transport assistant.Transport
	cooldown  *llm.Cooldown

	// tasks tracks in-flight background tasks so shutdown can wait for
	// their completion reports.
	tasks sync.WaitGroup

	now func() time.Time
}

type Config struct {
	Enabled     bool
	Hours       ActiveHours
	Interval    time.Duration
	HomeChannel string
}

func NewController(cfg Config, asm *assistant.Assembler, h *history.Store, s *schedule.Store, f *facts.Store, e *assistant.Executor, model llm.Completer, t assistant.Transport, cd *llm.Cooldown) *Controller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	return &Controller{
		enabled:     cfg.Enabled,
		hours:       cfg.Hours,
		interval:    interval,
		homeChannel: cfg.HomeChannel,
		assembler:   asm,
		history:     h,
		schedules:   s,
		facts:       f,
		executor:    e,
		model:       model,
		transport:   t,
		cooldown:    cd,
		now:         time.Now,
	}
}

// Run ticks on the configured interval until the context ends, then
// waits for any background tasks still in flight.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Tick(ctx)
		case <-ctx.Done():
			c.tasks.Wait()
			return
		}
	}
}

// Tick executes one heartbeat pass. Due jobs run even under cooldown;
// the compaction flush and the decision probe are skipped while a
// cooldown window is active.
func (c *Controller) Tick(ctx context.Context) {
	if !c.enabled {
		return
	}

	now := c.now()
	if !c.hours.Contains(now) {
		logger.DebugC("heartbeat", "outside active hours, skipping tick")
		return
	}

	logger.InfoCF("heartbeat", "tick", map[string]interface{}{"at": now.Format("2006-01-02 15:04")})

	c.runDueJobs(ctx, now)

	if c.cooldown.Active() {
		if remaining, notify := c.cooldown.ShouldNotify(); notify {
			minutes := int(remaining.Round(time.Minute) / time.Minute)
			if minutes < 1 {
				minutes = 1
			}
			notice := fmt.Sprintf("⚠️ Autonomous reasoning paused for ~%d minutes: the model server is unreachable.", minutes)
			c.send(ctx, primaryChannel, c.homeChannel, notice, false)
		}
		return
	}

	c.runCompactionFlush(ctx, now)
	c.runProbe(ctx, now)
}

// runDueJobs executes every due job. A connectivity failure trips the
// cooldown but never aborts the remaining jobs.
func (c *Controller) runDueJobs(ctx context.Context, now time.Time) {
	due, err := c.schedules.Due(now)
	if err != nil {
		logger.ErrorCF("heartbeat", "due job scan failed", map[string]interface{}{"error": err.Error()})
		return
	}

	for i := range due {
		job := &due[i]
		channel := job.Channel
		if channel == "" {
			channel = primaryChannel
		}
		chatID := job.ChatID
		if chatID == "" {
			chatID = c.homeChannel
		}

		logger.InfoCF("heartbeat", "running scheduled job", map[string]interface{}{"name": job.Name, "channel": channel})

		hist, err := c.history.Recent(chatID, 10)
		if err != nil {
			logger.ErrorCF("heartbeat", "job history load failed", map[string]interface{}{"name": job.Name, "error": err.Error()})
			continue
		}

		prompt := fmt.Sprintf("[Scheduled job %q is due] %s", job.Name, job.Prompt)
		reply, err := c.model.Complete(ctx, c.assembler.BuildMessages(hist, prompt))
		if err != nil {
			if llm.IsConnectivity(err) {
				c.cooldown.Trip(0)
			}
			logger.ErrorCF("heartbeat", "scheduled job failed", map[string]interface{}{"name": job.Name, "error": err.Error()})
			continue
		}

		cmds := directives.Parse(reply.Content)
		c.executor.Apply(cmds, channel, chatID)

		visible := directives.Strip(reply.Content)
		if visible != "" {
			err := c.send(ctx, channel, chatID, visible, true)
			if err != nil && channel != primaryChannel {
				// The job's channel is gone (not configured anymore, or
				// an ephemeral CLI session). Deliver home instead.
				c.send(ctx, primaryChannel, c.homeChannel, visible, true)
			}
		}

		if err := c.schedules.MarkRun(job, now); err != nil {
			logger.ErrorCF("heartbeat", "mark run failed", map[string]interface{}{"name": job.Name, "error": err.Error()})
		}
	}
}

// runCompactionFlush asks the model to persist important facts for any
// channel whose history is close to eviction, rate-limited per channel
// by a system-tagged flush timestamp fact.
func (c *Controller) runCompactionFlush(ctx context.Context, now time.Time) {
	stats, err := c.history.Stats()
	if err != nil {
		logger.ErrorCF("heartbeat", "history stats failed", map[string]interface{}{"error": err.Error()})
		return
	}

	threshold := int(float64(c.history.MaxMessages()) * flushThreshold)
	for _, st := range stats {
		if st.Count < threshold {
			continue
		}
		if !c.flushAllowed(st.Channel, now) {
			continue
		}

		logger.InfoCF("heartbeat", "compaction flush", map[string]interface{}{"channel": st.Channel, "count": st.Count})

		hist, err := c.history.Recent(st.Channel, 0)
		if err != nil {
			logger.ErrorCF("heartbeat", "flush history load failed", map[string]interface{}{"error": err.Error()})
			continue
		}

		reply, err := c.model.Complete(ctx, c.assembler.BuildMessages(hist, flushPrompt))
		if err != nil {
			if llm.IsConnectivity(err) {
				c.cooldown.Trip(0)
			}
			logger.ErrorCF("heartbeat", "compaction flush failed", map[string]interface{}{"channel": st.Channel, "error": err.Error()})
			continue
		}

		c.executor.Apply(directives.Parse(reply.Content), primaryChannel, st.Channel)
		c.recordFlush(st.Channel, now)
	}
}

func flushKey(channel string) string {
	return "_flush_" + channel
}

func (c *Controller) flushAllowed(channel string, now time.Time) bool {
	fact, err := c.facts.Get(flushKey(channel))
	if err != nil || fact == nil {
		return true
	}
	last, err := time.Parse(time.RFC3339, fact.Content)
	if err != nil {
		return true
	}
	return now.Sub(last) >= flushCooldown
}

func (c *Controller) recordFlush(channel string, now time.Time) {
	err := c.facts.Upsert(flushKey(channel), now.UTC().Format(time.RFC3339), []string{facts.SystemTag})
	if err != nil {
		logger.WarnCF("heartbeat", "flush stamp write failed", map[string]interface{}{"error": err.Error()})
	}
}

// runProbe issues the autonomous decision call and dispatches the
// resulting action.
func (c *Controller) runProbe(ctx context.Context, now time.Time) {
	hist, err := c.history.Recent(c.homeChannel, 10)
	if err != nil {
		logger.ErrorCF("heartbeat", "probe history load failed", map[string]interface{}{"error": err.Error()})
		return
	}

	system := fmt.Sprintf(probeSystemPrompt, now.UTC().Format("2006-01-02 15:04 UTC"))
	messages := []llm.Message{{Role: "system", Content: system + "\n\n" + c.assembler.MemoryContext()}}
	for _, m := range hist {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: probeSentinel})

	reply, err := c.model.Complete(ctx, messages)
	if err != nil {
		if llm.IsConnectivity(err) {
			c.cooldown.Trip(0)
		}
		logger.ErrorCF("heartbeat", "probe failed", map[string]interface{}{"error": err.Error()})
		return
	}

	action := ParseAction(reply.Content)
	switch action.Kind {
	case ActionNone:
		logger.DebugC("heartbeat", "probe decided no action")

	case ActionMessage:
		if isSentinelEcho(action.Content) {
			logger.WarnC("heartbeat", "suppressed sentinel echo in probe reply")
			return
		}
		c.send(ctx, primaryChannel, c.homeChannel, action.Content, true)

	case ActionTask:
		// Tasks run detached so a slow model call never holds up the
		// tick. The result report still arrives when the task ends.
		c.tasks.Add(1)
		go func() {
			defer c.tasks.Done()
			c.runBackgroundTask(ctx, action.Content)
		}()

	case ActionSchedule:
		job, err := c.schedules.Add(action.Name, action.Expr, action.Prompt, primaryChannel, c.homeChannel)
		if err != nil {
			logger.WarnCF("heartbeat", "probe schedule rejected", map[string]interface{}{"error": err.Error()})
			return
		}
		logger.InfoCF("heartbeat", "probe created schedule", map[string]interface{}{"name": job.Name})
	}
}

func (c *Controller) runBackgroundTask(ctx context.Context, task string) {
	logger.InfoCF("heartbeat", "running background task", map[string]interface{}{"task": task})
	c.send(ctx, primaryChannel, c.homeChannel, "🔄 Starting background task: "+task, true)

	messages := []llm.Message{
		{Role: "system", Content: fmt.Sprintf(taskSystemPrompt, task)},
		{Role: "user", Content: task},
	}
	reply, err := c.model.Complete(ctx, messages)

	var report string
	if err != nil {
		if llm.IsConnectivity(err) {
			c.cooldown.Trip(0)
		}
		report = fmt.Sprintf("❌ Task failed: %s\n\n%s", task, err.Error())
	} else {
		report = fmt.Sprintf("✅ Task complete: %s\n\n%s", task, directives.Strip(reply.Content))
	}
	c.send(ctx, primaryChannel, c.homeChannel, report, true)
}

// isSentinelEcho reports whether the model echoed a probe sentinel
// back as its visible message, compared case- and whitespace-
// insensitively against both the current and the legacy phrasing.
func isSentinelEcho(content string) bool {
	norm := normalizeSentinel(content)
	return norm == normalizeSentinel(probeSentinel) || norm == normalizeSentinel(legacySentinel)
}

func normalizeSentinel(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Unprompted output (probe messages, task reports, cooldown notices)
// goes to the home chat on the primary channel. Scheduled jobs carry
// their own channel and chat instead.
const primaryChannel = "messenger"

func (c *Controller) send(ctx context.Context, channel, chatID, content string, persist bool) error {
	if err := c.transport.SendMessage(ctx, channel, chatID, content); err != nil {
		logger.ErrorCF("heartbeat", "send failed", map[string]interface{}{"channel": channel, "chat": chatID, "error": err.Error()})
		return err
	}
	if persist {
		if err := c.history.Append(chatID, "assistant", content); err != nil {
			logger.WarnCF("heartbeat", "history append failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return nil
}
