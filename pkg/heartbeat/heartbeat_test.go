package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyunwoolee/bandi/pkg/assistant"
	"github.com/hyunwoolee/bandi/pkg/dailylog"
	"github.com/hyunwoolee/bandi/pkg/facts"
	"github.com/hyunwoolee/bandi/pkg/history"
	"github.com/hyunwoolee/bandi/pkg/llm"
	"github.com/hyunwoolee/bandi/pkg/notify"
	"github.com/hyunwoolee/bandi/pkg/schedule"
	"github.com/hyunwoolee/bandi/pkg/skills"
	"github.com/hyunwoolee/bandi/pkg/status"
	"github.com/hyunwoolee/bandi/pkg/store"
)

type scriptedModel struct {
	mu      sync.Mutex
	script  []interface{} // string replies or errors, consumed in order
	prompts []string      // final user turn of each call
}

func (m *scriptedModel) Complete(ctx context.Context, messages []llm.Message) (*llm.Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(messages) > 0 {
		m.prompts = append(m.prompts, messages[len(messages)-1].Content)
	}
	if len(m.script) == 0 {
		return &llm.Reply{Content: `{"action":"none"}`, FinishReason: "stop"}, nil
	}

	next := m.script[0]
	m.script = m.script[1:]
	switch v := next.(type) {
	case error:
		return nil, v
	case string:
		return &llm.Reply{Content: v, FinishReason: "stop"}, nil
	case chan string:
		// Blocks until the test releases the reply.
		return &llm.Reply{Content: <-v, FinishReason: "stop"}, nil
	}
	return nil, fmt.Errorf("bad script entry")
}

func (m *scriptedModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

type recordingTransport struct {
	mu          sync.Mutex
	sent        []string
	channels    []string
	failChannel string
}

func (t *recordingTransport) SendMessage(ctx context.Context, channel, chatID, content string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if channel == t.failChannel {
		return fmt.Errorf("unknown channel %q", channel)
	}
	t.sent = append(t.sent, chatID+": "+content)
	t.channels = append(t.channels, channel)
	return nil
}

func (t *recordingTransport) SetTyping(ctx context.Context, channel, chatID string)   {}
func (t *recordingTransport) ClearTyping(ctx context.Context, channel, chatID string) {}

func (t *recordingTransport) messages() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.sent...)
}

func (t *recordingTransport) channelsUsed() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.channels...)
}

type fixture struct {
	ctrl      *Controller
	model     *scriptedModel
	transport *recordingTransport
	facts     *facts.Store
	history   *history.Store
	schedules *schedule.Store
	cooldown  *llm.Cooldown
}

func newFixture(t *testing.T, enabled bool, maxHistory int) *fixture {
	t.Helper()
	workspace := t.TempDir()
	dataDir := filepath.Join(workspace, "data")

	st, err := store.Open(filepath.Join(dataDir, "bandi.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	f := facts.NewStore(st.DB())
	s := schedule.NewStore(st.DB())
	h := history.NewStore(st.DB(), maxHistory)
	sk := skills.NewManager(filepath.Join(dataDir, "skills"))
	dl := dailylog.New(filepath.Join(dataDir, "memory"))
	w := status.NewWriter(dataDir, f, s, h, sk)

	asm := assistant.NewAssembler(workspace, f, dl, s, sk)
	exec := assistant.NewExecutor(f, s, sk, dl, notify.New(false), w)

	model := &scriptedModel{}
	transport := &recordingTransport{}
	cd := llm.NewCooldown(10 * time.Minute)

	ctrl := NewController(Config{
		Enabled:     enabled,
		Interval:    time.Hour,
		HomeChannel: "1",
	}, asm, h, s, f, exec, model, transport, cd)

	return &fixture{
		ctrl:      ctrl,
		model:     model,
		transport: transport,
		facts:     f,
		history:   h,
		schedules: s,
		cooldown:  cd,
	}
}

func TestTickDisabledDoesNothing(t *testing.T) {
	fx := newFixture(t, false, 50)

	fx.ctrl.Tick(context.Background())
	if fx.model.calls() != 0 {
		t.Fatalf("disabled tick made model calls")
	}
}

func TestTickOutsideActiveHoursDoesNothing(t *testing.T) {
	fx := newFixture(t, true, 50)

	hours, err := ParseActiveHours("08:00-23:00")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	fx.ctrl.hours = hours
	fx.ctrl.now = func() time.Time { return time.Date(2026, 9, 1, 3, 0, 0, 0, time.Local) }

	fx.ctrl.Tick(context.Background())
	if fx.model.calls() != 0 {
		t.Fatalf("tick outside active hours made model calls")
	}
}

func TestTickProbeNone(t *testing.T) {
	fx := newFixture(t, true, 50)
	fx.model.script = []interface{}{`{"action":"none"}`}

	fx.ctrl.Tick(context.Background())
	if got := fx.transport.messages(); len(got) != 0 {
		t.Fatalf("none action sent messages: %v", got)
	}
}

func TestTickProbeSendsMessage(t *testing.T) {
	fx := newFixture(t, true, 50)
	fx.model.script = []interface{}{`{"action":"message","content":"Your package arrives today."}`}

	fx.ctrl.Tick(context.Background())

	got := fx.transport.messages()
	if len(got) != 1 || got[0] != "1: Your package arrives today." {
		t.Fatalf("unexpected sends: %v", got)
	}

	hist, err := fx.history.Recent("1", 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 1 || hist[0].Role != "assistant" {
		t.Fatalf("probe message not persisted: %+v", hist)
	}
}

func TestTickProbeUsesSentinelTurn(t *testing.T) {
	fx := newFixture(t, true, 50)
	fx.model.script = []interface{}{`{"action":"none"}`}

	fx.ctrl.Tick(context.Background())
	if len(fx.model.prompts) != 1 || fx.model.prompts[0] != "[HEARTBEAT_PROBE]" {
		t.Fatalf("unexpected probe turn: %v", fx.model.prompts)
	}
}

func TestTickSuppressesSentinelEcho(t *testing.T) {
	fx := newFixture(t, true, 50)
	fx.model.script = []interface{}{`{"action":"message","content":"What should you do right now?"}`}

	fx.ctrl.Tick(context.Background())
	if got := fx.transport.messages(); len(got) != 0 {
		t.Fatalf("sentinel echo reached the user: %v", got)
	}
}

func TestTickRunsDueJob(t *testing.T) {
	fx := newFixture(t, true, 50)

	if _, err := fx.schedules.Add("stretch", "00:00", "remind me to stretch", "messenger", "7"); err != nil {
		t.Fatalf("add job: %v", err)
	}
	fx.model.script = []interface{}{
		"Time to stretch!",       // job call
		`{"action":"none"}`,      // probe
	}

	fx.ctrl.Tick(context.Background())

	got := fx.transport.messages()
	if len(got) != 1 || got[0] != "7: Time to stretch!" {
		t.Fatalf("unexpected sends: %v", got)
	}

	due, err := fx.schedules.Due(time.Now())
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("job still due after run: %+v", due)
	}
}

func TestTickCooldownSkipsProbeButRunsJobs(t *testing.T) {
	fx := newFixture(t, true, 50)
	fx.cooldown.Trip(20 * time.Minute)

	if _, err := fx.schedules.Add("stretch", "00:00", "remind me to stretch", "messenger", "1"); err != nil {
		t.Fatalf("add job: %v", err)
	}
	fx.model.script = []interface{}{"Time to stretch!"}

	fx.ctrl.Tick(context.Background())

	got := fx.transport.messages()
	if len(got) != 2 {
		t.Fatalf("expected job reply plus cooldown notice, got %v", got)
	}
	if got[0] != "1: Time to stretch!" {
		t.Fatalf("job did not run under cooldown: %v", got)
	}
	if !strings.Contains(got[1], "paused") {
		t.Fatalf("missing cooldown notice: %v", got)
	}
	if fx.model.calls() != 1 {
		t.Fatalf("probe should be skipped under cooldown, got %d calls", fx.model.calls())
	}

	// Second tick within the same window: no repeated notice.
	fx.ctrl.Tick(context.Background())
	if got := fx.transport.messages(); len(got) != 2 {
		t.Fatalf("cooldown notice repeated: %v", got)
	}
}

func TestTickRunsJobOnItsOwnChannel(t *testing.T) {
	fx := newFixture(t, true, 50)

	if _, err := fx.schedules.Add("standup", "00:00", "remind about standup", "discord", "555"); err != nil {
		t.Fatalf("add job: %v", err)
	}
	fx.model.script = []interface{}{
		"Standup in five!",  // job call
		`{"action":"none"}`, // probe
	}

	fx.ctrl.Tick(context.Background())

	got := fx.transport.messages()
	if len(got) != 1 || got[0] != "555: Standup in five!" {
		t.Fatalf("unexpected sends: %v", got)
	}
	if chans := fx.transport.channelsUsed(); len(chans) != 1 || chans[0] != "discord" {
		t.Fatalf("job reply not routed through its own channel: %v", chans)
	}
}

func TestTickJobFallsBackHomeWhenChannelGone(t *testing.T) {
	fx := newFixture(t, true, 50)
	fx.transport.failChannel = "cli"

	if _, err := fx.schedules.Add("stretch", "00:00", "remind me to stretch", "cli", "cli"); err != nil {
		t.Fatalf("add job: %v", err)
	}
	fx.model.script = []interface{}{
		"Time to stretch!",  // job call
		`{"action":"none"}`, // probe
	}

	fx.ctrl.Tick(context.Background())

	got := fx.transport.messages()
	if len(got) != 1 || got[0] != "1: Time to stretch!" {
		t.Fatalf("job reply not redelivered home: %v", got)
	}
	if chans := fx.transport.channelsUsed(); len(chans) != 1 || chans[0] != "messenger" {
		t.Fatalf("fallback did not use the primary channel: %v", chans)
	}
}

func TestTickReturnsWhileTaskInFlight(t *testing.T) {
	fx := newFixture(t, true, 50)

	release := make(chan string)
	fx.model.script = []interface{}{
		`{"action":"task","content":"summarize inbox"}`, // probe
		release, // task call, held open by the test
	}

	done := make(chan struct{})
	go func() {
		fx.ctrl.Tick(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("tick did not return while the task was in flight")
	}

	release <- "inbox is empty"
	fx.ctrl.tasks.Wait()

	got := fx.transport.messages()
	if len(got) != 2 {
		t.Fatalf("expected start notice plus report, got %v", got)
	}
	if !strings.Contains(got[1], "Task complete") || !strings.Contains(got[1], "inbox is empty") {
		t.Fatalf("missing task report: %v", got)
	}
}

func TestTickCooldownNoticeFloorsAtOneMinute(t *testing.T) {
	fx := newFixture(t, true, 50)

	cd := llm.NewCooldown(time.Second)
	cd.Trip(0)
	fx.ctrl.cooldown = cd

	fx.ctrl.Tick(context.Background())

	got := fx.transport.messages()
	if len(got) != 1 || !strings.Contains(got[0], "~1 minute") {
		t.Fatalf("expected notice floored at one minute, got %v", got)
	}
}

func TestTickConnectivityFailureTripsCooldown(t *testing.T) {
	fx := newFixture(t, true, 50)
	fx.model.script = []interface{}{&llm.ConnectivityError{Err: errors.New("connection refused")}}

	fx.ctrl.Tick(context.Background())
	if !fx.cooldown.Active() {
		t.Fatalf("connectivity failure should trip the cooldown")
	}
}

func TestTickGenericProbeFailureDoesNotTripCooldown(t *testing.T) {
	fx := newFixture(t, true, 50)
	fx.model.script = []interface{}{errors.New("bad response shape")}

	fx.ctrl.Tick(context.Background())
	if fx.cooldown.Active() {
		t.Fatalf("application error should not trip the cooldown")
	}
}

func TestTickCompactionFlush(t *testing.T) {
	fx := newFixture(t, true, 10)

	for i := 0; i < 9; i++ {
		if err := fx.history.Append("1", "user", fmt.Sprintf("msg %d", i)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	fx.model.script = []interface{}{
		"[MEMORY_SAVE: key=wake_time, value=07:30, tags=routine]", // flush call
		`{"action":"none"}`, // probe
	}

	fx.ctrl.Tick(context.Background())

	fact, err := fx.facts.Get("wake_time")
	if err != nil || fact == nil {
		t.Fatalf("flush did not persist fact: %v %v", fact, err)
	}
	stamp, err := fx.facts.Get("_flush_1")
	if err != nil || stamp == nil {
		t.Fatalf("flush stamp missing: %v %v", stamp, err)
	}

	// A second tick inside the flush cooldown must not flush again:
	// only the probe call happens.
	before := fx.model.calls()
	fx.ctrl.Tick(context.Background())
	if fx.model.calls() != before+1 {
		t.Fatalf("flush repeated within cooldown window")
	}
}
