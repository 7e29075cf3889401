package assistant

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyunwoolee/bandi/pkg/dailylog"
	"github.com/hyunwoolee/bandi/pkg/facts"
	"github.com/hyunwoolee/bandi/pkg/history"
	"github.com/hyunwoolee/bandi/pkg/schedule"
	"github.com/hyunwoolee/bandi/pkg/skills"
	"github.com/hyunwoolee/bandi/pkg/store"
)

func newAssemblerFixture(t *testing.T) (*Assembler, *facts.Store, string) {
	t.Helper()
	workspace := t.TempDir()
	dataDir := filepath.Join(workspace, "data")

	st, err := store.Open(filepath.Join(dataDir, "bandi.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	f := facts.NewStore(st.DB())
	asm := NewAssembler(workspace,
		f,
		dailylog.New(filepath.Join(dataDir, "memory")),
		schedule.NewStore(st.DB()),
		skills.NewManager(filepath.Join(dataDir, "skills")))
	return asm, f, workspace
}

func TestSoulFallsBackWhenMissing(t *testing.T) {
	asm, _, _ := newAssemblerFixture(t)
	if got := asm.Soul(); !strings.Contains(got, "Bandi") {
		t.Fatalf("unexpected fallback persona: %q", got)
	}
}

func TestSoulSubstitutesDataDir(t *testing.T) {
	asm, _, workspace := newAssemblerFixture(t)

	soul := "You are Bandi. Your data lives at {BANDI_DATA_DIR}."
	if err := os.WriteFile(filepath.Join(workspace, "SOUL.md"), []byte(soul), 0644); err != nil {
		t.Fatalf("write soul: %v", err)
	}

	got := asm.Soul()
	if strings.Contains(got, "{BANDI_DATA_DIR}") {
		t.Fatalf("placeholder not substituted: %q", got)
	}
	if !strings.Contains(got, "data") {
		t.Fatalf("data dir missing: %q", got)
	}
}

func TestBuildMessagesOrder(t *testing.T) {
	asm, f, _ := newAssemblerFixture(t)
	f.Upsert("favorite_color", "blue", nil)

	hist := []history.Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello!"},
	}
	messages := asm.BuildMessages(hist, "what's my favorite color?")

	if len(messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(messages))
	}
	if messages[0].Role != "system" || !strings.Contains(messages[0].Content, "favorite_color: blue") {
		t.Fatalf("system message missing memory: %q", messages[0].Content)
	}
	if messages[1].Content != "hi" || messages[2].Content != "hello!" {
		t.Fatalf("history out of order: %+v", messages)
	}
	if messages[3].Role != "user" || messages[3].Content != "what's my favorite color?" {
		t.Fatalf("unexpected final turn: %+v", messages[3])
	}
}
