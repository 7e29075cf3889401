package status

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyunwoolee/bandi/pkg/facts"
	"github.com/hyunwoolee/bandi/pkg/history"
	"github.com/hyunwoolee/bandi/pkg/schedule"
	"github.com/hyunwoolee/bandi/pkg/skills"
	"github.com/hyunwoolee/bandi/pkg/store"
)

func TestRefreshWritesSnapshot(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "bandi.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	f := facts.NewStore(st.DB())
	s := schedule.NewStore(st.DB())
	h := history.NewStore(st.DB(), 50)
	sk := skills.NewManager(filepath.Join(dir, "skills"))

	f.Upsert("favorite_color", "blue", []string{"preference"})
	f.Upsert("_flush_1", "ts", []string{facts.SystemTag})
	s.Add("standup", "0 9 * * 1", "remind about standup", "messenger", "1")
	h.Append("1", "user", "hello")
	sk.Create("greeting", "says hi", "Say hi.")

	w := NewWriter(dir, f, s, h, sk)
	w.Refresh()

	data, err := os.ReadFile(filepath.Join(dir, "status.md"))
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	got := string(data)

	for _, want := range []string{
		"# Bandi Status",
		"**favorite_color**: blue",
		"| standup | cron | `0 9 * * 1` |",
		"Channel 1: 1 messages",
		"- greeting",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("snapshot missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "_flush_1") {
		t.Fatalf("system fact leaked into snapshot:\n%s", got)
	}
}

func TestRefreshEmptyState(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "bandi.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	w := NewWriter(dir,
		facts.NewStore(st.DB()),
		schedule.NewStore(st.DB()),
		history.NewStore(st.DB(), 50),
		skills.NewManager(filepath.Join(dir, "skills")))
	w.Refresh()

	data, err := os.ReadFile(filepath.Join(dir, "status.md"))
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	got := string(data)
	for _, want := range []string{"_No memories stored._", "_No scheduled jobs._", "_No conversation history._", "_No skills installed._"} {
		if !strings.Contains(got, want) {
			t.Fatalf("snapshot missing %q:\n%s", want, got)
		}
	}
}
