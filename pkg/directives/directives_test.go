package directives

import (
	"strings"
	"testing"
)

func TestParseMemorySave(t *testing.T) {
	text := "Got it! [MEMORY_SAVE: key=favorite_color, value=blue, tags=preference, personal]"

	c := Parse(text)
	if len(c.MemorySaves) != 1 {
		t.Fatalf("expected 1 memory save, got %d", len(c.MemorySaves))
	}
	got := c.MemorySaves[0]
	if got.Key != "favorite_color" || got.Value != "blue" {
		t.Fatalf("unexpected save: %+v", got)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "preference" || got.Tags[1] != "personal" {
		t.Fatalf("unexpected tags: %v", got.Tags)
	}
}

func TestParseMemorySaveWithoutTags(t *testing.T) {
	c := Parse("[MEMORY_SAVE: key=birthday, value=March 3]")
	if len(c.MemorySaves) != 1 {
		t.Fatalf("expected 1 memory save, got %d", len(c.MemorySaves))
	}
	if c.MemorySaves[0].Value != "March 3" || c.MemorySaves[0].Tags != nil {
		t.Fatalf("unexpected save: %+v", c.MemorySaves[0])
	}
}

func TestParseMemoryDelete(t *testing.T) {
	c := Parse("Done. [MEMORY_DELETE: key=old_job]")
	if len(c.MemoryDeletes) != 1 || c.MemoryDeletes[0].Key != "old_job" {
		t.Fatalf("unexpected deletes: %+v", c.MemoryDeletes)
	}
}

func TestParseScheduleCronAndAt(t *testing.T) {
	text := "Sure. [SCHEDULE: name=standup, cron=0 9 * * 1, prompt=remind about standup]\n" +
		"[SCHEDULE: name=dentist, at=2026-09-15 18:00, prompt=dentist appointment]"

	c := Parse(text)
	if len(c.Schedules) != 2 {
		t.Fatalf("expected 2 schedules, got %d", len(c.Schedules))
	}
	if c.Schedules[0].Expr != "0 9 * * 1" || c.Schedules[0].Prompt != "remind about standup" {
		t.Fatalf("unexpected cron schedule: %+v", c.Schedules[0])
	}
	if c.Schedules[1].Expr != "2026-09-15 18:00" {
		t.Fatalf("unexpected at schedule: %+v", c.Schedules[1])
	}
}

func TestParseSkillCreateBlock(t *testing.T) {
	text := "I made a skill.\n[SKILL_CREATE: name=greeting, description=morning greeting]\n" +
		"Say good morning.\nMention the weather.\n[/SKILL_CREATE]\nDone!"

	c := Parse(text)
	if len(c.SkillCreates) != 1 {
		t.Fatalf("expected 1 skill, got %d", len(c.SkillCreates))
	}
	sk := c.SkillCreates[0]
	if sk.Name != "greeting" || sk.Description != "morning greeting" {
		t.Fatalf("unexpected skill: %+v", sk)
	}
	if !strings.Contains(sk.Body, "Mention the weather.") {
		t.Fatalf("body lost content: %q", sk.Body)
	}
}

func TestParseDailyLogAndNotify(t *testing.T) {
	text := "[DAILY_LOG: went for a run at 7am]\n[NOTIFY: title=Reminder, message=Stand up and stretch]"

	c := Parse(text)
	if len(c.DailyLogs) != 1 || c.DailyLogs[0].Text != "went for a run at 7am" {
		t.Fatalf("unexpected daily logs: %+v", c.DailyLogs)
	}
	if len(c.Notifies) != 1 || c.Notifies[0].Title != "Reminder" {
		t.Fatalf("unexpected notifies: %+v", c.Notifies)
	}
}

func TestParseSkipsMalformed(t *testing.T) {
	text := "[MEMORY_SAVE: value=no key here] [MEMORY_DELETE: key=] [SCHEDULE: name=x, prompt=] plain text"

	c := Parse(text)
	if !c.Empty() {
		t.Fatalf("expected no directives, got %+v", c)
	}
}

func TestStripRemovesAllKinds(t *testing.T) {
	text := "Hello!\n" +
		"[MEMORY_SAVE: key=a, value=b]\n" +
		"[MEMORY_DELETE: key=c]\n" +
		"[SCHEDULE: name=s, cron=0 9 * * *, prompt=p]\n" +
		"[SKILL_CREATE: name=n, description=d]\nbody line\n[/SKILL_CREATE]\n" +
		"[DAILY_LOG: note]\n" +
		"[NOTIFY: title=t, message=m]\n" +
		"Bye."

	got := Strip(text)
	if strings.Contains(got, "[") || strings.Contains(got, "]") {
		t.Fatalf("directive markers survived: %q", got)
	}
	if !strings.Contains(got, "Hello!") || !strings.Contains(got, "Bye.") {
		t.Fatalf("prose lost: %q", got)
	}
	if strings.Contains(got, "body line") {
		t.Fatalf("skill body leaked: %q", got)
	}
}

func TestStripIsIdempotent(t *testing.T) {
	text := "Before [MEMORY_SAVE: key=k, value=v] after [DAILY_LOG: x]"

	once := Strip(text)
	twice := Strip(once)
	if once != twice {
		t.Fatalf("strip not idempotent: %q vs %q", once, twice)
	}
}

func TestStripConsumingWholeReply(t *testing.T) {
	got := Strip("[MEMORY_SAVE: key=k, value=v]")
	if got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
}
