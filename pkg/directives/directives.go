package directives

import (
	"regexp"
	"strings"
)

// The model embeds bracketed commands in its replies. All field values
// are matched lazily: a value ends at the first delimiter that lets the
// rest of the directive parse. Malformed directives are skipped, never
// an error.

type MemorySave struct {
	Key   string
	Value string
	Tags  []string
}

type MemoryDelete struct {
	Key string
}

type Schedule struct {
	Name   string
	Expr   string // cron spec, HH:MM, or absolute time
	Prompt string
}

type SkillCreate struct {
	Name        string
	Description string
	Body        string
}

type DailyLog struct {
	Text string
}

type Notify struct {
	Title   string
	Message string
}

// Commands holds every directive found in one model reply, in the
// order each kind appeared.
type Commands struct {
	MemorySaves   []MemorySave
	MemoryDeletes []MemoryDelete
	Schedules     []Schedule
	SkillCreates  []SkillCreate
	DailyLogs     []DailyLog
	Notifies      []Notify
}

func (c Commands) Empty() bool {
	return len(c.MemorySaves) == 0 && len(c.MemoryDeletes) == 0 &&
		len(c.Schedules) == 0 && len(c.SkillCreates) == 0 &&
		len(c.DailyLogs) == 0 && len(c.Notifies) == 0
}

var (
	memorySaveRe   = regexp.MustCompile(`\[MEMORY_SAVE:\s*key=(.*?),\s*value=(.*?)(?:,\s*tags=(.*?))?\]`)
	memoryDeleteRe = regexp.MustCompile(`\[MEMORY_DELETE:\s*key=(.*?)\]`)
	scheduleRe     = regexp.MustCompile(`\[SCHEDULE:\s*name=(.*?),\s*(?:cron=(.*?),\s*)?(?:at=(.*?),\s*)?prompt=(.*?)\]`)
	skillCreateRe  = regexp.MustCompile(`(?s)\[SKILL_CREATE:\s*name=(.*?),\s*description=(.*?)\]\s*\n(.*?)\[/SKILL_CREATE\]`)
	dailyLogRe     = regexp.MustCompile(`\[DAILY_LOG:\s*(.*?)\]`)
	notifyRe       = regexp.MustCompile(`\[NOTIFY:\s*title=(.*?),\s*message=(.*?)\]`)

	stripRes = []*regexp.Regexp{
		regexp.MustCompile(`(?s)\[SKILL_CREATE:.*?\[/SKILL_CREATE\]\n?`),
		regexp.MustCompile(`\[MEMORY_SAVE:.*?\]\n?`),
		regexp.MustCompile(`\[MEMORY_DELETE:.*?\]\n?`),
		regexp.MustCompile(`\[SCHEDULE:.*?\]\n?`),
		regexp.MustCompile(`\[DAILY_LOG:.*?\]\n?`),
		regexp.MustCompile(`\[NOTIFY:.*?\]\n?`),
	}
)

// Parse extracts every recognized directive from the reply text.
func Parse(text string) Commands {
	var c Commands

	for _, m := range memorySaveRe.FindAllStringSubmatch(text, -1) {
		key := strings.TrimSpace(m[1])
		if key == "" {
			continue
		}
		var tags []string
		for _, t := range strings.Split(m[3], ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
		c.MemorySaves = append(c.MemorySaves, MemorySave{
			Key:   key,
			Value: strings.TrimSpace(m[2]),
			Tags:  tags,
		})
	}

	for _, m := range memoryDeleteRe.FindAllStringSubmatch(text, -1) {
		if key := strings.TrimSpace(m[1]); key != "" {
			c.MemoryDeletes = append(c.MemoryDeletes, MemoryDelete{Key: key})
		}
	}

	for _, m := range scheduleRe.FindAllStringSubmatch(text, -1) {
		expr := strings.TrimSpace(m[2])
		if expr == "" {
			expr = strings.TrimSpace(m[3])
		}
		prompt := strings.TrimSpace(m[4])
		if expr == "" || prompt == "" {
			continue
		}
		c.Schedules = append(c.Schedules, Schedule{
			Name:   strings.TrimSpace(m[1]),
			Expr:   expr,
			Prompt: prompt,
		})
	}

	for _, m := range skillCreateRe.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		if name == "" {
			continue
		}
		c.SkillCreates = append(c.SkillCreates, SkillCreate{
			Name:        name,
			Description: strings.TrimSpace(m[2]),
			Body:        strings.TrimSpace(m[3]),
		})
	}

	for _, m := range dailyLogRe.FindAllStringSubmatch(text, -1) {
		if entry := strings.TrimSpace(m[1]); entry != "" {
			c.DailyLogs = append(c.DailyLogs, DailyLog{Text: entry})
		}
	}

	for _, m := range notifyRe.FindAllStringSubmatch(text, -1) {
		title := strings.TrimSpace(m[1])
		msg := strings.TrimSpace(m[2])
		if title == "" || msg == "" {
			continue
		}
		c.Notifies = append(c.Notifies, Notify{Title: title, Message: msg})
	}

	return c
}

// Strip removes every directive span before the reply is shown to the
// user. Skill blocks are stripped first so their bodies cannot leave
// stray fragments behind.
func Strip(text string) string {
	for _, re := range stripRes {
		text = re.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(text)
}
