package heartbeat

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ActiveHours is a daily time window like "08:00-23:00". Windows may
// span midnight ("22:00-06:00"). The zero value is always active.
type ActiveHours struct {
	startMin int
	endMin   int
	bounded  bool
}

func ParseActiveHours(spec string) (ActiveHours, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return ActiveHours{}, nil
	}

	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return ActiveHours{}, fmt.Errorf("invalid active hours %q", spec)
	}

	start, err := parseClock(parts[0])
	if err != nil {
		return ActiveHours{}, fmt.Errorf("invalid active hours %q: %w", spec, err)
	}
	end, err := parseClock(parts[1])
	if err != nil {
		return ActiveHours{}, fmt.Errorf("invalid active hours %q: %w", spec, err)
	}

	return ActiveHours{startMin: start, endMin: end, bounded: true}, nil
}

func parseClock(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("bad hour %q", parts[0])
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad minute %q", parts[1])
	}
	return h*60 + m, nil
}

func (a ActiveHours) Contains(t time.Time) bool {
	if !a.bounded {
		return true
	}

	now := t.Hour()*60 + t.Minute()
	if a.startMin <= a.endMin {
		return now >= a.startMin && now < a.endMin
	}
	// spans midnight
	return now >= a.startMin || now < a.endMin
}
