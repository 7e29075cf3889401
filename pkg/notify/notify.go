package notify

import (
	"github.com/gen2brain/beeep"

	"github.com/hyunwoolee/bandi/pkg/logger"
)

// Notifier sends desktop notifications for [NOTIFY] directives. A
// disabled notifier swallows sends so callers never need to branch.
type Notifier struct {
	enabled bool
}

func New(enabled bool) *Notifier {
	return &Notifier{enabled: enabled}
}

// Send shows a desktop notification. Failures are logged, not
// returned; a missing notification daemon must not fail the pipeline.
func (n *Notifier) Send(title, message string) {
	if !n.enabled {
		return
	}

	if err := beeep.Notify(title, message, ""); err != nil {
		logger.WarnCF("notify", "desktop notification failed", map[string]interface{}{
			"title": title,
			"error": err.Error(),
		})
		return
	}

	logger.DebugCF("notify", "desktop notification sent", map[string]interface{}{"title": title})
}
