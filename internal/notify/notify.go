// Package notify surfaces stream lifecycle events to the user: a
// bounded log of notices and a live-audio indicator, both queryable
// over the control API.
package notify

import (
	"log/slog"
	"sync"
	"time"
)

// maxNotices bounds the retained notice history.
const maxNotices = 50

// Notice is a single user-facing message.
type Notice struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Center implements the engine's notifier: notices are logged and
// retained for the API, the indicator mirrors whether audio is live.
type Center struct {
	logger *slog.Logger

	mu        sync.Mutex
	notices   []Notice
	indicator bool
}

// NewCenter creates a notification center.
func NewCenter(logger *slog.Logger) *Center {
	if logger == nil {
		logger = slog.Default()
	}
	return &Center{logger: logger}
}

// Notice records and logs a user-facing message.
func (c *Center) Notice(message string) {
	c.logger.Info("user notice", slog.String("message", message))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.notices = append(c.notices, Notice{Message: message, Timestamp: time.Now()})
	if len(c.notices) > maxNotices {
		c.notices = c.notices[len(c.notices)-maxNotices:]
	}
}

// SetIndicator updates the live-audio indicator.
func (c *Center) SetIndicator(active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indicator = active
}

// Indicator reports whether audio is live.
func (c *Center) Indicator() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indicator
}

// Recent returns the retained notices, oldest first.
func (c *Center) Recent() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notice, len(c.notices))
	copy(out, c.notices)
	return out
}
