// Package scene tracks which scene the store is annotating and when the
// session started. The context is shared by logging, persistence, and
// export so all three agree on the active scene.
package scene

import (
	"log/slog"
	"sync"
	"time"
)

// Context holds the active scene and session state.
type Context struct {
	mu           sync.RWMutex
	name         string
	source       string
	sessionStart time.Time
}

// NewContext creates a Context for the named scene. An empty name falls
// back to "default".
func NewContext(name string, sessionStart time.Time) *Context {
	if name == "" {
		name = "default"
	}
	return &Context{
		name:         name,
		sessionStart: sessionStart,
	}
}

// Name returns the active scene name.
func (c *Context) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// Source returns the application the annotations originate from, if the
// host declared one.
func (c *Context) Source() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.source
}

// SetScene switches the active scene and, when source is non-empty, the
// originating application.
func (c *Context) SetScene(name, source string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
	if source != "" {
		c.source = source
	}
}

// SessionStart returns when this session began.
func (c *Context) SessionStart() time.Time {
	return c.sessionStart
}

// LogAttrs returns the scene attributes stamped onto every log record.
// It satisfies logging.ContextProvider.
func (c *Context) LogAttrs() []slog.Attr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	attrs := []slog.Attr{
		slog.String("scene", c.name),
		slog.Time("session_start", c.sessionStart),
	}
	if c.source != "" {
		attrs = append(attrs, slog.String("source", c.source))
	}
	return attrs
}
