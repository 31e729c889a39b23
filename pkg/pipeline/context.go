package pipeline

import (
	"fmt"
	"strings"

	"github.com/hmkim/agora/pkg/planner"
)

// Context accumulates specialist outputs for one turn, keyed by role and
// ordered by execution. It grows monotonically and is discarded at turn end.
type Context struct {
	entries []contextEntry
}

type contextEntry struct {
	Role   planner.Role
	Output string
}

// NewContext creates an empty pipeline context.
func NewContext() *Context {
	return &Context{}
}

// Add records a role's output. Repeated roles append a second entry,
// matching how duplicate plan steps are executed twice.
func (c *Context) Add(role planner.Role, output string) {
	c.entries = append(c.entries, contextEntry{Role: role, Output: output})
}

// Get returns the most recent output recorded for a role.
func (c *Context) Get(role planner.Role) (string, bool) {
	for i := len(c.entries) - 1; i >= 0; i-- {
		if c.entries[i].Role == role {
			return c.entries[i].Output, true
		}
	}
	return "", false
}

// Len returns the number of recorded outputs.
func (c *Context) Len() int {
	return len(c.entries)
}

// Render formats all recorded outputs as labeled sections for inclusion
// in a downstream task message.
func (c *Context) Render() string {
	if len(c.entries) == 0 {
		return ""
	}

	var b strings.Builder
	for _, entry := range c.entries {
		fmt.Fprintf(&b, "--- %s result ---\n%s\n\n", entry.Role, entry.Output)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
