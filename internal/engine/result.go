// Package engine implements the conversation processing engine: condition
// evaluation, flow-graph interpretation, knowledge-base ranking, and the
// ordered fallback pipeline that turns one inbound message into exactly one
// response. The engine is pure application logic: it never touches the
// database and never sleeps. Side effects (lead capture, delays, webhooks)
// are returned as hints for the service layer to act on.
package engine

import (
	"strconv"
	"time"

	"github.com/chatforge/go-chatbot-backend/internal/domain"
)

// Result is the single normalized output of the pipeline (and of each stage
// that produces one). It is not persisted as its own entity; the service
// layer folds it into a bot Message plus conversation state.
type Result struct {
	Content     string
	Confidence  float64
	FlowID      string
	NodeID      string
	AIGenerated bool

	// Lead holds contact fields extracted from the current message, if any.
	Lead *domain.Lead
	// Buttons to render with the response.
	Buttons []domain.Button
	// DelayMs is a scheduling hint for the consuming layer; the engine
	// itself never sleeps.
	DelayMs int

	// ProcessingTime is wall-clock time from pipeline entry to the winning
	// stage's completion. Set by the pipeline, zero for raw stage results.
	ProcessingTime time.Duration
}

// Context carries the evaluation inputs shared by condition evaluation and
// trigger matching: the current user text, the conversation so far (nil on
// the very first message), and arbitrary request metadata.
type Context struct {
	Message      string
	Conversation *domain.Conversation
	Metadata     map[string]string

	// Now anchors session_duration; the zero value means time.Now().
	Now time.Time
}

// now returns the evaluation timestamp.
func (c *Context) now() time.Time {
	if c.Now.IsZero() {
		return time.Now()
	}
	return c.Now
}

// resolveField maps a condition field name to its string representation.
// Unknown fields resolve to the empty string.
func (c *Context) resolveField(field string) string {
	switch field {
	case "user_input":
		return c.Message
	case "message_count":
		if c.Conversation == nil {
			return "0"
		}
		return strconv.Itoa(len(c.Conversation.Messages))
	case "session_duration":
		if c.Conversation == nil {
			return "0"
		}
		ms := c.now().Sub(c.Conversation.StartedAt).Milliseconds()
		if ms < 0 {
			ms = 0
		}
		return strconv.FormatInt(ms, 10)
	default:
		if c.Metadata != nil {
			if v, ok := c.Metadata[field]; ok {
				return v
			}
		}
		return ""
	}
}
