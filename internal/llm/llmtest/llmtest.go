// Package llmtest provides a scripted Completer for tests.
package llmtest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rahul/herodotus/internal/llm"
)

// ErrExhausted is returned once every scripted reply has been consumed.
var ErrExhausted = errors.New("llmtest: no scripted reply left")

// Call records one Complete invocation.
type Call struct {
	System string
	User   string
	Config llm.CompletionConfig
}

// Reply is one scripted answer.
type Reply struct {
	Text string
	Err  error
}

// Completer replays scripted replies in order. When Respond is set it is
// consulted first and the script is only used if it returns ok=false.
type Completer struct {
	mu      sync.Mutex
	replies []Reply
	calls   []Call

	Respond func(system, user string) (string, bool)
}

func New(texts ...string) *Completer {
	c := &Completer{}
	for _, t := range texts {
		c.replies = append(c.replies, Reply{Text: t})
	}
	return c
}

// Push appends replies to the script.
func (c *Completer) Push(replies ...Reply) *Completer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, replies...)
	return c
}

func (c *Completer) Complete(ctx context.Context, system, user string, cfg llm.CompletionConfig) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, Call{System: system, User: user, Config: cfg})

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if c.Respond != nil {
		if out, ok := c.Respond(system, user); ok {
			return out, nil
		}
	}
	if len(c.replies) == 0 {
		return "", ErrExhausted
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	return r.Text, r.Err
}

// Calls returns a copy of the recorded calls.
func (c *Completer) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// CallsContaining counts calls whose system prompt contains substr.
func (c *Completer) CallsContaining(substr string) int {
	n := 0
	for _, call := range c.Calls() {
		if strings.Contains(call.System, substr) {
			n++
		}
	}
	return n
}
