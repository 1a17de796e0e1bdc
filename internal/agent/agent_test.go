package agent

import (
	"context"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeUnit returns a fixed output and records what it was given.
type fakeUnit struct {
	name   string
	output string
	err    error

	calls    int
	tasks    []string
	contexts []string
}

func (f *fakeUnit) Name() string { return f.name }

func (f *fakeUnit) Process(_ context.Context, task, context string) (string, error) {
	f.calls++
	f.tasks = append(f.tasks, task)
	f.contexts = append(f.contexts, context)
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

// echoUnit appends its name to the incoming context.
type echoUnit struct{ name string }

func (e echoUnit) Name() string { return e.name }

func (e echoUnit) Process(_ context.Context, _, context string) (string, error) {
	return context + ">" + e.name, nil
}

func registryOf(units ...Unit) *Registry {
	r := NewRegistry()
	for _, u := range units {
		r.Add(u)
	}
	return r
}
