package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_LastRegistrationWins(t *testing.T) {
	r := NewRegistry()
	first := &fakeUnit{name: "rag", output: "old"}
	second := &fakeUnit{name: "rag", output: "new"}

	r.Add(first)
	r.Add(&fakeUnit{name: "tool"})
	r.Add(second)

	u, err := r.Get("rag")
	require.NoError(t, err)
	assert.Same(t, second, u)
	assert.Equal(t, []string{"rag", "tool"}, r.Names())
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_GetMissing(t *testing.T) {
	_, err := NewRegistry().Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "nope")
}

func TestRegistry_EnabledUnitsOrder(t *testing.T) {
	r := registryOf(&fakeUnit{name: "memory"}, &fakeUnit{name: "rag"}, &fakeUnit{name: "router"})

	var names []string
	for _, e := range r.EnabledUnits() {
		names = append(names, e.Name)
		assert.Equal(t, e.Name, e.Unit.Name())
	}
	assert.Equal(t, []string{"memory", "rag", "router"}, names)
}
