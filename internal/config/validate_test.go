package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chain(stages ...*Stage) *Model {
	return &Model{Flow: &Flow{Name: "test"}, Stages: stages}
}

func TestValidateAcceptsLinearChain(t *testing.T) {
	m := chain(
		&Stage{Name: "a", Callback: "cb", Partitions: 1, Next: "b"},
		&Stage{Name: "b", Callback: "cb", Partitions: 4, Converge: true, Next: "c"},
		&Stage{Name: "c", Callback: "cb", Partitions: 1, Accumulate: true},
	)
	assert.NoError(t, m.Validate())
}

func TestValidateErrors(t *testing.T) {
	t.Run("no flow", func(t *testing.T) {
		m := &Model{Stages: []*Stage{{Name: "a", Callback: "cb", Partitions: 1}}}
		assert.ErrorContains(t, m.Validate(), "no flow block")
	})

	t.Run("no stages", func(t *testing.T) {
		m := chain()
		assert.ErrorContains(t, m.Validate(), "defines no stages")
	})

	t.Run("duplicate stage name", func(t *testing.T) {
		m := chain(
			&Stage{Name: "a", Callback: "cb", Partitions: 1},
			&Stage{Name: "a", Callback: "cb", Partitions: 1},
		)
		assert.ErrorContains(t, m.Validate(), "duplicate stage name")
	})

	t.Run("missing callback", func(t *testing.T) {
		m := chain(&Stage{Name: "a", Partitions: 1})
		assert.ErrorContains(t, m.Validate(), "no callback")
	})

	t.Run("zero partitions", func(t *testing.T) {
		m := chain(&Stage{Name: "a", Callback: "cb"})
		assert.ErrorContains(t, m.Validate(), "partitions must be >= 1")
	})

	t.Run("multiple partitions without convergence", func(t *testing.T) {
		m := chain(&Stage{Name: "a", Callback: "cb", Partitions: 3})
		assert.ErrorContains(t, m.Validate(), "require converge")
	})

	t.Run("unknown next", func(t *testing.T) {
		m := chain(&Stage{Name: "a", Callback: "cb", Partitions: 1, Next: "ghost"})
		assert.ErrorContains(t, m.Validate(), "unknown next stage")
	})

	t.Run("self-referential next", func(t *testing.T) {
		m := chain(&Stage{Name: "a", Callback: "cb", Partitions: 1, Next: "a"})
		assert.ErrorContains(t, m.Validate(), "self-referential")
	})

	t.Run("two feeders for one stage", func(t *testing.T) {
		m := chain(
			&Stage{Name: "a", Callback: "cb", Partitions: 1, Next: "c"},
			&Stage{Name: "b", Callback: "cb", Partitions: 1, Next: "c"},
			&Stage{Name: "c", Callback: "cb", Partitions: 1},
		)
		assert.ErrorContains(t, m.Validate(), "fed by both")
	})

	t.Run("ring of stages", func(t *testing.T) {
		m := chain(
			&Stage{Name: "a", Callback: "cb", Partitions: 1, Next: "b"},
			&Stage{Name: "b", Callback: "cb", Partitions: 1, Next: "c"},
			&Stage{Name: "c", Callback: "cb", Partitions: 1, Next: "a"},
		)
		assert.ErrorContains(t, m.Validate(), "cycle detected")
	})
}

func TestEntries(t *testing.T) {
	m := chain(
		&Stage{Name: "a", Callback: "cb", Partitions: 1, Next: "b"},
		&Stage{Name: "b", Callback: "cb", Partitions: 1},
		&Stage{Name: "x", Callback: "cb", Partitions: 1, Next: "y"},
		&Stage{Name: "y", Callback: "cb", Partitions: 1},
	)
	require.NoError(t, m.Validate())

	entries := m.Entries()
	require.Len(t, entries, 2)
	names := []string{entries[0].Name, entries[1].Name}
	assert.Contains(t, names, "a")
	assert.Contains(t, names, "x")
}
