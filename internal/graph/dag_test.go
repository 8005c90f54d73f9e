package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGraph(t *testing.T, ids ...string) *DirectedAcyclicGraph {
	t.Helper()
	d := NewDirectedAcyclicGraph()
	for _, id := range ids {
		require.NoError(t, d.AddVertex(id))
	}
	return d
}

func TestAddVertex_Duplicate(t *testing.T) {
	t.Parallel()
	d := newGraph(t, "a")
	assert.ErrorContains(t, d.AddVertex("a"), "already exists")
}

func TestAddEdge_MissingVertex(t *testing.T) {
	t.Parallel()
	d := newGraph(t, "a")
	assert.ErrorContains(t, d.AddEdge("a", "b"), "vertex b does not exist")
	assert.ErrorContains(t, d.AddEdge("b", "a"), "vertex b does not exist")
}

func TestAddEdge_Cycle(t *testing.T) {
	t.Parallel()
	d := newGraph(t, "crds", "lbc", "app")
	require.NoError(t, d.AddEdge("lbc", "crds"))
	require.NoError(t, d.AddEdge("app", "lbc"))

	err := d.AddEdge("crds", "app")
	var cycleErr *CycleError
	require.True(t, errors.As(err, &cycleErr))
	assert.Equal(t, "crds", cycleErr.From)
	assert.Equal(t, "app", cycleErr.To)
	assert.Equal(t, cycleErr.Cycle[0], cycleErr.Cycle[len(cycleErr.Cycle)-1])

	// the rejected edge is not kept
	cyclic, _ := d.HasCycle()
	assert.False(t, cyclic)
}

func TestAddEdge_SelfReference(t *testing.T) {
	t.Parallel()
	d := newGraph(t, "a")
	var cycleErr *CycleError
	assert.ErrorAs(t, d.AddEdge("a", "a"), &cycleErr)
}

func TestTopologicalSort(t *testing.T) {
	t.Parallel()
	d := newGraph(t, "app", "lbc", "crds", "unrelated")
	require.NoError(t, d.AddEdge("lbc", "crds"))
	require.NoError(t, d.AddEdge("app", "lbc"))

	order, err := d.TopologicalSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"crds", "unrelated", "lbc", "app"}, order)
}

func TestLevels(t *testing.T) {
	t.Parallel()
	d := newGraph(t, "a", "b", "c", "d")
	require.NoError(t, d.AddEdge("c", "a"))
	require.NoError(t, d.AddEdge("c", "b"))
	require.NoError(t, d.AddEdge("d", "c"))
	require.NoError(t, d.AddEdge("d", "a"))

	levels, err := d.Levels()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}, {"d"}}, levels)
}

func TestLevels_Empty(t *testing.T) {
	t.Parallel()
	levels, err := NewDirectedAcyclicGraph().Levels()
	require.NoError(t, err)
	assert.Empty(t, levels)
}

func TestDependents(t *testing.T) {
	t.Parallel()
	d := newGraph(t, "a", "b", "c")
	require.NoError(t, d.AddEdge("b", "a"))
	require.NoError(t, d.AddEdge("c", "a"))

	assert.Equal(t, []string{"b", "c"}, d.Dependents("a"))
	assert.Empty(t, d.Dependents("c"))
}

func TestGetEdges(t *testing.T) {
	t.Parallel()
	d := newGraph(t, "a", "b", "c")
	require.NoError(t, d.AddEdge("c", "a"))
	require.NoError(t, d.AddEdge("b", "a"))

	assert.Equal(t, [][2]string{{"b", "a"}, {"c", "a"}}, d.GetEdges())
}
