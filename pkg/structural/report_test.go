package structural

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestReportLoop(t *testing.T) {
	tree := analyze(t, "A -> B", "B -> C", "C -> D", "D -> B", "D -> E")
	tree.Fingerprint = "abc"

	r := tree.Report("pkg.loop")
	assert.Equal(t, "pkg.loop", r.FunctionName)
	assert.Equal(t, "abc", r.Fingerprint)
	assert.True(t, r.Structured)

	require.NotNil(t, r.Root)
	assert.Equal(t, "Block", r.Root.Region)
	require.Len(t, r.Root.Children, 3)

	loop := r.Root.Children[1]
	assert.Equal(t, "NaturalLoop", loop.Region)
	assert.Equal(t, "E", loop.LoopExitBlock)
	assert.Equal(t, "D", loop.ExitBlock)
	assert.Equal(t, []BlockEdge{{From: "D", To: "E"}}, loop.Outgoing)
	assert.Equal(t, "A", r.Root.Children[0].Block)

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"region":"NaturalLoop"`)
	assert.Contains(t, string(data), `"loop_exit_block":"E"`)

	out, err := yaml.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(out), "function: pkg.loop")
}

func TestReportIrreducibleText(t *testing.T) {
	tree := analyze(t, "E -> A", "E -> B", "A -> B", "B -> A")
	r := tree.Report("")

	assert.Equal(t, "f", r.FunctionName)
	assert.False(t, r.Structured)
	require.Len(t, r.ImproperRegions, 1)
	assert.Equal(t, ImproperReport{Header: "A", Entries: []string{"A", "B"}, Blocks: []string{"A", "B"}}, r.ImproperRegions[0])
	require.Len(t, r.UnstructuredBranches, 1)
	assert.Equal(t, BranchReport{From: []string{"B"}, To: "A", Class: "back", NeedsForwardCopy: true, IsGoto: true}, r.UnstructuredBranches[0])

	text := r.String()
	assert.True(t, strings.HasPrefix(text, "f (unstructured, 3 blocks,"))
	assert.Contains(t, text, "unstructured goto B -> A (back)")
	assert.Contains(t, text, "improper loop at A entries=A,B blocks=A,B")
}

func TestWriteDOT(t *testing.T) {
	tree := analyze(t,
		"S -> A", "S -> G",
		"A -> B", "A -> C",
		"B -> D",
		"C -> E", "E -> D",
		"G -> E",
	)

	var buf bytes.Buffer
	require.NoError(t, WriteDOT(&buf, tree))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "digraph"))
	assert.Contains(t, out, "IfThenElse#10")
	assert.Contains(t, out, "shape=box")
	assert.Contains(t, out, "style=dashed")
	assert.Equal(t, 1, strings.Count(out, "style=dashed"))
}
