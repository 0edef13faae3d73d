package cfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goSample = `package sample

func straight() int {
	a := 1
	b := a + 1
	return b
}

func branch(x int) int {
	if x > 0 {
		return 1
	} else {
		return 2
	}
}

func loop(n int) int {
	total := 0
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			continue
		}
		if total > 100 {
			break
		}
		total += i
	}
	return total
}

func jump(n int) int {
	i := 0
	if n > 10 {
		goto inner
	}
outer:
	i++
inner:
	i += 2
	if i < n {
		goto outer
	}
	return i
}

func classify(x int) string {
	switch x {
	case 0:
		return "zero"
	case 1:
		fallthrough
	case 2:
		return "small"
	}
	return "large"
}

type counter struct{ n int }

func (c *counter) Inc() {
	c.n++
}
`

func parseSample(t *testing.T) map[string]*CFGInfo {
	t.Helper()
	infos, err := ParseGoSource([]byte(goSample))
	require.NoError(t, err)

	byName := make(map[string]*CFGInfo, len(infos))
	for _, info := range infos {
		byName[info.FunctionName] = info
	}
	return byName
}

func hasEdge(info *CFGInfo, src, dst string) bool {
	for _, e := range info.Edges {
		if e.SourceID == src && e.TargetID == dst {
			return true
		}
	}
	return false
}

func TestParseGoSourceFindsFunctions(t *testing.T) {
	infos := parseSample(t)

	for _, name := range []string{"straight", "branch", "loop", "jump", "classify", "counter.Inc"} {
		info, ok := infos[name]
		require.True(t, ok, "missing function %s", name)
		assert.NoError(t, Validate(info), name)
		assert.NotEmpty(t, info.EntryBlockID, name)
		assert.NotEmpty(t, info.ExitBlockIDs, name)
	}
}

func TestExtractStraightLine(t *testing.T) {
	info := parseSample(t)["straight"]

	assert.Len(t, info.Blocks, 2)
	require.Len(t, info.Edges, 1)
	assert.Equal(t, info.EntryBlockID, info.Edges[0].SourceID)
	assert.Equal(t, info.ExitBlockIDs[0], info.Edges[0].TargetID)
	assert.Equal(t, 1, info.CyclomaticComplexity)

	entry := info.Blocks[info.EntryBlockID]
	assert.Contains(t, entry.Statements, "a := 1")
	assert.Contains(t, entry.Statements, "return b")
}

func TestExtractIfElseBothReturn(t *testing.T) {
	info := parseSample(t)["branch"]

	// entry, exit and one block per arm; the join is never reached
	assert.Len(t, info.Blocks, 4)
	assert.Equal(t, 2, info.CyclomaticComplexity)
	assert.Equal(t, BlockTypeEntry, info.Blocks[info.EntryBlockID].Type)

	exit := info.ExitBlockIDs[0]
	assert.Len(t, info.Blocks[exit].Predecessors, 2)
}

func TestExtractLoopJumpsResolve(t *testing.T) {
	info := parseSample(t)["loop"]

	var headers, breaks, continues int
	for _, b := range info.Blocks {
		if b.Type == BlockTypeLoopHeader {
			headers++
		}
	}
	for _, e := range info.Edges {
		switch e.EdgeType {
		case EdgeTypeBreak:
			breaks++
		case EdgeTypeContinue:
			continues++
		}
		assert.NotEmpty(t, e.TargetID)
	}
	assert.Equal(t, 1, headers)
	assert.Equal(t, 1, breaks)
	assert.Equal(t, 1, continues)
	assert.GreaterOrEqual(t, info.CyclomaticComplexity, 4)
}

func TestExtractGotoEdges(t *testing.T) {
	info := parseSample(t)["jump"]

	var gotos []CFGEdge
	for _, e := range info.Edges {
		if e.EdgeType == EdgeTypeGoto {
			gotos = append(gotos, e)
		}
	}
	require.Len(t, gotos, 2)
	assert.Equal(t, "inner", gotos[0].Condition)
	assert.Equal(t, "outer", gotos[1].Condition)

	inner := info.Blocks[gotos[0].TargetID]
	assert.Equal(t, []string{"inner:", "i += 2", "if i < n"}, inner.Statements)
}

func TestExtractSwitchFallthrough(t *testing.T) {
	info := parseSample(t)["classify"]

	var cases, fallthroughs int
	for _, e := range info.Edges {
		switch e.EdgeType {
		case EdgeTypeCase:
			cases++
		case EdgeTypeFallthrough:
			fallthroughs++
		}
	}
	assert.Equal(t, 3, cases)
	assert.Equal(t, 1, fallthroughs)
	assert.Contains(t, info.Blocks[info.EntryBlockID].Statements, "switch x")
}

func TestExtractGoCFGByName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.go")
	require.NoError(t, os.WriteFile(path, []byte(goSample), 0644))

	info, err := ExtractGoCFG(path, "Inc")
	require.NoError(t, err)
	assert.Equal(t, "counter.Inc", info.FunctionName)
	assert.Equal(t, path, info.File)

	_, err = ExtractGoCFG(path, "missing")
	assert.Error(t, err)

	infos, err := ExtractGoFile(path)
	require.NoError(t, err)
	assert.Len(t, infos, 6)
	assert.Equal(t, "straight", infos[0].FunctionName)
}

func TestExtractGoCFGMissingFile(t *testing.T) {
	_, err := ExtractGoCFG(filepath.Join(t.TempDir(), "nope.go"), "f")
	assert.Error(t, err)
}

func TestIfWithoutElseJoins(t *testing.T) {
	infos, err := ParseGoSource([]byte(`package p

func f(x int) int {
	y := 0
	if x > 0 {
		y = x
	}
	return y
}
`))
	require.NoError(t, err)
	require.Len(t, infos, 1)
	info := infos[0]

	var join string
	for id, b := range info.Blocks {
		if b.Type == BlockTypeJoin {
			join = id
		}
	}
	require.NotEmpty(t, join)
	assert.True(t, hasEdge(info, info.EntryBlockID, join))
	assert.Len(t, info.Blocks[join].Predecessors, 2)
}
