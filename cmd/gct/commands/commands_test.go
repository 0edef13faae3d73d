package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-control-tree/pkg/structural"
)

const loopDoc = `function: loop
flow:
  - A -> B
  - B -> C
  - C -> D
  - D -> B
  - D -> E
---
function: tangle
flow:
  - E -> A
  - E -> B
  - A -> B
  - B -> A
`

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// workspace isolates a test from user and project config files.
func workspace(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(RootCmd)
	var stdout, stderr bytes.Buffer
	RootCmd.SetOut(&stdout)
	RootCmd.SetErr(&stderr)
	RootCmd.SetArgs(args)
	err := RootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestAnalyzeDocument(t *testing.T) {
	dir := workspace(t)
	doc := filepath.Join(dir, "flows.yaml")
	require.NoError(t, os.WriteFile(doc, []byte(loopDoc), 0644))

	out, _, err := run(t, "analyze", doc)
	require.NoError(t, err)
	assert.Contains(t, out, "loop (structured, 5 blocks")
	assert.Contains(t, out, "NaturalLoop [B C D] exit=E")
	assert.Contains(t, out, "tangle (unstructured, 3 blocks")
	assert.Contains(t, out, "improper loop at A")

	out, _, err = run(t, "analyze", doc, "--func", "loop", "--format", "json")
	require.NoError(t, err)
	var r structural.Report
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Equal(t, "loop", r.FunctionName)
	assert.True(t, r.Structured)
	require.NotNil(t, r.Root)
	assert.Equal(t, "Block", r.Root.Region)

	out, _, err = run(t, "analyze", doc, "--func", "tangle", "-f", "dot")
	require.NoError(t, err)
	assert.Contains(t, out, "digraph tangle")
	assert.Contains(t, out, "style=dashed")
}

func TestAnalyzeErrors(t *testing.T) {
	dir := workspace(t)
	doc := filepath.Join(dir, "flows.yaml")
	require.NoError(t, os.WriteFile(doc, []byte(loopDoc), 0644))

	_, _, err := run(t, "analyze", doc, "--func", "missing")
	assert.ErrorContains(t, err, `function "missing" not found`)

	_, _, err = run(t, "analyze", dir)
	assert.ErrorContains(t, err, "expected a file")

	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("A -> B"), 0644))
	_, _, err = run(t, "analyze", txt)
	assert.ErrorContains(t, err, "unsupported file type")

	_, _, err = run(t, "analyze", doc, "--format", "xml")
	assert.ErrorContains(t, err, "invalid output_format")

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("function: broken\nflow:\n  - A -> B\n  - C -> D\n"), 0644))
	_, _, err = run(t, "analyze", broken, "--strict")
	assert.ErrorIs(t, err, structural.ErrMalformedGraph)

	out, _, err := run(t, "analyze", broken)
	require.NoError(t, err)
	assert.Contains(t, out, "broken (structured, 2 blocks")
}

func TestStoreAndShow(t *testing.T) {
	dir := workspace(t)
	doc := filepath.Join(dir, "flows.yaml")
	require.NoError(t, os.WriteFile(doc, []byte(loopDoc), 0644))
	storePath := filepath.Join(dir, "reports")

	_, _, err := run(t, "show", "--store-path", storePath)
	assert.Error(t, err, "show needs an existing store")

	_, _, err = run(t, "analyze", doc, "--store", "--store-path", storePath)
	require.NoError(t, err)

	out, _, err := run(t, "show", "--list", "--store-path", storePath)
	require.NoError(t, err)
	assert.Contains(t, out, "structured")
	assert.Contains(t, out, "loop")
	assert.Contains(t, out, "unstructured")
	assert.Contains(t, out, "tangle")

	out, _, err = run(t, "show", "loop", "--store-path", storePath)
	require.NoError(t, err)
	assert.Contains(t, out, "loop (structured, 5 blocks")

	out, _, err = run(t, "show", "tangle", "--store-path", storePath, "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "function: tangle")
	assert.Contains(t, out, "class: back")

	_, _, err = run(t, "show", "loop", "--store-path", storePath, "--format", "dot")
	assert.ErrorContains(t, err, "dot output needs the control tree")

	_, _, err = run(t, "show", "nope", "--store-path", storePath)
	assert.ErrorContains(t, err, `no stored report for "nope"`)
}

func TestScan(t *testing.T) {
	dir := workspace(t)
	src := "package p\n\nfunc a(x int) int {\n\tif x > 0 {\n\t\treturn 1\n\t}\n\treturn 0\n}\n\nfunc b() {}\n"
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "p"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "p", "p.go"), []byte(src), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "p", "p_test.go"), []byte("package p\n\nfunc helper() {}\n"), 0644))

	out, errOut, err := run(t, "scan", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "p/p.go:a (")
	assert.Contains(t, out, "p/p.go:b (structured")
	assert.Contains(t, out, "p/p_test.go:helper (")
	assert.Contains(t, errOut, "3 functions:")

	t.Setenv("GCT_SKIP_TESTS", "true")
	out, errOut, err = run(t, "scan", dir, "--format", "json")
	require.NoError(t, err)
	var reports []structural.Report
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 2)
	assert.Equal(t, "p/p.go:a", reports[0].FunctionName)
	assert.Contains(t, errOut, "2 functions:")
}

func TestVersion(t *testing.T) {
	workspace(t)
	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "gct version dev")
}

func TestSourceName(t *testing.T) {
	assert.Equal(t, "p/a.go:f", sourceName("/src", "/src/p/a.go", "f"))
	assert.Equal(t, "a.go:T.m", sourceName(".", "a.go", "T.m"))
}

func TestValidateCount(t *testing.T) {
	assert.NoError(t, validateCount("0"))
	assert.NoError(t, validateCount("8"))
	assert.Error(t, validateCount("-1"))
	assert.Error(t, validateCount("many"))
}
