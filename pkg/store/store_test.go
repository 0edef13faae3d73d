package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-control-tree/pkg/cfg"
	"github.com/l3aro/go-control-tree/pkg/structural"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "reports"), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func report(t *testing.T, name string, edges ...string) *structural.Report {
	t.Helper()
	tree, err := structural.Analyze(cfg.MustEdgeList(name, edges...), structural.Options{})
	require.NoError(t, err)
	return tree.Report("")
}

func TestPutGet(t *testing.T) {
	s := openTestStore(t)
	r := report(t, "pkg.loop", "A -> B", "B -> C", "C -> B", "B -> D")
	require.NoError(t, s.Put(r))

	got, err := s.Get("pkg.loop")
	require.NoError(t, err)
	assert.Equal(t, r.FunctionName, got.FunctionName)
	assert.Equal(t, r.Fingerprint, got.Fingerprint)
	assert.Equal(t, r.Stats, got.Stats)
	assert.Equal(t, r.Root, got.Root)
	assert.True(t, r.AnalyzedAt.Equal(got.AnalyzedAt))

	byFP, err := s.ByFingerprint(r.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, "pkg.loop", byFP.FunctionName)
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.ByFingerprint("0000")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete("nope"), ErrNotFound)
}

func TestListAndDelete(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put(report(t, "b", "A -> B")))
	require.NoError(t, s.Put(report(t, "a", "A -> B", "A -> C", "B -> D", "C -> D")))
	require.NoError(t, s.Put(report(t, "c", "E -> A", "E -> B", "A -> B", "B -> A")))

	all, err := s.List()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].FunctionName, all[1].FunctionName, all[2].FunctionName})
	assert.False(t, all[2].Structured)
	require.Len(t, all[2].UnstructuredBranches, 1)

	require.NoError(t, s.Delete("b"))
	all, err = s.List()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPutReplacesFingerprint(t *testing.T) {
	s := openTestStore(t)
	first := report(t, "f", "A -> B")
	second := report(t, "f", "A -> B", "B -> C")
	require.NotEqual(t, first.Fingerprint, second.Fingerprint)

	require.NoError(t, s.Put(first))
	require.NoError(t, s.Put(second))

	_, err := s.ByFingerprint(first.Fingerprint)
	assert.ErrorIs(t, err, ErrNotFound)
	got, err := s.ByFingerprint(second.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, second.Fingerprint, got.Fingerprint)
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports")
	s, err := Open(path, Options{})
	require.NoError(t, err)
	require.NoError(t, s.Put(report(t, "f", "A -> B")))
	require.NoError(t, s.Close())

	ro, err := Open(path, Options{ReadOnly: true})
	require.NoError(t, err)
	defer ro.Close()
	got, err := ro.Get("f")
	require.NoError(t, err)
	assert.Equal(t, "f", got.FunctionName)

	_, err = Open(filepath.Join(t.TempDir(), "missing"), Options{ReadOnly: true})
	assert.Error(t, err)
}

func TestIncrementLastByte(t *testing.T) {
	assert.Equal(t, []byte("report0"), incrementLastByte([]byte("report/")))
	assert.Equal(t, []byte{0x02}, incrementLastByte([]byte{0x01, 0xff}))
	assert.Nil(t, incrementLastByte([]byte{0xff}))
}
