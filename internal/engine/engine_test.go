package engine

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

func intType() reflect.Type { return reflect.TypeOf(0) }

func TestScenarioNestedRollbackPreservesOuterWrites(t *testing.T) {
	e := New(true, 16, nil, nil)

	_, err := e.SetScalar("p", "x", intType(), 1, false, true)
	require.NoError(t, err)

	e.Begin()
	e.Savepoint()
	_, err = e.SetScalar("p", "x", intType(), 2, false, true)
	require.NoError(t, err)
	e.Rollback()
	e.AbortTop()

	v, _, err := e.GetVariable("p", "x", intType(), false, true, true)
	require.NoError(t, err)
	val, isNull := v.ScalarValue()
	require.False(t, isNull)
	require.Equal(t, 1, val)
}

func TestScenarioCommitFoldsAcrossTwoLevels(t *testing.T) {
	e := New(true, 16, nil, nil)

	e.Begin()
	_, err := e.SetScalar("p", "x", intType(), 1, false, true)
	require.NoError(t, err)
	e.Savepoint()
	_, err = e.SetScalar("p", "x", intType(), 2, false, true)
	require.NoError(t, err)
	e.Release()
	e.CommitTop()

	p, err := e.GetPackage("p", true)
	require.NoError(t, err)
	v := p.Transactional["x"]
	require.Len(t, v.states, 1)
	require.Equal(t, Level{Atx: 0, Nest: 0}, v.states[0].Level)
	val, _ := v.ScalarValue()
	require.Equal(t, 2, val)
}

func TestScenarioEmptyPackageGC(t *testing.T) {
	e := New(true, 16, nil, nil)

	e.Begin()
	_, err := e.SetScalar("p", "t", intType(), 1, false, true)
	require.NoError(t, err)
	require.NoError(t, e.RemoveVariable("p", "t"))
	e.CommitTop()

	_, ok := e.packages["p"]
	require.False(t, ok)
}

func TestScenarioTransactionalityConflict(t *testing.T) {
	e := New(true, 16, nil, nil)
	_, err := e.SetScalar("p", "x", intType(), 1, false, true)
	require.NoError(t, err)
	_, err = e.SetScalar("p", "x", intType(), 1, false, false)
	require.Error(t, err)
}

func TestScenarioPackageResurrectsWithoutContents(t *testing.T) {
	e := New(true, 16, nil, nil)

	_, err := e.SetScalar("p", "r", intType(), 1, false, false)
	require.NoError(t, err)
	_, err = e.SetScalar("p", "t", intType(), 1, false, true)
	require.NoError(t, err)

	require.NoError(t, e.RemovePackage("p"))

	_, err = e.SetScalar("p", "r2", intType(), 1, false, false)
	require.NoError(t, err)

	_, _, err = e.GetVariable("p", "r", intType(), false, true, false)
	require.NoError(t, err)
	_, err = e.GetPackage("p", true)
	require.NoError(t, err)
	_, _, err = e.GetVariable("p", "r", intType(), false, true, true)
	require.Error(t, err)
	_, _, err = e.GetVariable("p", "t", intType(), false, true, true)
	require.Error(t, err)
}

func TestRoundTripSetGet(t *testing.T) {
	e := New(true, 16, nil, nil)
	_, err := e.SetScalar("p", "v", intType(), 42, false, true)
	require.NoError(t, err)
	v, _, err := e.GetVariable("p", "v", intType(), false, true, true)
	require.NoError(t, err)
	val, isNull := v.ScalarValue()
	require.False(t, isNull)
	require.Equal(t, 42, val)
}

func TestRoundTripInsertSelectDelete(t *testing.T) {
	e := New(true, 16, nil, nil)
	v, _, err := e.CreateVariable("p", "rows", nil, true, false)
	require.NoError(t, err)
	tbl := e.Table(v)
	require.NoError(t, tbl.Insert([]any{"k1", "hello"}, false))

	row, ok := tbl.Get("k1")
	require.True(t, ok)
	require.Equal(t, "hello", row[1])

	require.True(t, tbl.Delete("k1"))
	_, ok = tbl.Get("k1")
	require.False(t, ok)
}

func TestSavepointIdempotence(t *testing.T) {
	e := New(true, 16, nil, nil)
	_, err := e.SetScalar("p", "x", intType(), 1, false, true)
	require.NoError(t, err)

	e.Begin()
	e.Savepoint()
	// no mutation at this level
	e.Release()
	e.CommitTop()

	p, err := e.GetPackage("p", true)
	require.NoError(t, err)
	v := p.Transactional["x"]
	require.Len(t, v.states, 1)
}

func TestRollbackErasesVariableCreation(t *testing.T) {
	e := New(true, 16, nil, nil)
	e.Begin()
	_, err := e.SetScalar("p", "x", intType(), 1, false, true)
	require.NoError(t, err)
	e.AbortTop()

	_, err = e.GetPackage("p", true)
	require.Error(t, err)
}

func TestCursorSurvivesVariableRemoval(t *testing.T) {
	e := New(true, 16, nil, nil)
	e.Begin()
	v, p, err := e.CreateVariable("p", "t", nil, true, true)
	require.NoError(t, err)
	e.TouchVariable(v)
	require.NoError(t, e.Table(v).Insert([]any{"k", 1}, false))

	terminated := false
	id := e.Cursors().OpenVariableScan(p, v, e.CurrentLevel(), func() { terminated = true })
	require.NoError(t, e.RemoveVariable("p", "t"))
	require.True(t, terminated)
	e.Cursors().Close(id)
}
