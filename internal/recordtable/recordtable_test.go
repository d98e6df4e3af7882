package recordtable

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInsertGetDelete(t *testing.T) {
	tbl := New(true)
	require.NoError(t, tbl.Insert(Row{"k1", "v1"}, false))
	require.Equal(t, 1, tbl.Len())

	row, ok := tbl.Get("k1")
	require.True(t, ok)
	require.Equal(t, Row{"k1", "v1"}, row)

	require.True(t, tbl.Delete("k1"))
	require.False(t, tbl.Delete("k1"))
	require.Equal(t, 0, tbl.Len())
}

func TestInsertRejectsDescriptorMismatch(t *testing.T) {
	tbl := New(false)
	require.NoError(t, tbl.Insert(Row{"k1", "v1"}, false))
	err := tbl.Insert(Row{"k2", "v1", "extra"}, false)
	require.ErrorIs(t, err, ErrDescriptorMismatch)
}

func TestInsertRejectsKeyTypeMismatch(t *testing.T) {
	tbl := New(false)
	require.NoError(t, tbl.Insert(Row{"k1", 1}, false))
	err := tbl.Insert(Row{42, 2}, false)
	require.ErrorIs(t, err, ErrKeyTypeMismatch)
}

func TestInsertRejectsNonComparableKey(t *testing.T) {
	tbl := New(false)
	err := tbl.Insert(Row{[]int{1, 2}, "v"}, false)
	require.ErrorIs(t, err, ErrNotComparableKey)
}

func TestConvertUnknownOIDPromotesNilKeyToString(t *testing.T) {
	tbl := New(true)
	require.NoError(t, tbl.Insert(Row{nil, "first"}, false))
	require.NoError(t, tbl.Insert(Row{"k", "second"}, false))
	err := tbl.Insert(Row{7, "third"}, false)
	require.ErrorIs(t, err, ErrKeyTypeMismatch)
}

func TestUpdateReportsMatch(t *testing.T) {
	tbl := New(false)
	require.NoError(t, tbl.Insert(Row{"k1", "v1"}, false))

	ok, err := tbl.Update(Row{"k1", "v2"})
	require.NoError(t, err)
	require.True(t, ok)
	row, _ := tbl.Get("k1")
	require.Equal(t, Row{"k1", "v2"}, row)

	ok, err = tbl.Update(Row{"missing", "v"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestByKeysSkipsUnmatched(t *testing.T) {
	tbl := New(false)
	require.NoError(t, tbl.Insert(Row{"a", 1}, false))
	require.NoError(t, tbl.Insert(Row{"b", 2}, false))

	var got []Row
	for row := range tbl.ByKeys([]any{"a", "missing", "b"}) {
		got = append(got, row)
	}
	require.Equal(t, []Row{{"a", 1}, {"b", 2}}, got)
}

func TestCloneIsIndependent(t *testing.T) {
	tbl := New(false)
	require.NoError(t, tbl.Insert(Row{"a", 1}, false))

	clone := tbl.Clone()
	require.NoError(t, clone.Insert(Row{"b", 2}, false))

	require.Equal(t, 1, tbl.Len())
	require.Equal(t, 2, clone.Len())
}

func TestTransientDescriptorRevalidatesEveryInsert(t *testing.T) {
	tbl := New(false)
	require.NoError(t, tbl.Insert(Row{"a", 1}, true))
	err := tbl.Insert(Row{"b", "not-an-int"}, true)
	require.ErrorIs(t, err, ErrDescriptorMismatch)
}
