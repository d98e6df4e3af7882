package sessionvars_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sessionvars/sessionvars"
)

func TestSetGetScalarRoundTrip(t *testing.T) {
	s := sessionvars.New()
	require.NoError(t, sessionvars.SetScalar(s, "p", "v", 42, false, true))
	got, err := sessionvars.GetScalar[int](s, "p", "v", true)
	require.NoError(t, err)
	require.Equal(t, 42, got)
}

func TestGetScalarStrictMissingIsUnknownPackage(t *testing.T) {
	s := sessionvars.New()
	_, err := sessionvars.GetScalar[int](s, "p", "missing", true)
	require.Error(t, err)
	require.True(t, sessionvars.IsUnknownPackage(err))
}

func TestGetScalarNonStrictMissingReturnsZero(t *testing.T) {
	s := sessionvars.New()
	got, err := sessionvars.GetScalar[int](s, "p", "missing", false)
	require.NoError(t, err)
	require.Equal(t, 0, got)
}

func TestTransactionalityConflict(t *testing.T) {
	s := sessionvars.New()
	require.NoError(t, sessionvars.SetScalar(s, "p", "x", 1, false, true))
	err := sessionvars.SetScalar(s, "p", "x", 1, false, false)
	require.Error(t, err)
	require.True(t, sessionvars.IsTransactionalityConflict(err))
}

func TestNestedRollbackPreservesOuterWrites(t *testing.T) {
	s := sessionvars.New()
	require.NoError(t, sessionvars.SetScalar(s, "p", "x", 1, false, true))

	require.NoError(t, s.Begin())
	require.NoError(t, s.Savepoint())
	require.NoError(t, sessionvars.SetScalar(s, "p", "x", 2, false, true))
	require.NoError(t, s.Rollback())
	require.NoError(t, s.Rollback())

	got, err := sessionvars.GetScalar[int](s, "p", "x", true)
	require.NoError(t, err)
	require.Equal(t, 1, got)
}

func TestInsertSelectByKeyUntilDelete(t *testing.T) {
	s := sessionvars.New()
	require.NoError(t, s.InsertRow("p", "rows", sessionvars.Row{"k1", "hello"}, false))

	row, ok, err := s.SelectRowByKey("p", "rows", "k1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, sessionvars.Row{"k1", "hello"}, row)

	deleted, err := s.DeleteRow("p", "rows", "k1")
	require.NoError(t, err)
	require.True(t, deleted)

	_, ok, err = s.SelectRowByKey("p", "rows", "k1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIteratorSurvivesVariableRemoval(t *testing.T) {
	s := sessionvars.New()
	require.NoError(t, s.Begin())
	require.NoError(t, s.InsertRow("p", "t", sessionvars.Row{"k1", 1}, true))
	require.NoError(t, s.InsertRow("p", "t", sessionvars.Row{"k2", 2}, true))

	seq, err := s.SelectRows("p", "t")
	require.NoError(t, err)

	rows := 0
	for range seq {
		rows++
		require.NoError(t, s.RemoveVariable("p", "t"))
	}
	require.Equal(t, 1, rows)
}

func TestEmptyPackageGCOnCommit(t *testing.T) {
	s := sessionvars.New()
	require.NoError(t, sessionvars.SetScalar(s, "p", "t", 1, false, true))
	require.NoError(t, s.RemoveVariable("p", "t"))

	found := false
	for entry := range s.ListPackagesAndVariables() {
		if entry.Package == "p" {
			found = true
		}
	}
	require.False(t, found)
}

func TestListPackagesAndVariablesSkipsInvalid(t *testing.T) {
	s := sessionvars.New()
	require.NoError(t, sessionvars.SetScalar(s, "p", "x", 1, false, false))
	require.NoError(t, s.RemovePackage("p"))

	for entry := range s.ListPackagesAndVariables() {
		require.NotEqual(t, "p", entry.Package)
	}
}

func TestSelectRowsByKeysRejectsMultidimensional(t *testing.T) {
	s := sessionvars.New()
	require.NoError(t, s.InsertRow("p", "rows", sessionvars.Row{"k1", 1}, false))

	_, err := s.SelectRowsByKeys("p", "rows", []any{[]any{"nested"}})
	require.Error(t, err)
	require.True(t, sessionvars.IsFeatureNotSupported(err))
}

func TestPackageStatsCoversLiveVariables(t *testing.T) {
	s := sessionvars.New()
	require.NoError(t, sessionvars.SetScalar(s, "p", "x", 1, false, false))
	require.NoError(t, s.InsertRow("p", "rows", sessionvars.Row{"k1", "value"}, false))

	var stat sessionvars.PackageStat
	for st := range s.PackageStats() {
		if st.Package == "p" {
			stat = st
		}
	}
	require.Equal(t, 2, stat.RegularVars)
	require.Greater(t, stat.EstimatedBytes, int64(0))
}

func TestRunAutonomousCommitsIndependently(t *testing.T) {
	s := sessionvars.New()
	require.NoError(t, s.Begin())
	require.NoError(t, sessionvars.SetScalar(s, "p", "x", 1, false, true))

	err := s.RunAutonomous(func(inner *sessionvars.Session) error {
		return sessionvars.SetScalar(inner, "audit", "count", 1, false, true)
	})
	require.NoError(t, err)

	require.NoError(t, s.Rollback())

	got, err := sessionvars.GetScalar[int](s, "audit", "count", true)
	require.NoError(t, err)
	require.Equal(t, 1, got)
}
