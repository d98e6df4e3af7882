package sessionvars

import (
	"reflect"

	"github.com/sessionvars/sessionvars/internal/engine"
	"github.com/sessionvars/sessionvars/internal/recordtable"
)

// Row is one record: Row[0] is always the key column (spec §4.2).
type Row = recordtable.Row

func translateRowErr(err error) error {
	switch err {
	case nil:
		return nil
	case recordtable.ErrKeyTypeMismatch:
		return typeMismatchf("row key type does not match the variable's established key type")
	case recordtable.ErrDescriptorMismatch:
		return invalidParamf("row shape does not match the variable's established descriptor")
	case recordtable.ErrNotComparableKey:
		return invalidParamf("row key is not a comparable value")
	default:
		return err
	}
}

// SetScalar implements the "set scalar" callable (spec §6): creates the
// package and variable on first use, raising TransactionalityConflict if
// the variable already exists with the opposite transactionality.
// A zero T with isNull=false stores the zero value, not null.
func SetScalar[T any](s *Session, pkgName, varName string, value T, isNull, isTransactional bool) error {
	typ := reflect.TypeOf(value)
	var v any = value
	if isNull {
		v = nil
	}
	_, err := s.eng.SetScalar(pkgName, varName, typ, v, isNull, isTransactional)
	return err
}

// GetScalar implements the "get scalar" callable (spec §6). When strict
// is false and the variable does not exist, GetScalar returns the zero
// value and a nil error.
func GetScalar[T any](s *Session, pkgName, varName string, strict bool) (T, error) {
	var zero T
	typ := reflect.TypeOf(zero)
	v, _, err := s.eng.GetVariable(pkgName, varName, typ, false, true, strict)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	value, isNull := v.ScalarValue()
	if isNull || value == nil {
		return zero, nil
	}
	tv, ok := value.(T)
	if !ok {
		return zero, typeMismatchf("variable %q in package %q does not hold the requested type", varName, pkgName)
	}
	return tv, nil
}

// InsertRow implements the "insert row" callable. The first call for a
// given variable establishes its row descriptor.
func (s *Session) InsertRow(pkgName, varName string, row Row, isTransactional bool) error {
	v, _, err := s.eng.CreateVariable(pkgName, varName, nil, true, isTransactional)
	if err != nil {
		return err
	}
	s.eng.TouchVariable(v)
	return translateRowErr(s.eng.Table(v).Insert(row, false))
}

// UpdateRow implements the "update row" callable, reporting whether a row
// matching row[0] existed.
func (s *Session) UpdateRow(pkgName, varName string, row Row) (bool, error) {
	v, _, err := s.eng.GetVariable(pkgName, varName, nil, true, true, true)
	if err != nil {
		return false, err
	}
	s.eng.TouchVariable(v)
	ok, err := s.eng.Table(v).Update(row)
	return ok, translateRowErr(err)
}

// DeleteRow implements the "delete row" callable: a nil key deletes the
// row whose key is null. Reports whether a row was removed.
func (s *Session) DeleteRow(pkgName, varName string, key any) (bool, error) {
	v, _, err := s.eng.GetVariable(pkgName, varName, nil, true, true, true)
	if err != nil {
		return false, err
	}
	s.eng.TouchVariable(v)
	return s.eng.Table(v).Delete(key), nil
}

func (s *Session) scanVariable(p *engine.Package, v *engine.Variable) func(yield func(Row) bool) {
	return func(yield func(Row) bool) {
		terminated := false
		id := s.eng.Cursors().OpenVariableScan(p, v, s.eng.CurrentLevel(), func() { terminated = true })
		defer s.eng.Cursors().Close(id)
		for row := range s.eng.Table(v).All() {
			if terminated || !yield(row) {
				return
			}
		}
	}
}

// SelectRows implements the "select rows" callable: a lazy sequence over
// every row in the variable, registered with the cursor-safety registry
// so it is invalidated if the variable is removed or rolled back mid-scan
// (spec §4.5).
func (s *Session) SelectRows(pkgName, varName string) (func(yield func(Row) bool), error) {
	v, p, err := s.eng.GetVariable(pkgName, varName, nil, true, true, true)
	if err != nil {
		return nil, err
	}
	return s.scanVariable(p, v), nil
}

// SelectRowByKey implements the "select row by key" callable.
func (s *Session) SelectRowByKey(pkgName, varName string, key any) (Row, bool, error) {
	v, _, err := s.eng.GetVariable(pkgName, varName, nil, true, true, true)
	if err != nil {
		return nil, false, err
	}
	row, ok := s.eng.Table(v).Get(key)
	return row, ok, nil
}

// SelectRowsByKeys implements the "select rows by keys" callable: a lazy
// sequence over the matches for each key, in order, skipping unmatched
// keys. Multidimensional input (a key that is itself a slice, array, or
// map) fails FeatureNotSupported.
func (s *Session) SelectRowsByKeys(pkgName, varName string, keys []any) (func(yield func(Row) bool), error) {
	v, p, err := s.eng.GetVariable(pkgName, varName, nil, true, true, true)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		if k == nil {
			continue
		}
		switch reflect.TypeOf(k).Kind() {
		case reflect.Slice, reflect.Array, reflect.Map:
			return nil, FeatureNotSupportedError("multidimensional key arrays are not supported")
		}
	}
	return func(yield func(Row) bool) {
		terminated := false
		id := s.eng.Cursors().OpenVariableScan(p, v, s.eng.CurrentLevel(), func() { terminated = true })
		defer s.eng.Cursors().Close(id)
		for row := range s.eng.Table(v).ByKeys(keys) {
			if terminated || !yield(row) {
				return
			}
		}
	}, nil
}

// VariableExists implements the "variable exists" callable.
func (s *Session) VariableExists(pkgName, varName string) bool {
	v, _, err := s.eng.GetVariable(pkgName, varName, nil, false, false, false)
	return err == nil && v != nil
}

// PackageExists implements the "package exists" callable.
func (s *Session) PackageExists(pkgName string) bool {
	p, err := s.eng.GetPackage(pkgName, false)
	return err == nil && p != nil
}

// RemoveVariable implements the "remove variable" callable.
func (s *Session) RemoveVariable(pkgName, varName string) error {
	return s.eng.RemoveVariable(pkgName, varName)
}

// RemovePackage implements the "remove package" callable.
func (s *Session) RemovePackage(pkgName string) error {
	return s.eng.RemovePackage(pkgName)
}

// RemoveAllPackages implements the "remove all packages" callable. Valid
// outside any live transaction, but tolerated inside one per spec §9 (the
// packages are marked invalid and physically freed at commit).
func (s *Session) RemoveAllPackages() {
	s.eng.RemoveAllPackages()
}

// PackageVariable summarizes one variable for ListPackagesAndVariables.
type PackageVariable struct {
	Name            string
	IsRecord        bool
	IsTransactional bool
}

// PackageEntry summarizes one package for ListPackagesAndVariables.
type PackageEntry struct {
	Package   string
	Variables []PackageVariable
}

// ListPackagesAndVariables implements the "list packages and variables"
// callable: a lazy sequence over every currently-valid package, skipping
// invalid entries.
func (s *Session) ListPackagesAndVariables() func(yield func(PackageEntry) bool) {
	return func(yield func(PackageEntry) bool) {
		for p := range s.eng.Packages() {
			entry := PackageEntry{Package: p.Name}
			for v := range engine.Variables(p) {
				entry.Variables = append(entry.Variables, PackageVariable{
					Name:            v.Name,
					IsRecord:        v.IsRecord,
					IsTransactional: v.IsTransactional,
				})
			}
			if !yield(entry) {
				return
			}
		}
	}
}

// PackageStat reports one package's estimated memory footprint, per the
// "package stats" callable.
type PackageStat struct {
	Package           string
	RegularVars       int
	TransactionalVars int
	EstimatedBytes    int64
}

// PackageStats implements the "package stats" callable: a lazy sequence
// of (name, bytes) pairs, one per currently-valid package.
func (s *Session) PackageStats() func(yield func(PackageStat) bool) {
	return func(yield func(PackageStat) bool) {
		for p := range s.eng.Packages() {
			st := s.eng.PackageStats(p)
			out := PackageStat{
				Package:           st.Package,
				RegularVars:       st.RegularVars,
				TransactionalVars: st.TransactionalVars,
				EstimatedBytes:    st.EstimatedBytes,
			}
			if !yield(out) {
				return
			}
		}
	}
}

// FeatureNotSupportedError builds a FeatureNotSupported *Error, exported
// for host adapters reporting call contexts this module does not
// support.
func FeatureNotSupportedError(format string, args ...any) error {
	return apperrFeatureNotSupportedf(format, args...)
}
