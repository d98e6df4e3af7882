package engine

import (
	"reflect"

	"github.com/sessionvars/sessionvars/internal/arena"
	"github.com/sessionvars/sessionvars/internal/recordtable"
)

// VariableState is one entry in a transactional variable's savepoint
// history (spec §3/§4.3). For a scalar variable it holds a datum and a
// null flag; for a record variable it holds the keyed row table.
type VariableState struct {
	Level Level
	Valid bool

	ScalarValue  any
	ScalarIsNull bool

	Table *recordtable.Table
}

func (s *VariableState) clone() *VariableState {
	cp := &VariableState{Level: s.Level, Valid: s.Valid, ScalarValue: s.ScalarValue, ScalarIsNull: s.ScalarIsNull}
	if s.Table != nil {
		cp.Table = s.Table.Clone()
	}
	return cp
}

// Variable is a named entry inside a package (spec §3). Transactional
// variables carry a savepoint stack; regular variables carry a single
// live value body instead.
type Variable struct {
	Name            string
	Type            reflect.Type
	IsRecord        bool
	IsTransactional bool
	IsDeleted       bool

	pkg *Package

	// transactional
	states []*VariableState

	// regular
	scalarValue  any
	scalarIsNull bool
	table        *recordtable.Table
	region       *arena.Region // owns the regular record's row table
}

func (v *Variable) headState() *VariableState {
	if len(v.states) == 0 {
		return nil
	}
	return v.states[len(v.states)-1]
}

// Valid reports whether the variable is currently visible: a regular
// variable is always valid once created; a transactional variable is
// valid iff its head state says so.
func (v *Variable) Valid() bool {
	if !v.IsTransactional {
		return true
	}
	head := v.headState()
	return head != nil && head.Valid
}

func (v *Variable) changedAtCurrentLevel(current Level) bool {
	head := v.headState()
	return head != nil && head.Level == current
}

// createSavepoint pushes a deep copy of the head state tagged at
// current, per spec §4.3 "Create savepoint". Must only be called on
// transactional variables that have not already been touched at current.
func (v *Variable) createSavepoint(current Level) {
	head := v.headState()
	var next *VariableState
	if head == nil {
		next = &VariableState{Level: current, Valid: true}
	} else {
		next = head.clone()
		next.Level = current
	}
	v.states = append(v.states, next)
}

// release implements spec §4.3 "Release savepoint" for a variable.
// Reports whether the variable was destroyed.
func (v *Variable) release(parent *changesFrame, sub bool) bool {
	head := v.headState()
	if head == nil {
		return true
	}
	if !head.Valid && (len(v.states) <= 1 || !sub) {
		v.destroy()
		return true
	}
	head.Level = head.Level.Parent()
	if len(v.states) >= 2 && v.states[len(v.states)-2].Level == head.Level {
		v.states = append(v.states[:len(v.states)-2], head)
	} else if parent != nil {
		parent.addVariable(v)
	}
	return false
}

// rollback implements spec §4.3 "Rollback savepoint" for a variable.
// Reports whether the variable was destroyed.
func (v *Variable) rollback() bool {
	if len(v.states) == 0 {
		return true
	}
	v.states = v.states[:len(v.states)-1]
	if len(v.states) == 0 {
		v.destroy()
		return true
	}
	return false
}

func (v *Variable) destroy() {
	v.states = nil
	v.IsDeleted = true
	if v.pkg != nil {
		delete(v.pkg.Transactional, v.Name)
		delete(v.pkg.Regular, v.Name)
	}
	if v.region != nil {
		v.region.Destroy()
	}
}

// PackageState is one entry in a package's savepoint history (spec §3).
type PackageState struct {
	Level       Level
	Valid       bool
	TransVarNum int
}

// Package is a named namespace of variables (spec §3).
type Package struct {
	Name          string
	Regular       map[string]*Variable
	Transactional map[string]*Variable

	states []*PackageState

	region        *arena.Region // owns the package as a whole
	regularRegion *arena.Region // owns regular variables' record tables
}

func newPackage(name string, parent *arena.Region, level Level) *Package {
	region := parent.NewChild("package:" + name)
	p := &Package{
		Name:          name,
		Regular:       map[string]*Variable{},
		Transactional: map[string]*Variable{},
		region:        region,
		regularRegion: region.NewChild("package:" + name + ":regular"),
	}
	p.states = append(p.states, &PackageState{Level: level, Valid: true})
	return p
}

func (p *Package) headState() *PackageState {
	if len(p.states) == 0 {
		return nil
	}
	return p.states[len(p.states)-1]
}

// Valid reports whether the package is currently visible.
func (p *Package) Valid() bool {
	head := p.headState()
	return head != nil && head.Valid
}

func (p *Package) changedAtCurrentLevel(current Level) bool {
	head := p.headState()
	return head != nil && head.Level == current
}

func (p *Package) liveVariableCount() int {
	head := p.headState()
	transCount := 0
	if head != nil {
		transCount = head.TransVarNum
	}
	return transCount + len(p.Regular)
}

// createSavepoint pushes a deep copy of the head package state tagged at
// current.
func (p *Package) createSavepoint(current Level) {
	head := p.headState()
	next := &PackageState{Level: current, Valid: true}
	if head != nil {
		next.Valid = head.Valid
		next.TransVarNum = head.TransVarNum
	}
	p.states = append(p.states, next)
}

// release implements spec §4.3 "Release savepoint" for a package.
// Reports whether the package was destroyed.
func (p *Package) release(parent *changesFrame, sub bool) bool {
	head := p.headState()
	if head == nil {
		return true
	}
	if !head.Valid && (len(p.states) <= 1 || !sub) {
		p.destroy()
		return true
	}
	head.Level = head.Level.Parent()
	if len(p.states) >= 2 && p.states[len(p.states)-2].Level == head.Level {
		p.states = append(p.states[:len(p.states)-2], head)
	} else if parent != nil {
		parent.addPackage(p)
	}
	return false
}

// rollback implements spec §4.3 "Rollback savepoint" for a package,
// including the special-case survival of a stateless package that still
// carries regular variables. Reports whether the package was destroyed.
func (p *Package) rollback(targetLevel Level, parent *changesFrame, sub bool) bool {
	if len(p.states) == 0 {
		return true
	}
	p.states = p.states[:len(p.states)-1]
	if len(p.states) > 0 {
		return false
	}

	if len(p.Regular) > 0 {
		// Regular variables are not transactional: the package survives
		// with a freshly synthesized valid state even though its
		// transactional history just ran out.
		p.states = append(p.states, &PackageState{Level: targetLevel, Valid: true})
		if parent != nil {
			parent.addPackage(p)
		}
		return false
	}

	if !sub {
		p.destroy()
		return true
	}

	p.states = append(p.states, &PackageState{Level: targetLevel, Valid: false})
	if parent != nil {
		parent.addPackage(p)
	}
	return false
}

func (p *Package) destroy() {
	for _, v := range p.Transactional {
		v.destroy()
	}
	for _, v := range p.Regular {
		v.destroy()
	}
	p.states = nil
	if p.region != nil {
		p.region.Destroy()
	}
}
