// Package engine implements the transactional state core described by
// the store's specification: the object model (packages, variables),
// per-object savepoint history, the per-subtransaction changes stack,
// the transaction engine that drives release/rollback over it, and the
// cursor-safety registry. Everything here is an implementation detail of
// the public Session type; callers outside this module never see an
// *engine.Engine directly.
package engine

import (
	"reflect"

	"github.com/sessionvars/sessionvars/internal/apperr"
	"github.com/sessionvars/sessionvars/internal/arena"
	"github.com/sessionvars/sessionvars/internal/recordtable"
	"github.com/sessionvars/sessionvars/log"
)

// MaxIdentifierLength bounds package and variable names, mirroring a
// typical host identifier-length limit (spec §6).
const MaxIdentifierLength = 63

// Engine is the session-scoped transactional object store.
type Engine struct {
	logger log.Logger
	root   *arena.Region

	packages map[string]*Package
	changes  *changesStack
	current  Level

	convertUnknownOID bool
	cursors           *CursorRegistry
	metrics           *Metrics

	suspended        []suspendedScope
	autonomousHidden [][]*scanEntry
}

type suspendedScope struct {
	changes *changesStack
	current Level
}

// New returns an empty engine.
func New(convertUnknownOID bool, maxOpenCursors int, logger log.Logger, metrics *Metrics) *Engine {
	if logger == nil {
		logger = log.Global()
	}
	return &Engine{
		logger:            logger,
		root:              arena.New("module"),
		packages:          map[string]*Package{},
		convertUnknownOID: convertUnknownOID,
		cursors:           NewCursorRegistry(maxOpenCursors, metrics),
		metrics:           metrics,
	}
}

// Cursors exposes the cursor-safety registry for the store's select
// operations to register and close scans against.
func (e *Engine) Cursors() *CursorRegistry { return e.cursors }

// CurrentLevel reports the engine's current (atx, nest) level.
func (e *Engine) CurrentLevel() Level { return e.current }

// ConvertUnknownOID reports the configured convert_unknownoid setting.
func (e *Engine) ConvertUnknownOID() bool { return e.convertUnknownOID }

// SetConvertUnknownOID updates convert_unknownoid at runtime (spec §6
// Configuration is reloadable).
func (e *Engine) SetConvertUnknownOID(v bool) { e.convertUnknownOID = v }

func validateName(kind, name string) error {
	if name == "" {
		return apperr.InvalidParamf("%s name must not be empty", kind)
	}
	if len(name) > MaxIdentifierLength {
		return apperr.InvalidParamf("%s name %q exceeds the %d-character identifier limit", kind, name, MaxIdentifierLength)
	}
	return nil
}

func kindName(isRecord bool) string {
	if isRecord {
		return "record"
	}
	return "scalar"
}

// touchPackage ensures p carries a savepoint-able state at the current
// level before its fields are mutated, per spec §4.3's create-savepoint
// rule: only push a new state the first time the object is touched at
// this nesting level.
func (e *Engine) touchPackage(p *Package) {
	if e.current.Nest == 0 || p.changedAtCurrentLevel(e.current) {
		return
	}
	e.ensureFrame()
	p.createSavepoint(e.current)
	e.changes.top().addPackage(p)
}

// touchVariable is touchPackage's counterpart for transactional
// variables; regular variables never need a savepoint.
func (e *Engine) touchVariable(v *Variable) {
	if !v.IsTransactional || e.current.Nest == 0 || v.changedAtCurrentLevel(e.current) {
		return
	}
	e.ensureFrame()
	v.createSavepoint(e.current)
	e.changes.top().addVariable(v)
}

func (e *Engine) ensureFrame() {
	if e.changes == nil {
		e.changes = newChangesStack(e.root)
	}
	e.changes.pushTo(e.current)
}

func (e *Engine) finalizeAutocommit(p *Package) {
	if e.current.Nest != 0 {
		return
	}
	if head := p.headState(); head != nil && !head.Valid {
		p.destroy()
		delete(e.packages, p.Name)
	}
}

// GetPackage implements spec §4.1 get_package.
func (e *Engine) GetPackage(name string, strict bool) (*Package, error) {
	p, ok := e.packages[name]
	if !ok || !p.Valid() {
		if strict {
			return nil, apperr.UnknownPackagef(name)
		}
		return nil, nil
	}
	return p, nil
}

// CreatePackage implements spec §4.1 create_package. is_transactional is
// accepted for API fidelity with the spec's callable signature; this
// engine always gives every package both a regular and a transactional
// variable table, so it does not change the package's shape.
func (e *Engine) CreatePackage(name string, _ bool) (*Package, error) {
	if err := validateName("package", name); err != nil {
		return nil, err
	}
	if p, ok := e.packages[name]; ok {
		if p.Valid() {
			return p, nil
		}
		e.touchPackage(p)
		head := p.headState()
		head.Valid = true
		head.TransVarNum = 0
		// Resurrection does not resurrect contents: every pre-existing
		// transactional variable is savepoint-ed and invalidated.
		for _, v := range p.Transactional {
			e.touchVariable(v)
			if vh := v.headState(); vh != nil {
				vh.Valid = false
			}
		}
		return p, nil
	}
	p := newPackage(name, e.root, e.current)
	e.packages[name] = p
	e.registerNewObjectAtCurrentLevel(func(f *changesFrame) { f.addPackage(p) })
	e.logger.Debugf("package %q created", name)
	return p, nil
}

// registerNewObjectAtCurrentLevel links a freshly-created object into the
// current changes frame, the same bookkeeping touchPackage/touchVariable
// perform for a pre-existing object's first mutation at this level — a
// brand-new object's initial state is already "at current level", so it
// needs the same frame membership invariant 2 requires.
func (e *Engine) registerNewObjectAtCurrentLevel(add func(*changesFrame)) {
	if e.current.Nest == 0 {
		return
	}
	e.ensureFrame()
	add(e.changes.top())
}

// GetVariable implements spec §4.1 get_variable: regular table first,
// then transactional. typ == nil skips the type check.
func (e *Engine) GetVariable(pkgName, varName string, typ reflect.Type, isRecord, checkType, strict bool) (*Variable, *Package, error) {
	p, ok := e.packages[pkgName]
	if !ok || !p.Valid() {
		if strict {
			return nil, nil, apperr.UnknownPackagef(pkgName)
		}
		return nil, nil, nil
	}
	v, ok := p.Regular[varName]
	if !ok {
		v, ok = p.Transactional[varName]
	}
	if !ok || !v.Valid() {
		if strict {
			return nil, nil, apperr.UnknownVariablef(pkgName, varName)
		}
		return nil, nil, nil
	}
	if checkType {
		if v.IsRecord != isRecord {
			return nil, nil, apperr.KindMismatchf("variable %q in package %q is %s, not %s", varName, pkgName, kindName(v.IsRecord), kindName(isRecord))
		}
		if typ != nil && v.Type != nil && v.Type != typ {
			return nil, nil, apperr.TypeMismatchf("variable %q in package %q has type %s, not %s", varName, pkgName, v.Type, typ)
		}
	}
	return v, p, nil
}

// CreateVariable implements spec §4.1 create_variable.
func (e *Engine) CreateVariable(pkgName, varName string, typ reflect.Type, isRecord, isTransactional bool) (*Variable, *Package, error) {
	if err := validateName("variable", varName); err != nil {
		return nil, nil, err
	}
	p, err := e.CreatePackage(pkgName, isTransactional)
	if err != nil {
		return nil, nil, err
	}

	if existing, ok := p.Regular[varName]; ok {
		if existing.IsTransactional != isTransactional {
			return nil, nil, apperr.TransactionalityConflictf(pkgName, varName)
		}
		return existing, p, nil
	}
	if existing, ok := p.Transactional[varName]; ok {
		if existing.IsTransactional != isTransactional {
			return nil, nil, apperr.TransactionalityConflictf(pkgName, varName)
		}
		if !existing.Valid() {
			e.touchVariable(existing)
			existing.headState().Valid = true
			e.touchPackage(p)
			p.headState().TransVarNum++
			e.refreshValidity(p)
		} else {
			e.touchVariable(existing)
		}
		return existing, p, nil
	}

	v := &Variable{Name: varName, Type: typ, IsRecord: isRecord, IsTransactional: isTransactional, pkg: p}
	if isTransactional {
		v.states = []*VariableState{{Level: e.current, Valid: true}}
		p.Transactional[varName] = v
		e.registerNewObjectAtCurrentLevel(func(f *changesFrame) { f.addVariable(v) })
		e.touchPackage(p)
		p.headState().TransVarNum++
	} else {
		p.Regular[varName] = v
		v.region = p.regularRegion.NewChild("var:" + varName)
	}
	e.refreshValidity(p)
	return v, p, nil
}

func (e *Engine) refreshValidity(p *Package) {
	head := p.headState()
	if head == nil {
		return
	}
	head.Valid = head.TransVarNum+len(p.Regular) > 0
}

// RemoveVariable implements spec §4.1 remove_variable.
func (e *Engine) RemoveVariable(pkgName, varName string) error {
	p, ok := e.packages[pkgName]
	if !ok || !p.Valid() {
		return apperr.UnknownVariablef(pkgName, varName)
	}
	if v, ok := p.Regular[varName]; ok {
		e.cursors.TerminateVariable(v)
		delete(p.Regular, varName)
		v.destroy()
		e.touchPackage(p)
		e.refreshValidity(p)
		e.finalizeAutocommit(p)
		return nil
	}
	if v, ok := p.Transactional[varName]; ok && v.Valid() {
		e.touchVariable(v)
		v.headState().Valid = false
		e.cursors.TerminateVariable(v)
		e.touchPackage(p)
		p.headState().TransVarNum--
		e.refreshValidity(p)
		e.finalizeAutocommit(p)
		return nil
	}
	return apperr.UnknownVariablef(pkgName, varName)
}

// RemovePackage implements spec §4.1 remove_package.
func (e *Engine) RemovePackage(name string) error {
	p, ok := e.packages[name]
	if !ok || !p.Valid() {
		return apperr.UnknownPackagef(name)
	}
	e.cursors.TerminatePackage(p)
	if e.current.Nest == 0 {
		p.destroy()
		delete(e.packages, name)
		return nil
	}
	for vname, v := range p.Regular {
		delete(p.Regular, vname)
		v.destroy()
	}
	for _, v := range p.Transactional {
		if v.Valid() {
			e.touchVariable(v)
			v.headState().Valid = false
			v.IsDeleted = true
		}
	}
	e.touchPackage(p)
	head := p.headState()
	head.Valid = false
	head.TransVarNum = 0
	return nil
}

// RemoveAllPackages implements spec §4.1/§9 remove_packages.
func (e *Engine) RemoveAllPackages() {
	if e.current.Nest == 0 {
		for _, p := range e.packages {
			e.cursors.TerminatePackage(p)
			p.destroy()
		}
		e.packages = map[string]*Package{}
		return
	}
	for _, p := range e.packages {
		if !p.Valid() {
			continue
		}
		e.cursors.TerminatePackage(p)
		for vname, v := range p.Regular {
			delete(p.Regular, vname)
			v.destroy()
		}
		for _, v := range p.Transactional {
			if v.Valid() {
				e.touchVariable(v)
				v.headState().Valid = false
			}
		}
		e.touchPackage(p)
		head := p.headState()
		head.Valid = false
		head.TransVarNum = 0
	}
}

// Packages yields every currently-valid package, for the
// list-packages-and-variables callable.
func (e *Engine) Packages() func(yield func(*Package) bool) {
	return func(yield func(*Package) bool) {
		for _, p := range e.packages {
			if !p.Valid() {
				continue
			}
			if !yield(p) {
				return
			}
		}
	}
}

// Variables yields every currently-valid variable in p, regular and
// transactional alike.
func Variables(p *Package) func(yield func(*Variable) bool) {
	return func(yield func(*Variable) bool) {
		for _, v := range p.Regular {
			if !yield(v) {
				return
			}
		}
		for _, v := range p.Transactional {
			if v.Valid() {
				if !yield(v) {
					return
				}
			}
		}
	}
}

// ScalarValue returns the variable's current scalar value and null flag.
func (v *Variable) ScalarValue() (any, bool) {
	if v.IsTransactional {
		if head := v.headState(); head != nil {
			return head.ScalarValue, head.ScalarIsNull
		}
		return nil, true
	}
	return v.scalarValue, v.scalarIsNull
}

// setScalarValue overwrites the variable's current scalar value. Callers
// must have already called Engine.touchVariable (as Engine.SetScalar
// does) so a savepoint exists if one is needed.
func (v *Variable) setScalarValue(value any, isNull bool) {
	if v.IsTransactional {
		head := v.headState()
		head.ScalarValue = value
		head.ScalarIsNull = isNull
		return
	}
	v.scalarValue = value
	v.scalarIsNull = isNull
}

// liveTable returns the variable's live record table, creating one on first
// use with the engine's convert_unknownoid setting.
func (v *Variable) liveTable(convertUnknownOID bool) *recordtable.Table {
	if v.IsTransactional {
		head := v.headState()
		if head.Table == nil {
			head.Table = recordtable.New(convertUnknownOID)
		}
		return head.Table
	}
	if v.table == nil {
		v.table = recordtable.New(convertUnknownOID)
	}
	return v.table
}

// SetScalar implements spec §6 "set scalar".
func (e *Engine) SetScalar(pkgName, varName string, typ reflect.Type, value any, isNull, isTransactional bool) (*Variable, error) {
	v, _, err := e.CreateVariable(pkgName, varName, typ, false, isTransactional)
	if err != nil {
		return nil, err
	}
	if v.IsRecord {
		return nil, apperr.KindMismatchf("variable %q in package %q is a record variable", varName, pkgName)
	}
	if typ != nil && v.Type != nil && v.Type != typ {
		return nil, apperr.TypeMismatchf("variable %q in package %q has type %s, not %s", varName, pkgName, v.Type, typ)
	}
	e.touchVariable(v)
	v.setScalarValue(value, isNull)
	return v, nil
}

// Table exposes a variable's live record table for the store's record
// operations.
func (e *Engine) Table(v *Variable) *recordtable.Table {
	return v.liveTable(e.convertUnknownOID)
}

// TouchVariable exposes touchVariable for the store's record operations,
// which must savepoint the variable before mutating its row table.
func (e *Engine) TouchVariable(v *Variable) { e.touchVariable(v) }

// TouchPackage exposes touchPackage for completeness; unused directly by
// the store today but kept symmetric with TouchVariable.
func (e *Engine) TouchPackage(p *Package) { e.touchPackage(p) }

// --- transaction engine (spec §4.4) ---

// Begin starts the top-level transaction at the engine's current
// autonomous scope.
func (e *Engine) Begin() {
	e.current = Level{Atx: e.current.Atx, Nest: 1}
}

// Savepoint opens a new subtransaction, returning its level.
func (e *Engine) Savepoint() Level {
	e.current.Nest++
	return e.current
}

func (e *Engine) popCurrentFrame() (frame, parent *changesFrame) {
	cur := e.current
	if e.changes != nil && e.changes.depth() == cur.Nest {
		frame = e.changes.pop()
		parent = e.changes.top()
	}
	if frame == nil {
		frame = newChangesFrame(cur, e.root)
	}
	return frame, parent
}

func (e *Engine) collapseChangesIfEmpty() {
	if e.changes != nil && e.changes.empty() {
		e.changes.destroy()
		e.changes = nil
	}
}

// Release processes a subtransaction commit: variables then packages in
// the current frame are released into the parent frame, and the current
// level is popped by one. Call only for a true subtransaction (the
// caller's current nest level must be >= 2); a commit that pops the
// top-level transaction itself must use CommitTop.
func (e *Engine) Release() {
	cur := e.current
	frame, parent := e.popCurrentFrame()
	for v := range frame.variables {
		v.release(parent, true)
	}
	for p := range frame.packages {
		p.release(parent, true)
	}
	e.cursors.TerminateAtLevel(cur)
	e.current = e.current.Parent()
	e.collapseChangesIfEmpty()
	e.metrics.observeRelease()
}

// Rollback processes a subtransaction abort.
func (e *Engine) Rollback() {
	cur := e.current
	frame, parent := e.popCurrentFrame()
	newLevel := cur.Parent()
	for v := range frame.variables {
		v.rollback()
	}
	for p := range frame.packages {
		destroyed := p.rollback(newLevel, parent, true)
		if destroyed {
			delete(e.packages, p.Name)
		}
	}
	e.cursors.TerminateAtLevel(cur)
	e.current = newLevel
	e.collapseChangesIfEmpty()
	e.metrics.observeRollback()
}

// CommitTop processes the top-level transaction's commit.
func (e *Engine) CommitTop() {
	frame, _ := e.popCurrentFrame()
	for v := range frame.variables {
		v.release(nil, false)
	}
	for p := range frame.packages {
		if destroyed := p.release(nil, false); destroyed {
			delete(e.packages, p.Name)
		}
	}
	e.current = Level{Atx: e.current.Atx, Nest: 0}
	e.collapseChangesIfEmpty()
	e.cursors.TerminateAll()
	e.metrics.observeCommit()
}

// AbortTop processes the top-level transaction's abort.
func (e *Engine) AbortTop() {
	cur := e.current
	frame, _ := e.popCurrentFrame()
	newLevel := Level{Atx: cur.Atx, Nest: 0}
	for v := range frame.variables {
		v.rollback()
	}
	for p := range frame.packages {
		if destroyed := p.rollback(newLevel, nil, false); destroyed {
			delete(e.packages, p.Name)
		}
	}
	e.current = newLevel
	e.collapseChangesIfEmpty()
	e.cursors.TerminateAll()
	e.metrics.observeAbort()
}

// --- autonomous transactions (spec §9, optional) ---

// EnterAutonomous suspends the current changes stack and nesting level,
// installing a fresh empty one for a nested autonomous transaction scope
// distinguished by a new atx id. Cursor-registry entries belonging to the
// suspended scope are hidden, not destroyed.
func (e *Engine) EnterAutonomous() {
	e.suspended = append(e.suspended, suspendedScope{changes: e.changes, current: e.current})
	hidden := e.cursors.SuspendAutonomous(e.current.Atx)
	e.autonomousHidden = append(e.autonomousHidden, hidden)
	e.changes = nil
	e.current = Level{Atx: e.current.Atx + 1, Nest: 0}
}

// ExitAutonomous restores the previously-suspended scope. Callers must
// have already driven the autonomous scope's own transaction to
// CommitTop or AbortTop (current.Nest == 0) before calling this.
func (e *Engine) ExitAutonomous() {
	if len(e.suspended) == 0 {
		return
	}
	innerAtx := e.current.Atx
	e.cursors.TerminateAutonomous(innerAtx)
	n := len(e.suspended)
	prev := e.suspended[n-1]
	e.suspended = e.suspended[:n-1]
	e.changes = prev.changes
	e.current = prev.current
	if len(e.autonomousHidden) > 0 {
		hidden := e.autonomousHidden[len(e.autonomousHidden)-1]
		e.autonomousHidden = e.autonomousHidden[:len(e.autonomousHidden)-1]
		e.cursors.ResumeAutonomous(hidden)
	}
}
