// Package recordtable implements the keyed row set backing a record
// variable (spec §4.2): a hash table keyed by each row's first column
// value. The host's row-descriptor system and its hash/equality handles
// are external collaborators this module does not own; in their place we
// use a Go map keyed on the first column's value directly — Go's runtime
// equality and hashing on comparable types stand in for the host's
// type-cache-provided procedures.
package recordtable

import (
	"errors"
	"reflect"
)

// ErrKeyTypeMismatch is returned when an inserted row's first column type
// disagrees with the table's established key type.
var ErrKeyTypeMismatch = errors.New("recordtable: key type mismatch")

// ErrDescriptorMismatch is returned when an inserted row's shape
// disagrees with the descriptor captured on the table's first insert.
var ErrDescriptorMismatch = errors.New("recordtable: row descriptor mismatch")

// ErrNotComparableKey is returned when a row's first column is not usable
// as a Go map key (e.g. a slice or map value).
var ErrNotComparableKey = errors.New("recordtable: first column is not a comparable key")

// Row is one record: Row[0] is always the key column.
type Row []any

func (r Row) key() any {
	return r[0]
}

// Descriptor is the cached shape of every row in a table: the column
// count and, for each column, the reflect.Type observed on first insert.
// A nil entry in Types means that column held an untyped nil on capture
// and is not checked on subsequent inserts.
type Descriptor struct {
	Columns   int
	Types     []reflect.Type
	Transient bool
}

func newDescriptor(row Row, transient bool) *Descriptor {
	types := make([]reflect.Type, len(row))
	for i, v := range row {
		if v != nil {
			types[i] = reflect.TypeOf(v)
		}
	}
	return &Descriptor{Columns: len(row), Types: types, Transient: transient}
}

func (d *Descriptor) validate(row Row) error {
	if len(row) != d.Columns {
		return ErrDescriptorMismatch
	}
	for i, v := range row {
		if d.Types[i] == nil || v == nil {
			continue
		}
		if reflect.TypeOf(v) != d.Types[i] {
			return ErrDescriptorMismatch
		}
	}
	return nil
}

// Table is a keyed row set. The zero Table is not valid; use New.
type Table struct {
	desc      *Descriptor
	keyType   reflect.Type
	rows      map[any]Row
	convertOID bool
}

// New returns an empty table. convertUnknownOID mirrors the
// convert_unknownoid setting (spec §6 Configuration): when true, a nil
// first-column type captured from an "unknown"-typed literal is silently
// promoted to string on descriptor capture, matching the host's
// unknown-to-text coercion.
func New(convertUnknownOID bool) *Table {
	return &Table{rows: map[any]Row{}, convertOID: convertUnknownOID}
}

// Descriptor returns the table's captured row shape, or nil if no row has
// ever been inserted.
func (t *Table) Descriptor() *Descriptor {
	return t.desc
}

// Len returns the number of rows currently stored.
func (t *Table) Len() int {
	return len(t.rows)
}

// Insert adds or overwrites row, keyed by row[0]. The first insertion
// captures the table's descriptor; every later insertion checks the new
// row's first column type against the established key type and then
// validates the full row against the captured descriptor, whether or not
// the descriptor is transient.
func (t *Table) Insert(row Row, transientDescriptor bool) error {
	if len(row) == 0 {
		return ErrDescriptorMismatch
	}
	key := row.key()
	if key != nil && !reflect.TypeOf(key).Comparable() {
		return ErrNotComparableKey
	}

	if t.desc == nil {
		t.desc = newDescriptor(row, transientDescriptor)
		t.keyType = reflect.TypeOf(key)
		if key == nil && t.convertOID {
			// an "unknown"-typed literal observed as untyped nil on
			// capture is promoted to text: later keys are checked
			// against string rather than left unconstrained.
			t.keyType = reflect.TypeOf("")
		}
	} else {
		if key != nil && t.keyType != nil && reflect.TypeOf(key) != t.keyType {
			return ErrKeyTypeMismatch
		}
		if err := t.desc.validate(row); err != nil {
			return err
		}
	}

	t.rows[key] = row
	return nil
}

// Update replaces the row matching row[0] if one exists. Reports whether
// a match was found.
func (t *Table) Update(row Row) (bool, error) {
	if len(row) == 0 {
		return false, ErrDescriptorMismatch
	}
	key := row.key()
	if _, ok := t.rows[key]; !ok {
		return false, nil
	}
	if t.desc != nil && t.desc.Transient {
		if err := t.desc.validate(row); err != nil {
			return false, err
		}
	}
	t.rows[key] = row
	return true, nil
}

// Delete removes the row keyed by key. Reports whether a row was removed.
func (t *Table) Delete(key any) bool {
	if _, ok := t.rows[key]; !ok {
		return false
	}
	delete(t.rows, key)
	return true
}

// Get returns the row keyed by key, if any.
func (t *Table) Get(key any) (Row, bool) {
	row, ok := t.rows[key]
	return row, ok
}

// All iterates every row in the table's internal (map) order — spec §4.2
// promises nothing stronger than "unordered, not restartable
// independently of its scan handle", which is exactly what ranging over a
// Go map gives us.
func (t *Table) All() func(yield func(Row) bool) {
	return func(yield func(Row) bool) {
		for _, row := range t.rows {
			if !yield(row) {
				return
			}
		}
	}
}

// ByKeys iterates the rows matching each element of keys, in order,
// silently skipping keys with no match. Multidimensional input arrays are
// rejected by the caller (storage-level concern, since dimensionality
// isn't representable in a flat []any) before ByKeys is ever called.
func (t *Table) ByKeys(keys []any) func(yield func(Row) bool) {
	return func(yield func(Row) bool) {
		for _, k := range keys {
			row, ok := t.rows[k]
			if !ok {
				continue
			}
			if !yield(row) {
				return
			}
		}
	}
}

// Clone deep-copies the table for savepoint creation: a fresh row map
// with every row re-inserted, per spec §4.3 ("create a fresh arena and
// re-insert every row into a freshly-built row table").
func (t *Table) Clone() *Table {
	cp := &Table{rows: make(map[any]Row, len(t.rows)), convertOID: t.convertOID, keyType: t.keyType}
	if t.desc != nil {
		descCopy := *t.desc
		descCopy.Types = append([]reflect.Type(nil), t.desc.Types...)
		cp.desc = &descCopy
	}
	for k, row := range t.rows {
		cp.rows[k] = append(Row(nil), row...)
	}
	return cp
}
