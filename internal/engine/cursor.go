package engine

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// scanEntry is one live iteration scan tracked by the cursor-safety
// registry (spec §4.5). terminate nulls the consumer's back-pointer so a
// subsequent fetch observes "done" instead of touching freed state.
type scanEntry struct {
	id       uint64
	variable *Variable
	pkg      *Package
	level    Level
	cancel   func()
}

func (e *scanEntry) terminate() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// CursorRegistry tracks every open record/package scan. It is backed by
// an LRU so the scarce hash-sequence handles §5 describes ("the host
// limits them") are bounded by construction: once the registry is full,
// adding one more scan terminates the least-recently-touched one instead
// of growing without bound.
type CursorRegistry struct {
	cache   *lru.Cache[uint64, *scanEntry]
	nextID  uint64
	metrics *Metrics
}

// NewCursorRegistry returns a registry that holds at most maxOpen live
// scans. metrics may be nil.
func NewCursorRegistry(maxOpen int, metrics *Metrics) *CursorRegistry {
	if maxOpen <= 0 {
		maxOpen = 1
	}
	r := &CursorRegistry{metrics: metrics}
	cache, err := lru.NewWithEvict[uint64, *scanEntry](maxOpen, func(_ uint64, entry *scanEntry) {
		entry.terminate()
	})
	if err != nil {
		panic(err)
	}
	r.cache = cache
	return r
}

func (r *CursorRegistry) observe() {
	r.metrics.setOpenCursors(r.cache.Len())
}

// OpenVariableScan registers a scan over a record variable and returns
// its handle.
func (r *CursorRegistry) OpenVariableScan(pkg *Package, v *Variable, level Level, cancel func()) uint64 {
	r.nextID++
	id := r.nextID
	r.cache.Add(id, &scanEntry{id: id, variable: v, pkg: pkg, level: level, cancel: cancel})
	r.observe()
	return id
}

// OpenPackageScan registers a scan over the top-level package table and
// returns its handle.
func (r *CursorRegistry) OpenPackageScan(level Level, cancel func()) uint64 {
	r.nextID++
	id := r.nextID
	r.cache.Add(id, &scanEntry{id: id, level: level, cancel: cancel})
	r.observe()
	return id
}

// Close removes a scan explicitly, e.g. because the iterator ran to
// completion normally.
func (r *CursorRegistry) Close(id uint64) {
	r.cache.Remove(id)
	r.observe()
}

// Len reports the number of live scans.
func (r *CursorRegistry) Len() int {
	return r.cache.Len()
}

// TerminateAll terminates every live scan: executor end, top-level
// commit, top-level abort.
func (r *CursorRegistry) TerminateAll() {
	for _, key := range r.cache.Keys() {
		if entry, ok := r.cache.Peek(key); ok {
			entry.terminate()
		}
	}
	r.cache.Purge()
	r.observe()
}

// TerminateAtLevel terminates and discards every scan opened at exactly
// level, whether its subtransaction scope committed or aborted — spec
// §4.5 "entries whose open-level matches the finished level are
// discarded".
func (r *CursorRegistry) TerminateAtLevel(level Level) {
	for _, key := range r.cache.Keys() {
		if entry, ok := r.cache.Peek(key); ok && entry.level == level {
			entry.terminate()
			r.cache.Remove(key)
		}
	}
	r.observe()
}

// TerminateVariable terminates every scan referencing v.
func (r *CursorRegistry) TerminateVariable(v *Variable) {
	for _, key := range r.cache.Keys() {
		if entry, ok := r.cache.Peek(key); ok && entry.variable == v {
			entry.terminate()
			r.cache.Remove(key)
		}
	}
	r.observe()
}

// TerminatePackage terminates every scan referencing p or any variable
// inside p — spec §4.5 "removal-by-package walks the list before
// freeing the arena".
func (r *CursorRegistry) TerminatePackage(p *Package) {
	for _, key := range r.cache.Keys() {
		entry, ok := r.cache.Peek(key)
		if !ok {
			continue
		}
		if entry.pkg == p || (entry.variable != nil && entry.variable.pkg == p) {
			entry.terminate()
			r.cache.Remove(key)
		}
	}
	r.observe()
}

// SuspendAutonomous removes and returns every scan belonging to
// autonomous scope atx without terminating it, so it can be restored by
// ResumeAutonomous when the autonomous boundary exits (spec §9: "entries
// from the suspended scope are hidden but preserved").
func (r *CursorRegistry) SuspendAutonomous(atx int) []*scanEntry {
	var hidden []*scanEntry
	for _, key := range r.cache.Keys() {
		if entry, ok := r.cache.Peek(key); ok && entry.level.Atx == atx {
			hidden = append(hidden, entry)
			// Remove fires the eviction callback; detach cancel for the
			// duration so the hidden scan is not terminated.
			cancel := entry.cancel
			entry.cancel = nil
			r.cache.Remove(key)
			entry.cancel = cancel
		}
	}
	r.observe()
	return hidden
}

// ResumeAutonomous restores scans previously hidden by SuspendAutonomous.
func (r *CursorRegistry) ResumeAutonomous(hidden []*scanEntry) {
	for _, entry := range hidden {
		r.cache.Add(entry.id, entry)
	}
	r.observe()
}

// TerminateAutonomous terminates every scan opened inside autonomous
// scope atx — spec §9: "all autonomous-level entries are torn down on
// exit".
func (r *CursorRegistry) TerminateAutonomous(atx int) {
	for _, key := range r.cache.Keys() {
		if entry, ok := r.cache.Peek(key); ok && entry.level.Atx == atx {
			entry.terminate()
			r.cache.Remove(key)
		}
	}
	r.observe()
}
