// Package poolmem implements the accounted heap (spec §3, §4.2): the
// Pool owning strings, objects, arrays and function references, with a
// fixed byte ceiling and on-demand string reclamation.
//
// Grounded on the teacher's cache.go: a shared, explicitly accounted,
// reusable resource reachable from multiple call sites, with a single
// release/reclaim entry point rather than per-item reference counting.
package poolmem

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/dialscript/dialvm/api"
)

// Size estimates per spec §4.2. Budgetary, not precise; tuned to match
// the spec's own numbers exactly so ceiling behavior is deterministic
// and reproducible across implementations.
const (
	stringBaseSize = 50
	stringPerByte  = 2
	objectSize     = 100
	arrayBaseSize  = 50
	arrayPerElem   = 24
	functionSize   = 32
)

// Pool owns the four heap collections. Handle 0 is reserved in every
// collection so the zero Value of api.Handle can mean "no handle".
type Pool struct {
	heapSize  uint32
	allocated uint32

	strings     []string // index 0 unused
	internIndex map[string]api.Handle
	internLRU   *lru.Cache // non-nil only when WithInternLimit is set

	objects []*Object // index 0 unused
	arrays  []*Array  // index 0 unused
	funcs   []api.FunctionRef
}

// Option configures a Pool at construction time.
type Option func(*Pool)

// WithInternLimit caps the *number* of distinct interned strings
// independent of the byte-accounted heap ceiling (SPEC_FULL.md §2: a
// bounded LRU intern table for MCU targets where the intern index
// itself must have a hard cap). When the cap is exceeded, the
// least-recently-used content (interned or looked up) is evicted from
// the index only: its
// Pool entry and Handle remain valid, but a future AllocString for the
// same content allocates a fresh entry instead of reusing the old
// Handle.
func WithInternLimit(n int) Option {
	return func(p *Pool) {
		if n <= 0 {
			return
		}
		c, err := lru.New(n)
		if err == nil {
			p.internLRU = c
		}
	}
}

// New constructs a Pool with a fixed heap_size ceiling (spec §3
// Module.metadata.heap_size).
func New(heapSize uint32, opts ...Option) *Pool {
	p := &Pool{
		heapSize:    heapSize,
		strings:     make([]string, 1),
		internIndex: map[string]api.Handle{},
		objects:     make([]*Object, 1),
		arrays:      make([]*Array, 1),
		funcs:       make([]api.FunctionRef, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Allocated returns the current accounted byte count.
func (p *Pool) Allocated() uint32 { return p.allocated }

// HeapSize returns the ceiling.
func (p *Pool) HeapSize() uint32 { return p.heapSize }

func (p *Pool) fits(estimate uint32) bool {
	return p.allocated+estimate <= p.heapSize
}

func outOfMemory() error {
	return api.NewError(api.ErrorKindOutOfMemory, "pool ceiling exceeded")
}

// internLookup resolves interned content to an existing Handle, using
// the LRU index when WithInternLimit is set, the plain map otherwise.
func (p *Pool) internLookup(s string) (api.Handle, bool) {
	if p.internLRU != nil {
		if v, ok := p.internLRU.Get(s); ok {
			return v.(api.Handle), true
		}
		return 0, false
	}
	h, ok := p.internIndex[s]
	return h, ok
}

func (p *Pool) internStore(s string, h api.Handle) {
	if p.internLRU != nil {
		p.internLRU.Add(s, h)
		return
	}
	p.internIndex[s] = h
}

func (p *Pool) internForget(s string) {
	if p.internLRU != nil {
		p.internLRU.Remove(s)
		return
	}
	delete(p.internIndex, s)
}

// AllocString interns s, returning the existing Handle if content was
// already interned (spec §4.2: interning is mandatory for constants,
// recommended elsewhere; dialVM always interns, the simplest policy
// that satisfies both). Returns ErrorKindOutOfMemory without mutating
// state if the ceiling would be exceeded; callers (vm) are expected to
// run ReclaimStrings and retry exactly once per spec §4.2.
func (p *Pool) AllocString(s string) (api.Handle, error) {
	if h, ok := p.internLookup(s); ok {
		return h, nil
	}
	estimate := uint32(stringBaseSize + stringPerByte*len(s))
	if !p.fits(estimate) {
		return 0, outOfMemory()
	}
	p.strings = append(p.strings, s)
	h := api.Handle(len(p.strings) - 1)
	p.internStore(s, h)
	p.allocated += estimate
	return h, nil
}

// String resolves a String handle to its content. Returns "" for a
// reclaimed or invalid handle.
func (p *Pool) String(h api.Handle) string {
	if int(h) <= 0 || int(h) >= len(p.strings) {
		return ""
	}
	return p.strings[h]
}

// AllocObject allocates a new Object with the given class name.
func (p *Pool) AllocObject(className string) (api.Handle, *Object, error) {
	if !p.fits(objectSize) {
		return 0, nil, outOfMemory()
	}
	obj := newObject(className)
	p.objects = append(p.objects, obj)
	p.allocated += objectSize
	return api.Handle(len(p.objects) - 1), obj, nil
}

// Object resolves an Object handle, ok=false if invalid.
func (p *Pool) Object(h api.Handle) (*Object, bool) {
	if int(h) <= 0 || int(h) >= len(p.objects) || p.objects[h] == nil {
		return nil, false
	}
	return p.objects[h], true
}

// AllocArray allocates a new Array of the given size, elements Null.
func (p *Pool) AllocArray(size int) (api.Handle, *Array, error) {
	estimate := uint32(arrayBaseSize + arrayPerElem*size)
	if !p.fits(estimate) {
		return 0, nil, outOfMemory()
	}
	arr := newArray(size)
	p.arrays = append(p.arrays, arr)
	p.allocated += estimate
	return api.Handle(len(p.arrays) - 1), arr, nil
}

// Array resolves an Array handle, ok=false if invalid.
func (p *Pool) Array(h api.Handle) (*Array, bool) {
	if int(h) <= 0 || int(h) >= len(p.arrays) || p.arrays[h] == nil {
		return nil, false
	}
	return p.arrays[h], true
}

// AllocFunction records a function reference for accounting purposes
// (spec §4.2 Function = 32). Function Values are self-describing
// (api.FunctionRef carries function_index/param_count directly) so
// resolving a Handle back to a FunctionRef is only needed by
// diagnostics; the VM never needs a Pool round-trip to call through one
// (see DESIGN.md).
func (p *Pool) AllocFunction(ref api.FunctionRef) (api.Handle, error) {
	if !p.fits(functionSize) {
		return 0, outOfMemory()
	}
	p.funcs = append(p.funcs, ref)
	p.allocated += functionSize
	return api.Handle(len(p.funcs) - 1), nil
}

// Function resolves a Function handle, ok=false if invalid.
func (p *Pool) Function(h api.Handle) (api.FunctionRef, bool) {
	if int(h) <= 0 || int(h) >= len(p.funcs) {
		return api.FunctionRef{}, false
	}
	return p.funcs[h], true
}

// ReclaimStrings drops every interned string whose Handle is not in
// reachable, per spec §4.2 roots = "operand stack, all call-frame
// locals, globals, and exception state". Returns the number of entries
// freed. Safe to call with reclamation disabled between calls (spec
// §8): calling it twice with the same reachable set is idempotent.
func (p *Pool) ReclaimStrings(reachable map[api.Handle]bool) int {
	freed := 0
	for h := 1; h < len(p.strings); h++ {
		handle := api.Handle(h)
		s := p.strings[h]
		if s == "" {
			continue // already reclaimed
		}
		if reachable[handle] {
			continue
		}
		estimate := uint32(stringBaseSize + stringPerByte*len(s))
		if estimate <= p.allocated {
			p.allocated -= estimate
		} else {
			p.allocated = 0
		}
		p.internForget(s)
		p.strings[h] = ""
		freed++
	}
	return freed
}
