// Package handle maps live objects to opaque 64-bit handles that can be
// handed to foreign callers. Lookups are checked: a released or forged
// handle is reported instead of resolving to the wrong object.
package handle

// Handle is an opaque object reference. The low 32 bits hold the slot
// index plus one, the high 32 bits the slot generation. The zero Handle is
// never issued.
type Handle uint64

// Null is the null handle.
const Null Handle = 0

func makeHandle(idx int, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(idx+1))
}

func (h Handle) index() int   { return int(uint32(h)) - 1 }
func (h Handle) gen() uint32  { return uint32(h >> 32) }
func (h Handle) IsNull() bool { return h == Null }

type slot[T comparable] struct {
	gen  uint32
	live bool
	val  T
}

// Table is a generational slot map. It also keeps the reverse mapping so
// that inserting an already registered value returns its existing handle.
// Tables are not safe for concurrent use.
type Table[T comparable] struct {
	slots []slot[T]
	free  []int
	refs  map[T]Handle
}

// Insert registers v and returns its handle. Registering a value twice
// returns the same handle.
func (t *Table[T]) Insert(v T) Handle {
	if h, ok := t.refs[v]; ok {
		return h
	}
	if t.refs == nil {
		t.refs = make(map[T]Handle)
	}

	var idx int
	if n := len(t.free); n != 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		idx = len(t.slots)
		t.slots = append(t.slots, slot[T]{})
	}

	s := &t.slots[idx]
	s.live, s.val = true, v
	h := makeHandle(idx, s.gen)
	t.refs[v] = h
	return h
}

// Get resolves h.
func (t *Table[T]) Get(h Handle) (T, bool) {
	s := t.slot(h)
	if s == nil {
		var zero T
		return zero, false
	}
	return s.val, true
}

// Lookup returns the handle registered for v.
func (t *Table[T]) Lookup(v T) (Handle, bool) {
	h, ok := t.refs[v]
	return h, ok
}

// Release unregisters h and returns the value it referenced. The slot is
// reused with a new generation, so h and its copies stop resolving.
func (t *Table[T]) Release(h Handle) (T, bool) {
	var zero T

	s := t.slot(h)
	if s == nil {
		return zero, false
	}

	v := s.val
	delete(t.refs, v)
	s.live, s.val = false, zero
	s.gen++
	t.free = append(t.free, h.index())
	return v, true
}

// Len returns the number of live handles.
func (t *Table[T]) Len() int {
	return len(t.refs)
}

func (t *Table[T]) slot(h Handle) *slot[T] {
	idx := h.index()
	if idx < 0 || idx >= len(t.slots) {
		return nil
	}
	if s := &t.slots[idx]; s.live && s.gen == h.gen() {
		return s
	}
	return nil
}
