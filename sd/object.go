package sd

import "github.com/cespare/xxhash/v2"

// Hash returns the 64-bit key hash of a UTF-8 object key. Objects only
// store hashes, so RawGet(Hash(k)) and Get(k) are interchangeable.
func Hash(key string) uint64 {
	return xxhash.Sum64String(key)
}

// Entry is a single object property.
type Entry struct {
	Hash  uint64
	Value Value
}

// Object maps key hashes to values, the payload of an Object value.
// Properties keep their insertion order.
type Object struct {
	entries  []Entry
	index    map[uint64]int
	released bool
}

func newObject(capacity int) *Object {
	return &Object{
		entries: make([]Entry, 0, capacity),
		index:   make(map[uint64]int, capacity),
	}
}

// Len returns the number of properties.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.entries)
}

// Get returns an alias of the value stored under key, or Null.
func (o *Object) Get(key string) Value {
	return o.RawGet(Hash(key))
}

// RawGet returns an alias of the value stored under hash, or Null.
func (o *Object) RawGet(hash uint64) Value {
	if o == nil {
		return Value{}
	}
	if i, ok := o.index[hash]; ok {
		return o.entries[i].Value
	}
	return Value{}
}

// Set moves v under key. A value previously stored under the same key is freed.
func (o *Object) Set(key string, v *Value) {
	o.RawSet(Hash(key), v)
}

// RawSet moves v under hash. A value previously stored under the same
// hash is freed.
func (o *Object) RawSet(hash uint64, v *Value) {
	if o.index == nil {
		o.index = make(map[uint64]int)
	}
	if i, ok := o.index[hash]; ok {
		old := &o.entries[i].Value
		if old.ref != nil && old.ref == v.ref {
			v.Reset()
			return
		}
		old.Free()
		*old = v.Take()
		return
	}
	o.index[hash] = len(o.entries)
	o.entries = append(o.entries, Entry{Hash: hash, Value: v.Take()})
}

// List copies aliases of the properties into dst and returns the number copied.
func (o *Object) List(dst []Entry) int {
	if o == nil {
		return 0
	}
	return copy(dst, o.entries)
}

// Released implements Payload.
func (o *Object) Released() bool { return o.released }

func (o *Object) release() {
	if o.released {
		return
	}
	o.released = true
	for i := range o.entries {
		o.entries[i].Value.Free()
	}
	o.entries, o.index = nil, nil
	if onRelease != nil {
		onRelease(o)
	}
}
