package sd

import (
	"errors"
	"fmt"
)

// ErrIndexOutOfRange is returned by Array.Insert and Array.Remove.
var ErrIndexOutOfRange = errors.New("sd: index out of range")

// Array is an ordered sequence of values, the payload of an Array value.
type Array struct {
	items    []Value
	released bool
}

// Len returns the number of items.
func (a *Array) Len() int {
	if a == nil {
		return 0
	}
	return len(a.items)
}

// Push moves v to the end of the array.
func (a *Array) Push(v *Value) {
	a.items = append(a.items, v.Take())
}

// Insert moves v to position i, shifting later items right. It fails for
// i > Len() and leaves v untouched.
func (a *Array) Insert(v *Value, i int) error {
	if i < 0 || i > len(a.items) {
		return fmt.Errorf("%w: insert at %d, len %d", ErrIndexOutOfRange, i, len(a.items))
	}
	a.items = append(a.items, Value{})
	copy(a.items[i+1:], a.items[i:])
	a.items[i] = v.Take()
	return nil
}

// Remove frees the item at position i and removes it, shifting later
// items left. Out of range indices fail and leave the array unchanged.
func (a *Array) Remove(i int) error {
	if i < 0 || i >= len(a.items) {
		return fmt.Errorf("%w: remove at %d, len %d", ErrIndexOutOfRange, i, len(a.items))
	}
	a.items[i].Free()
	copy(a.items[i:], a.items[i+1:])
	a.items[len(a.items)-1] = Value{}
	a.items = a.items[:len(a.items)-1]
	return nil
}

// Get returns an alias of the item at position i, or Null when out of range.
func (a *Array) Get(i int) Value {
	if i < 0 || i >= a.Len() {
		return Value{}
	}
	return a.items[i]
}

// List copies aliases of the items into dst and returns the number copied.
func (a *Array) List(dst []Value) int {
	if a == nil {
		return 0
	}
	return copy(dst, a.items)
}

// Released implements Payload.
func (a *Array) Released() bool { return a.released }

func (a *Array) release() {
	if a.released {
		return
	}
	a.released = true
	for i := range a.items {
		a.items[i].Free()
	}
	a.items = nil
	if onRelease != nil {
		onRelease(a)
	}
}
