package render

import "github.com/cockroachdb/errors"

// ErrInvalidHandle is returned when a handle does not reference a live
// resource, either because it is zero or because the resource was destroyed
// and its slot generation advanced.
var ErrInvalidHandle = errors.New("render: handle does not reference a live resource")

// arena is a generation-checked slot store. Handles into it carry the slot
// index plus the generation the slot had at insertion; once a slot is
// released its generation advances, so stale handles fail lookup instead of
// aliasing a recycled resource. This replaces shared-pointer ownership of
// GPU resources: destruction order relative to in-flight work stays
// explicit, and lifetime bugs surface as invalid-handle errors.
type arena[T any] struct {
	slots []arenaSlot[T]
	free  []uint32
	live  int
}

type arenaSlot[T any] struct {
	generation uint32
	value      *T
}

// insert stores value and returns its slot index and generation.
// Generations start at 1 so the zero handle never matches a live slot.
func (a *arena[T]) insert(value *T) (index, generation uint32) {
	if n := len(a.free); n > 0 {
		index = a.free[n-1]
		a.free = a.free[:n-1]
		a.slots[index].value = value
		a.live++
		return index, a.slots[index].generation
	}

	a.slots = append(a.slots, arenaSlot[T]{generation: 1, value: value})
	a.live++
	return uint32(len(a.slots) - 1), 1
}

func (a *arena[T]) get(index, generation uint32) (*T, bool) {
	if int(index) >= len(a.slots) {
		return nil, false
	}
	slot := a.slots[index]
	if slot.value == nil || slot.generation != generation {
		return nil, false
	}
	return slot.value, true
}

// remove releases the slot and returns its value. The slot's generation
// advances immediately so the removed handle and any copies of it go stale.
func (a *arena[T]) remove(index, generation uint32) (*T, bool) {
	value, ok := a.get(index, generation)
	if !ok {
		return nil, false
	}

	a.slots[index].value = nil
	a.slots[index].generation++
	a.free = append(a.free, index)
	a.live--
	return value, true
}

// drain removes every live value, invoking fn on each. Used on teardown.
func (a *arena[T]) drain(fn func(*T)) {
	for i := range a.slots {
		if a.slots[i].value == nil {
			continue
		}
		value := a.slots[i].value
		a.slots[i].value = nil
		a.slots[i].generation++
		a.free = append(a.free, uint32(i))
		a.live--
		fn(value)
	}
}

func (a *arena[T]) len() int {
	return a.live
}

// BufferHandle is a generation-checked reference to a Buffer owned by a
// DeviceContext. The zero handle is never valid.
type BufferHandle struct {
	index      uint32
	generation uint32
}

// IsZero reports whether the handle is the zero handle.
func (h BufferHandle) IsZero() bool {
	return h.generation == 0
}

// TextureHandle is a generation-checked reference to a Texture owned by a
// DeviceContext. The zero handle is never valid.
type TextureHandle struct {
	index      uint32
	generation uint32
}

// IsZero reports whether the handle is the zero handle.
func (h TextureHandle) IsZero() bool {
	return h.generation == 0
}
