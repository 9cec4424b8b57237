// Package arena provides a generation-checked slot registry.
//
// Values are addressed by Handle rather than by pointer. A handle stays
// valid until its value is removed; after that every lookup through the
// old handle fails, even if the slot has been reused for a new value.
package arena

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Handle addresses one value in an Arena. The zero Handle is never valid.
type Handle struct {
	index      uint32
	generation uint32
}

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool {
	return h.generation == 0
}

// String formats the handle as "index.generation".
func (h Handle) String() string {
	return fmt.Sprintf("%d.%d", h.index, h.generation)
}

// ParseHandle parses the output of Handle.String. Only that exact form is
// accepted: no signs, padding or trailing text.
func ParseHandle(s string) (Handle, error) {
	index, generation, ok := strings.Cut(s, ".")
	if !ok {
		return Handle{}, fmt.Errorf("invalid handle %q: missing generation", s)
	}
	i, err := strconv.ParseUint(index, 10, 32)
	if err != nil {
		return Handle{}, fmt.Errorf("invalid handle %q: %w", s, err)
	}
	g, err := strconv.ParseUint(generation, 10, 32)
	if err != nil {
		return Handle{}, fmt.Errorf("invalid handle %q: %w", s, err)
	}

	h := Handle{index: uint32(i), generation: uint32(g)}
	if h.generation == 0 {
		return Handle{}, fmt.Errorf("invalid handle %q: zero generation", s)
	}
	if h.String() != s {
		return Handle{}, fmt.Errorf("invalid handle %q: %w", s, errNotCanonical)
	}
	return h, nil
}

var errNotCanonical = errors.New("not in canonical form")

type slot[T any] struct {
	value      T
	generation uint32
	occupied   bool
}

// Arena stores values in reusable slots.
type Arena[T any] struct {
	mu    sync.RWMutex
	slots []slot[T]
	free  []uint32
	count int
}

// New creates an empty arena.
func New[T any]() *Arena[T] {
	return &Arena[T]{}
}

// Insert stores v and returns its handle.
func (a *Arena[T]) Insert(v T) Handle {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.count++
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		s := &a.slots[idx]
		s.value = v
		s.occupied = true
		return Handle{index: idx, generation: s.generation}
	}

	a.slots = append(a.slots, slot[T]{value: v, generation: 1, occupied: true})
	return Handle{index: uint32(len(a.slots) - 1), generation: 1}
}

// Get returns the value for h if h is still live.
func (a *Arena[T]) Get(h Handle) (T, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var zero T
	s, ok := a.lookup(h)
	if !ok {
		return zero, false
	}
	return s.value, true
}

// Remove deletes the value for h and invalidates h.
func (a *Arena[T]) Remove(h Handle) (T, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var zero T
	s, ok := a.lookup(h)
	if !ok {
		return zero, false
	}

	v := s.value
	s.value = zero
	s.occupied = false
	s.generation++
	if s.generation == 0 {
		// Generation wrapped; retire the slot rather than hand out a zero handle.
		a.count--
		return v, true
	}
	a.free = append(a.free, h.index)
	a.count--
	return v, true
}

// Len returns the number of live values.
func (a *Arena[T]) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.count
}

// Each calls fn for every live value until fn returns false.
// fn must not modify the arena.
func (a *Arena[T]) Each(fn func(Handle, T) bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for i := range a.slots {
		s := &a.slots[i]
		if !s.occupied {
			continue
		}
		if !fn(Handle{index: uint32(i), generation: s.generation}, s.value) {
			return
		}
	}
}

// lookup must be called with mu held.
func (a *Arena[T]) lookup(h Handle) (*slot[T], bool) {
	if h.generation == 0 || int(h.index) >= len(a.slots) {
		return nil, false
	}
	s := &a.slots[h.index]
	if !s.occupied || s.generation != h.generation {
		return nil, false
	}
	return s, true
}
