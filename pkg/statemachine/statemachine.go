// Package statemachine provides a small thread-safe state machine built on
// state functions: each state is a function that inspects the entity and
// returns the next state function, or nil to terminate.
package statemachine

import (
	"reflect"
	"sync"
)

// StateFn is a state function over an entity of type T.
type StateFn[T any] func(*T) StateFn[T]

// Machine drives an entity through state functions.
type Machine[T any] struct {
	entity  *T
	stateFn StateFn[T]
	mu      sync.RWMutex
}

// New creates a machine for entity starting in initial.
func New[T any](entity *T, initial StateFn[T]) *Machine[T] {
	return &Machine[T]{entity: entity, stateFn: initial}
}

// Dispatch sets the current state to stateFn, executes it once, and stores
// the state it returns.
func (m *Machine[T]) Dispatch(stateFn StateFn[T]) {
	m.mu.Lock()
	m.stateFn = stateFn
	m.mu.Unlock()

	if stateFn == nil {
		return
	}
	next := stateFn(m.entity)

	m.mu.Lock()
	m.stateFn = next
	m.mu.Unlock()
}

// Step executes the current state function once and transitions to whatever
// it returns. It is a no-op on a terminated machine.
func (m *Machine[T]) Step() {
	m.mu.RLock()
	current := m.stateFn
	m.mu.RUnlock()

	if current == nil {
		return
	}
	next := current(m.entity)

	m.mu.Lock()
	m.stateFn = next
	m.mu.Unlock()
}

// Current returns the current state function, or nil when terminated.
func (m *Machine[T]) Current() StateFn[T] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stateFn
}

// Is reports whether the machine currently sits in stateFn. Go functions are
// not comparable, so identity is checked through their code pointers.
func (m *Machine[T]) Is(stateFn StateFn[T]) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.stateFn == nil || stateFn == nil {
		return m.stateFn == nil && stateFn == nil
	}
	return reflect.ValueOf(m.stateFn).Pointer() == reflect.ValueOf(stateFn).Pointer()
}
