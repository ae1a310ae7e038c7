// Copyright (c) 2025 BVK Chaitanya

// Package syncmap adds type safety over the standard sync.Map.
package syncmap

import "sync"

type Map[K comparable, V any] struct {
	v sync.Map
}

func (m *Map[K, V]) Load(key K) (value V, ok bool) {
	x, ok := m.v.Load(key)
	if !ok {
		var zero V
		return zero, false
	}
	return x.(V), true
}

func (m *Map[K, V]) Store(key K, value V) {
	m.v.Store(key, value)
}

func (m *Map[K, V]) Delete(key K) {
	m.v.Delete(key)
}

func (m *Map[K, V]) LoadOrStore(key K, value V) (actual V, loaded bool) {
	x, loaded := m.v.LoadOrStore(key, value)
	return x.(V), loaded
}

func (m *Map[K, V]) LoadAndDelete(key K) (value V, loaded bool) {
	x, loaded := m.v.LoadAndDelete(key)
	if !loaded {
		var zero V
		return zero, false
	}
	return x.(V), true
}

// Range can be used with the for-range statement.
func (m *Map[K, V]) Range(yield func(key K, value V) bool) {
	m.v.Range(func(key, value any) bool {
		return yield(key.(K), value.(V))
	})
}
