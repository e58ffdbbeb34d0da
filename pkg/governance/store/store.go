/*
Copyright 2026 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package store holds the business-keyed rule table of one rule category.
//
// The table is published as an immutable map behind an atomic pointer. Readers load the
// pointer and never lock; the single writer copies the current map, mutates the copy and
// swaps it in, so a reader observes either the state before an update or the state after
// it, never a mix.
package store

import (
	"maps"
	"slices"
	"sync"
	"sync/atomic"
)

// Snapshot is a read-only view of the store at one point in time.
type Snapshot[R any] struct {
	rules map[string]R
}

// Get returns the rule stored under key.
func (s Snapshot[R]) Get(key string) (R, bool) {
	r, ok := s.rules[key]
	return r, ok
}

// Len returns the number of rules.
func (s Snapshot[R]) Len() int {
	return len(s.rules)
}

// Keys returns the business keys, sorted.
func (s Snapshot[R]) Keys() []string {
	return slices.Sorted(maps.Keys(s.rules))
}

// Range calls f for every rule until f returns false.
func (s Snapshot[R]) Range(f func(key string, rule R) bool) {
	for k, r := range s.rules {
		if !f(k, r) {
			return
		}
	}
}

// ToMap returns a copy of the snapshot content.
func (s Snapshot[R]) ToMap() map[string]R {
	return maps.Clone(s.rules)
}

// Store maps business keys to rules.
type Store[R any] struct {
	// writeMu serializes writers; readers only touch current.
	writeMu sync.Mutex
	current atomic.Pointer[map[string]R]
}

// New returns an empty Store.
func New[R any]() *Store[R] {
	s := &Store[R]{}
	empty := map[string]R{}
	s.current.Store(&empty)
	return s
}

// Snapshot returns the currently published rules.
func (s *Store[R]) Snapshot() Snapshot[R] {
	return Snapshot[R]{rules: *s.current.Load()}
}

// Get returns the rule stored under key in the currently published snapshot.
func (s *Store[R]) Get(key string) (R, bool) {
	return s.Snapshot().Get(key)
}

// Put stores rule under key.
func (s *Store[R]) Put(key string, rule R) {
	s.Update(func(rules map[string]R) bool {
		rules[key] = rule
		return true
	})
}

// Delete removes key. It reports whether the key was present.
func (s *Store[R]) Delete(key string) bool {
	var existed bool
	s.Update(func(rules map[string]R) bool {
		_, existed = rules[key]
		delete(rules, key)
		return existed
	})
	return existed
}

// Update applies mutate to a private copy of the current rules and publishes the copy
// if mutate reports a change. All mutations done inside one call become visible at once.
func (s *Store[R]) Update(mutate func(rules map[string]R) bool) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	next := maps.Clone(*s.current.Load())
	if next == nil {
		next = map[string]R{}
	}
	if mutate(next) {
		s.current.Store(&next)
	}
}
