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

// Package notify fans rule changes out to subscribers.
package notify

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"sigs.k8s.io/traffic-governance/pkg/governance/metrics"
	"sigs.k8s.io/traffic-governance/pkg/governance/rules"
	"sigs.k8s.io/traffic-governance/pkg/governance/store"
	logutil "sigs.k8s.io/traffic-governance/pkg/governance/util/logging"
)

// Listener is notified after the rules of a category changed.
type Listener[R any] interface {
	OnRulesChanged(ctx context.Context, category rules.Category, snapshot store.Snapshot[R]) error
}

// ListenerFunc adapts a function to a Listener.
type ListenerFunc[R any] func(ctx context.Context, category rules.Category, snapshot store.Snapshot[R]) error

func (f ListenerFunc[R]) OnRulesChanged(ctx context.Context, category rules.Category, snapshot store.Snapshot[R]) error {
	return f(ctx, category, snapshot)
}

// Bus is an ordered set of listeners. The zero value is ready to use.
type Bus[R any] struct {
	mu        sync.RWMutex
	listeners []Listener[R]
}

// Subscribe appends l. Listeners are notified in subscription order.
func (b *Bus[R]) Subscribe(l Listener[R]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// Len returns the number of subscribed listeners.
func (b *Bus[R]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Notify calls every listener synchronously. A listener that fails or panics is logged and
// skipped; the remaining listeners are still called and nothing is returned to the caller.
// It returns the number of listeners that failed.
func (b *Bus[R]) Notify(ctx context.Context, category rules.Category, snapshot store.Snapshot[R]) int {
	b.mu.RLock()
	listeners := make([]Listener[R], len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.RUnlock()

	logger := log.FromContext(ctx).WithValues("category", category)
	failed := 0
	for i, l := range listeners {
		if err := safeNotify(ctx, l, category, snapshot); err != nil {
			failed++
			metrics.RecordListenerFailure(string(category))
			logger.Error(err, "Rule change listener failed", "listener", i)
			continue
		}
		logger.V(logutil.TRACE).Info("Rule change listener notified", "listener", i)
	}
	return failed
}

func safeNotify[R any](ctx context.Context, l Listener[R], category rules.Category, snapshot store.Snapshot[R]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panicked: %v\n%s", r, debug.Stack())
		}
	}()
	return l.OnRulesChanged(ctx, category, snapshot)
}
