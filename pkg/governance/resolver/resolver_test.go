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

package resolver

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"sigs.k8s.io/traffic-governance/pkg/governance/identity"
	"sigs.k8s.io/traffic-governance/pkg/governance/notify"
	"sigs.k8s.io/traffic-governance/pkg/governance/rules"
	"sigs.k8s.io/traffic-governance/pkg/governance/store"
	logutil "sigs.k8s.io/traffic-governance/pkg/governance/util/logging"
)

func newRetryResolver(t *testing.T, opts ...Option) *Resolver[*rules.RetryRule] {
	t.Helper()
	id, err := identity.New("svcA", "v1", nil)
	require.NoError(t, err)
	return New(rules.CategoryRetry, rules.NewRetryCodec(), id, opts...)
}

func storedMaxAttempts(snap store.Snapshot[*rules.RetryRule]) map[string]int {
	got := map[string]int{}
	snap.Range(func(k string, r *rules.RetryRule) bool {
		got[k] = r.MaxAttempts
		return true
	})
	return got
}

func TestApplyBatchScenario(t *testing.T) {
	ctx := logutil.NewTestLoggerIntoContext(context.Background())
	r := newRetryResolver(t)

	r.ApplyBatch(ctx, map[string]string{"retry.order.create": "services: svcA\nmaxAttempts: 3"})

	snap := r.Rules()
	require.Equal(t, 1, snap.Len())
	rule, ok := snap.Get("order.create")
	require.True(t, ok)
	assert.Equal(t, "order.create", rule.Name)
	assert.Equal(t, 3, rule.MaxAttempts)

	got, ok := r.ApplyOne(ctx, "order.create", "", true, false)
	assert.False(t, ok)
	assert.Nil(t, got)
	_, ok = r.Rule("order.create")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Rules().Len())
}

func TestApplyBatch(t *testing.T) {
	tests := []struct {
		name     string
		opts     []Option
		initial  map[string]string
		batch    map[string]string
		expected map[string]int
	}{
		{
			name: "keys without the category prefix are ignored",
			batch: map[string]string{
				"flow.order.create":   "limitForPeriod: 10",
				"retryorder.create":   "maxAttempts: 2",
				"retry.":              "maxAttempts: 2",
				"retry.order.refund":  "maxAttempts: 4",
				"circuitbreaker.same": "failureRateThreshold: 50",
			},
			expected: map[string]int{"order.refund": 4},
		},
		{
			name: "a malformed key does not block the others",
			batch: map[string]string{
				"retry.bad":     "maxAttempts: [",
				"retry.missing": "waitDuration: 10ms",
				"retry.invalid": "maxAttempts: 0",
				"retry.good":    "maxAttempts: 2",
			},
			expected: map[string]int{"good": 2},
		},
		{
			name: "out of scope rules are dropped",
			batch: map[string]string{
				"retry.other":        "services: svcB\nmaxAttempts: 2",
				"retry.otherVersion": "services: svcA:v2\nmaxAttempts: 2",
				"retry.exact":        "services: svcA:v1\nmaxAttempts: 3",
				"retry.anyOf":        "services: svcB, svcA:v1\nmaxAttempts: 4",
				"retry.everyone":     "maxAttempts: 5",
			},
			expected: map[string]int{"exact": 3, "anyOf": 4, "everyone": 5},
		},
		{
			name:     "a key that turns invalid drops the previous rule",
			initial:  map[string]string{"retry.order.create": "maxAttempts: 3"},
			batch:    map[string]string{"retry.order.create": "maxAttempts: -1"},
			expected: map[string]int{},
		},
		{
			name:     "partial sync keeps keys absent from the batch",
			initial:  map[string]string{"retry.a": "maxAttempts: 2", "retry.b": "maxAttempts: 3"},
			batch:    map[string]string{"retry.b": "maxAttempts: 5"},
			expected: map[string]int{"a": 2, "b": 5},
		},
		{
			name:     "full sync removes keys absent from the batch",
			opts:     []Option{WithFullSync()},
			initial:  map[string]string{"retry.a": "maxAttempts: 2", "retry.b": "maxAttempts: 3"},
			batch:    map[string]string{"retry.b": "maxAttempts: 5"},
			expected: map[string]int{"b": 5},
		},
		{
			name:     "custom prefix",
			opts:     []Option{WithPrefix("servicecomb.retry.")},
			batch:    map[string]string{"servicecomb.retry.pay": "maxAttempts: 2", "retry.pay": "maxAttempts: 9"},
			expected: map[string]int{"pay": 2},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ctx := logutil.NewTestLoggerIntoContext(context.Background())
			r := newRetryResolver(t, test.opts...)
			if test.initial != nil {
				r.ApplyBatch(ctx, test.initial)
			}
			r.ApplyBatch(ctx, test.batch)
			if diff := cmp.Diff(test.expected, storedMaxAttempts(r.Rules())); diff != "" {
				t.Errorf("Unexpected output (-want +got): %v", diff)
			}
		})
	}
}

func TestApplyBatchIdempotent(t *testing.T) {
	ctx := logutil.NewTestLoggerIntoContext(context.Background())
	batch := map[string]string{
		"retry.a": "maxAttempts: 2\nwaitDuration: 20ms",
		"retry.b": "services: svcB\nmaxAttempts: 3",
		"retry.c": "garbage: [",
	}
	once := newRetryResolver(t)
	once.ApplyBatch(ctx, batch)
	twice := newRetryResolver(t)
	twice.ApplyBatch(ctx, batch)
	twice.ApplyBatch(ctx, batch)

	if diff := cmp.Diff(once.Rules().ToMap(), twice.Rules().ToMap()); diff != "" {
		t.Errorf("Unexpected output (-want +got): %v", diff)
	}
}

func TestApplyOne(t *testing.T) {
	tests := []struct {
		name        string
		initial     map[string]string
		key         string
		raw         string
		isOverride  bool
		isForDelete bool
		wantOK      bool
		expected    map[string]int
	}{
		{
			name:     "empty business key is a no-op",
			initial:  map[string]string{"retry.a": "maxAttempts: 2"},
			key:      "",
			raw:      "maxAttempts: 3",
			expected: map[string]int{"a": 2},
		},
		{
			name:        "delete removes an existing rule",
			initial:     map[string]string{"retry.a": "maxAttempts: 2"},
			key:         "a",
			raw:         "maxAttempts: 3",
			isForDelete: true,
			expected:    map[string]int{},
		},
		{
			name:        "delete of an absent key",
			key:         "a",
			isForDelete: true,
			expected:    map[string]int{},
		},
		{
			name:       "blank override removes",
			initial:    map[string]string{"retry.a": "maxAttempts: 2"},
			key:        "a",
			raw:        "  ",
			isOverride: true,
			expected:   map[string]int{},
		},
		{
			name:       "override replaces",
			initial:    map[string]string{"retry.a": "maxAttempts: 2"},
			key:        "a",
			raw:        "maxAttempts: 6",
			isOverride: true,
			wantOK:     true,
			expected:   map[string]int{"a": 6},
		},
		{
			// Single key and batch updates store a resolved rule the same way.
			name:     "non override updates are stored too",
			key:      "a",
			raw:      "maxAttempts: 4",
			wantOK:   true,
			expected: map[string]int{"a": 4},
		},
		{
			name:       "malformed update drops the stale rule",
			initial:    map[string]string{"retry.a": "maxAttempts: 2"},
			key:        "a",
			raw:        "maxAttempts: {",
			isOverride: true,
			expected:   map[string]int{},
		},
		{
			name:       "out of scope update drops the stale rule",
			initial:    map[string]string{"retry.a": "maxAttempts: 2"},
			key:        "a",
			raw:        "services: svcZ\nmaxAttempts: 2",
			isOverride: true,
			expected:   map[string]int{},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ctx := logutil.NewTestLoggerIntoContext(context.Background())
			r := newRetryResolver(t)
			if test.initial != nil {
				r.ApplyBatch(ctx, test.initial)
			}
			rule, ok := r.ApplyOne(ctx, test.key, test.raw, test.isOverride, test.isForDelete)
			assert.Equal(t, test.wantOK, ok)
			if ok {
				assert.Equal(t, test.key, rule.Name)
			}
			if diff := cmp.Diff(test.expected, storedMaxAttempts(r.Rules())); diff != "" {
				t.Errorf("Unexpected output (-want +got): %v", diff)
			}
		})
	}
}

func TestApplyOneFieldsRoundTrip(t *testing.T) {
	ctx := logutil.NewTestLoggerIntoContext(context.Background())
	r := newRetryResolver(t)
	raw := `name: author-name
services: svcA:v1
maxAttempts: 4
retryStrategy: RandomBackoff
initialInterval: 50ms
multiplier: 1.5
randomizationFactor: 0.2
waitDuration: 30ms
retryOnResponseStatus: [502, 503]
retryOnSame: true
`
	_, ok := r.ApplyOne(ctx, "pay.submit", raw, true, false)
	require.True(t, ok)

	got, ok := r.Rules().Get("pay.submit")
	require.True(t, ok)
	want := &rules.RetryRule{
		Base:                  rules.Base{Name: "pay.submit", Services: "svcA:v1"},
		MaxAttempts:           4,
		WaitDuration:          metav1.Duration{Duration: 30 * time.Millisecond},
		RetryStrategy:         rules.RandomBackoff,
		InitialInterval:       metav1.Duration{Duration: 50 * time.Millisecond},
		Multiplier:            1.5,
		RandomizationFactor:   0.2,
		MaxInterval:           metav1.Duration{Duration: rules.DefaultRetryMaxInterval},
		RetryOnResponseStatus: []int{502, 503},
		RetryOnSame:           true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Unexpected output (-want +got): %v", diff)
	}
}

func TestListenersNotified(t *testing.T) {
	ctx := logutil.NewTestLoggerIntoContext(context.Background())
	r := newRetryResolver(t)

	var seen []int
	r.RegisterListener(notify.ListenerFunc[*rules.RetryRule](func(_ context.Context, category rules.Category, snap store.Snapshot[*rules.RetryRule]) error {
		assert.Equal(t, rules.CategoryRetry, category)
		seen = append(seen, snap.Len())
		return fmt.Errorf("listener failure")
	}))
	var after []int
	r.RegisterListener(notify.ListenerFunc[*rules.RetryRule](func(_ context.Context, _ rules.Category, snap store.Snapshot[*rules.RetryRule]) error {
		after = append(after, snap.Len())
		return nil
	}))

	r.ApplyBatch(ctx, map[string]string{"retry.a": "maxAttempts: 2", "retry.b": "maxAttempts: 3"})
	r.ApplyOne(ctx, "a", "", false, true)
	// Deleting an absent key changes nothing and notifies nobody.
	r.ApplyOne(ctx, "a", "", false, true)

	assert.Equal(t, []int{2, 1}, seen)
	assert.Equal(t, []int{2, 1}, after)
	assert.Equal(t, 1, r.Rules().Len())
}

func TestConcurrentReadersDuringUpdates(t *testing.T) {
	ctx := logutil.NewTestLoggerIntoContext(context.Background())
	r := newRetryResolver(t, WithFullSync())

	batches := []map[string]string{
		{"retry.a": "maxAttempts: 2", "retry.b": "maxAttempts: 2"},
		{"retry.a": "maxAttempts: 3", "retry.b": "maxAttempts: 3"},
	}
	done := make(chan struct{})
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				got := storedMaxAttempts(r.Rules())
				if len(got) == 2 && got["a"] != got["b"] {
					t.Errorf("observed a partially applied batch: %v", got)
					return
				}
			}
		}()
	}
	for i := range 200 {
		r.ApplyBatch(ctx, batches[i%2])
	}
	close(done)
	wg.Wait()
}
