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

// Package resolver turns flat key/value configuration into the validated, business-keyed
// rules of one category and publishes them to subscribers.
package resolver

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"sigs.k8s.io/traffic-governance/pkg/governance/identity"
	"sigs.k8s.io/traffic-governance/pkg/governance/metrics"
	"sigs.k8s.io/traffic-governance/pkg/governance/notify"
	"sigs.k8s.io/traffic-governance/pkg/governance/rules"
	"sigs.k8s.io/traffic-governance/pkg/governance/scope"
	"sigs.k8s.io/traffic-governance/pkg/governance/store"
	errutil "sigs.k8s.io/traffic-governance/pkg/governance/util/error"
	logutil "sigs.k8s.io/traffic-governance/pkg/governance/util/logging"
	"sigs.k8s.io/traffic-governance/pkg/tracing"
)

// Option configures a Resolver.
type Option func(*options)

type options struct {
	prefix   string
	fullSync bool
}

// WithPrefix overrides the config key prefix, which defaults to "<category>.".
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithFullSync makes ApplyBatch treat every batch as the complete configuration: stored
// rules whose key is absent from the batch are removed.
func WithFullSync() Option {
	return func(o *options) {
		o.fullSync = true
	}
}

// Resolver owns the rule store of one category. It is the only writer of that store.
type Resolver[R rules.Rule] struct {
	category rules.Category
	prefix   string
	fullSync bool
	codec    rules.Codec[R]
	identity *identity.ServiceIdentity

	// mu serializes resolution passes so that a batch and a single key update never interleave.
	mu    sync.Mutex
	store *store.Store[R]
	bus   notify.Bus[R]
}

// New returns a Resolver for category. id is the identity rules are scoped against and must not be nil.
func New[R rules.Rule](category rules.Category, codec rules.Codec[R], id *identity.ServiceIdentity, opts ...Option) *Resolver[R] {
	o := options{prefix: category.DefaultPrefix()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Resolver[R]{
		category: category,
		prefix:   o.prefix,
		fullSync: o.fullSync,
		codec:    codec,
		identity: id,
		store:    store.New[R](),
	}
}

// Category returns the category the resolver handles.
func (r *Resolver[R]) Category() rules.Category {
	return r.category
}

// Prefix returns the config key prefix the resolver consumes.
func (r *Resolver[R]) Prefix() string {
	return r.prefix
}

// RegisterListener subscribes l to rule changes.
func (r *Resolver[R]) RegisterListener(l notify.Listener[R]) {
	r.bus.Subscribe(l)
}

// Rules returns a consistent snapshot of the stored rules. It never blocks on a writer.
func (r *Resolver[R]) Rules() store.Snapshot[R] {
	return r.store.Snapshot()
}

// Rule returns the rule stored under businessKey.
func (r *Resolver[R]) Rule(businessKey string) (R, bool) {
	return r.store.Get(businessKey)
}

// ApplyBatch resolves every key of raw carrying the resolver's prefix and publishes the
// result as one store update, then notifies listeners. Keys without the prefix are ignored.
// A key that fails to decode, fails validation or is out of scope is removed from the store
// and does not affect the other keys. Errors never leave ApplyBatch.
func (r *Resolver[R]) ApplyBatch(ctx context.Context, raw map[string]string) {
	ctx, span := tracing.StartSpan(ctx, tracing.OperationRuleResolution,
		attribute.String(tracing.AttrRuleCategory, string(r.category)))
	defer span.End()
	logger := log.FromContext(ctx).WithValues("category", r.category)

	r.mu.Lock()
	defer r.mu.Unlock()

	resolved := map[string]R{}
	present := map[string]bool{}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		businessKey, ok := strings.CutPrefix(k, r.prefix)
		if !ok {
			continue
		}
		if businessKey == "" {
			metrics.RecordRuleResolution(string(r.category), metrics.OutcomeIgnored)
			logger.V(logutil.DEBUG).Info("Ignoring config key without business key", "key", k)
			continue
		}
		present[businessKey] = true
		if rule, ok := r.resolve(ctx, businessKey, raw[k]); ok {
			resolved[businessKey] = rule
		}
	}

	removed := 0
	r.store.Update(func(current map[string]R) bool {
		for businessKey := range present {
			if _, ok := resolved[businessKey]; !ok {
				if _, existed := current[businessKey]; existed {
					removed++
				}
				delete(current, businessKey)
			}
		}
		if r.fullSync {
			for businessKey := range current {
				if !present[businessKey] {
					delete(current, businessKey)
					removed++
				}
			}
		}
		for businessKey, rule := range resolved {
			current[businessKey] = rule
		}
		return len(present) > 0 || removed > 0
	})
	for range removed {
		metrics.RecordRuleResolution(string(r.category), metrics.OutcomeRemoved)
	}

	snapshot := r.store.Snapshot()
	span.SetAttributes(attribute.Int("governance.rules.stored", snapshot.Len()))
	logger.V(logutil.VERBOSE).Info("Applied config batch", "keys", len(present), "resolved", len(resolved),
		"removed", removed, "stored", snapshot.Len())
	if failed := r.bus.Notify(ctx, r.category, snapshot); failed > 0 {
		span.SetAttributes(attribute.Int("governance.listeners.failed", failed))
	}
	tracing.SetSpanSuccess(span)
}

// ApplyOne resolves a single business key and returns the stored rule, if any.
//
// An empty businessKey is a no-op. isForDelete removes the key. A blank rawValue with
// isOverride set also removes the key, since it means the author deleted the scenario.
// Otherwise the previous rule is always dropped and replaced by the newly resolved one
// when it decodes, validates and is in scope. Listeners are notified after any change.
func (r *Resolver[R]) ApplyOne(ctx context.Context, businessKey, rawValue string, isOverride, isForDelete bool) (R, bool) {
	var none R
	if businessKey == "" {
		metrics.RecordRuleResolution(string(r.category), metrics.OutcomeIgnored)
		return none, false
	}
	logger := logutil.ForRule(ctx, string(r.category), businessKey)

	r.mu.Lock()
	defer r.mu.Unlock()

	if isForDelete || (isOverride && strings.TrimSpace(rawValue) == "") {
		if r.store.Delete(businessKey) {
			metrics.RecordRuleResolution(string(r.category), metrics.OutcomeRemoved)
			logger.V(logutil.VERBOSE).Info("Removed rule")
			r.bus.Notify(ctx, r.category, r.store.Snapshot())
		}
		return none, false
	}

	rule, ok := r.resolve(ctx, businessKey, rawValue)
	changed := false
	r.store.Update(func(current map[string]R) bool {
		_, existed := current[businessKey]
		delete(current, businessKey)
		if ok {
			current[businessKey] = rule
		}
		changed = existed || ok
		return changed
	})
	if changed {
		r.bus.Notify(ctx, r.category, r.store.Snapshot())
	}
	if !ok {
		return none, false
	}
	return rule, true
}

// resolve decodes, names, validates and scope checks one rule body. It does not touch the
// store. Failures are logged and counted, never returned.
func (r *Resolver[R]) resolve(ctx context.Context, businessKey, rawValue string) (R, bool) {
	var none R
	logger := logutil.ForRule(ctx, string(r.category), businessKey)
	category := string(r.category)

	rule, err := r.codec.Decode(rawValue)
	if err != nil {
		outcome := metrics.OutcomeMalformed
		if errutil.Is(err, errutil.InvalidRule) {
			outcome = metrics.OutcomeInvalid
		}
		metrics.RecordRuleResolution(category, outcome)
		logger.Error(err, "Failed to decode rule")
		return none, false
	}

	rule.SetName(businessKey)
	if err := rule.Validate(); err != nil {
		metrics.RecordRuleResolution(category, metrics.OutcomeInvalid)
		logger.Error(errutil.Error{Code: errutil.InvalidRule, Msg: fmt.Sprintf("rule %q failed validation", businessKey), Err: err},
			"Dropping invalid rule")
		return none, false
	}

	if s := scope.Parse(rule.GetServices()); !s.Matches(r.identity.Name(), r.identity.Version()) {
		metrics.RecordRuleResolution(category, metrics.OutcomeOutOfScope)
		logger.V(logutil.DEBUG).Info("Rule does not apply to this service", "services", s.String(), "identity", r.identity.String())
		return none, false
	}

	metrics.RecordRuleResolution(category, metrics.OutcomeApplied)
	logger.V(logutil.DEBUG).Info("Resolved rule")
	return rule, true
}
