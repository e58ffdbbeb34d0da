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

// Package governance wires the rule resolvers and the traffic governance components into
// the engine a host process talks to.
package governance

import (
	"context"
	"errors"
	"sync/atomic"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"sigs.k8s.io/traffic-governance/pkg/governance/controller"
	"sigs.k8s.io/traffic-governance/pkg/governance/flowcontrol"
	"sigs.k8s.io/traffic-governance/pkg/governance/gray"
	"sigs.k8s.io/traffic-governance/pkg/governance/identity"
	"sigs.k8s.io/traffic-governance/pkg/governance/metrics/collectors"
	"sigs.k8s.io/traffic-governance/pkg/governance/resolver"
	"sigs.k8s.io/traffic-governance/pkg/governance/retry"
	"sigs.k8s.io/traffic-governance/pkg/governance/rules"
	"sigs.k8s.io/traffic-governance/pkg/governance/types"
	logutil "sigs.k8s.io/traffic-governance/pkg/governance/util/logging"
)

// Config holds the collaborators of an Engine.
type Config struct {
	// Identity is the local service. Required.
	Identity *identity.ServiceIdentity
	// Instances lists the instances of downstream services. Required.
	Instances gray.InstanceLister
	// Prefixes overrides the config key prefix per category.
	Prefixes map[rules.Category]string
	// Policies defaults to retry.DefaultPolicyRegistry.
	Policies *retry.PolicyRegistry
	// Executor defaults to retry.BackoffExecutor.
	Executor retry.Executor
}

// Engine is the host facing entry point. Every config batch it receives is resolved by
// the three category resolvers, and the components subscribed to them follow along.
type Engine struct {
	identity *identity.ServiceIdentity

	retryRules   *resolver.Resolver[*rules.RetryRule]
	flowRules    *resolver.Resolver[*rules.FlowRule]
	breakerRules *resolver.Resolver[*rules.CircuitBreakerRule]

	limiters    *flowcontrol.LimiterSet
	router      *gray.Router
	coordinator *retry.Coordinator

	applied atomic.Bool
}

var _ controller.ConfigApplier = &Engine{}
var _ collectors.RuleCounter = &Engine{}

// NewEngine builds an Engine from cfg.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Identity == nil {
		return nil, errors.New("service identity is required")
	}
	if cfg.Instances == nil {
		return nil, errors.New("instance lister is required")
	}
	policies := cfg.Policies
	if policies == nil {
		policies = retry.DefaultPolicyRegistry()
	}

	opts := func(c rules.Category) []resolver.Option {
		o := []resolver.Option{resolver.WithFullSync()}
		if p, ok := cfg.Prefixes[c]; ok && p != "" {
			o = append(o, resolver.WithPrefix(p))
		}
		return o
	}

	e := &Engine{
		identity:     cfg.Identity,
		retryRules:   resolver.New(rules.CategoryRetry, rules.NewRetryCodec(), cfg.Identity, opts(rules.CategoryRetry)...),
		flowRules:    resolver.New(rules.CategoryFlow, rules.NewFlowCodec(), cfg.Identity, opts(rules.CategoryFlow)...),
		breakerRules: resolver.New(rules.CategoryCircuitBreaker, rules.NewCircuitBreakerCodec(), cfg.Identity, opts(rules.CategoryCircuitBreaker)...),
		limiters:     flowcontrol.NewLimiterSet(),
		router:       gray.NewRouter(cfg.Instances),
	}
	e.flowRules.RegisterListener(e.limiters)
	e.coordinator = retry.NewCoordinator(policies, e.retryRules, cfg.Executor)
	return e, nil
}

// ApplyConfig resolves a complete flat key/value configuration. Keys are routed to the
// category whose prefix they carry. Rules missing from data are removed.
func (e *Engine) ApplyConfig(ctx context.Context, data map[string]string) {
	e.retryRules.ApplyBatch(ctx, data)
	e.flowRules.ApplyBatch(ctx, data)
	e.breakerRules.ApplyBatch(ctx, data)
	if !e.applied.Swap(true) {
		log.FromContext(ctx).Info("Applied first governance config", "rules", e.RuleCounts())
	} else {
		log.FromContext(ctx).V(logutil.VERBOSE).Info("Applied governance config", "rules", e.RuleCounts())
	}
}

// ApplyRule updates a single business key of category, see resolver.Resolver.ApplyOne.
// It reports whether a rule is stored under the key afterwards.
func (e *Engine) ApplyRule(ctx context.Context, category rules.Category, businessKey, rawValue string, isOverride, isForDelete bool) (bool, error) {
	var ok bool
	switch category {
	case rules.CategoryRetry:
		_, ok = e.retryRules.ApplyOne(ctx, businessKey, rawValue, isOverride, isForDelete)
	case rules.CategoryFlow:
		_, ok = e.flowRules.ApplyOne(ctx, businessKey, rawValue, isOverride, isForDelete)
	case rules.CategoryCircuitBreaker:
		_, ok = e.breakerRules.ApplyOne(ctx, businessKey, rawValue, isOverride, isForDelete)
	default:
		return false, errUnknownCategory(category)
	}
	return ok, nil
}

// HasSynced reports whether at least one configuration was applied.
func (e *Engine) HasSynced() bool {
	return e.applied.Load()
}

// Identity returns the local service identity.
func (e *Engine) Identity() *identity.ServiceIdentity {
	return e.identity
}

// Route returns the instances eligible for an outbound call tagged with tag.
func (e *Engine) Route(ctx context.Context, tag types.TrafficTag) ([]types.ServiceInstance, error) {
	return e.router.Route(ctx, tag)
}

// Allow reports whether a call of businessKey passes its flow rule.
func (e *Engine) Allow(businessKey string) bool {
	return e.limiters.Allow(businessKey)
}

// RetryRule returns the retry rule of businessKey.
func (e *Engine) RetryRule(businessKey string) (*rules.RetryRule, bool) {
	return e.retryRules.Rule(businessKey)
}

// FlowRule returns the flow rule of businessKey.
func (e *Engine) FlowRule(businessKey string) (*rules.FlowRule, bool) {
	return e.flowRules.Rule(businessKey)
}

// CircuitBreakerRule returns the circuit breaker rule of businessKey for the host's breaker.
func (e *Engine) CircuitBreakerRule(businessKey string) (*rules.CircuitBreakerRule, bool) {
	return e.breakerRules.Rule(businessKey)
}

// Coordinator returns the retry coordinator, for hosts that drive retries themselves.
func (e *Engine) Coordinator() *retry.Coordinator {
	return e.coordinator
}

// RuleCounts returns the number of stored rules per category.
func (e *Engine) RuleCounts() map[rules.Category]int {
	return map[rules.Category]int{
		rules.CategoryRetry:          e.retryRules.Rules().Len(),
		rules.CategoryFlow:           e.flowRules.Rules().Len(),
		rules.CategoryCircuitBreaker: e.breakerRules.Rules().Len(),
	}
}

// RulesView returns the stored rules of category keyed by business key.
func (e *Engine) RulesView(category rules.Category) (map[string]rules.Rule, error) {
	res := map[string]rules.Rule{}
	switch category {
	case rules.CategoryRetry:
		for k, r := range e.retryRules.Rules().ToMap() {
			res[k] = r
		}
	case rules.CategoryFlow:
		for k, r := range e.flowRules.Rules().ToMap() {
			res[k] = r
		}
	case rules.CategoryCircuitBreaker:
		for k, r := range e.breakerRules.Rules().ToMap() {
			res[k] = r
		}
	default:
		return nil, errUnknownCategory(category)
	}
	return res, nil
}

// Invoke runs call under the retry rule of businessKey, see retry.Invoke. A call rejected
// by the flow rule of businessKey is not made and fails with ErrFlowLimited.
func Invoke[T any](ctx context.Context, e *Engine, fw retry.Framework, businessKey string, call func(ctx context.Context) (T, error)) (T, error) {
	if !e.Allow(businessKey) {
		var zero T
		return zero, ErrFlowLimited
	}
	return retry.Invoke(ctx, e.coordinator, fw, businessKey, call)
}
