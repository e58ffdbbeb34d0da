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

package retry

import (
	"context"
	"sync"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/attribute"
	"k8s.io/apimachinery/pkg/util/sets"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"sigs.k8s.io/traffic-governance/pkg/governance/metrics"
	"sigs.k8s.io/traffic-governance/pkg/governance/rules"
	logutil "sigs.k8s.io/traffic-governance/pkg/governance/util/logging"
	"sigs.k8s.io/traffic-governance/pkg/tracing"
)

// Decision is the outcome of consulting the coordinator about one failure.
type Decision int

const (
	NoRetry Decision = iota
	Retry
	AlreadyRetrying
)

func (d Decision) String() string {
	switch d {
	case Retry:
		return "retry"
	case AlreadyRetrying:
		return "already_retrying"
	default:
		return "no_retry"
	}
}

// StatusCoder is implemented by call results that carry a response status.
type StatusCoder interface {
	StatusCode() int
}

// RuleLookup returns the retry rule governing a business key.
type RuleLookup interface {
	Rule(businessKey string) (*rules.RetryRule, bool)
}

// Coordinator decides whether failed calls are retried and keeps one marker per call chain
// so that nested invocations of the same chain never start a second round of retries.
type Coordinator struct {
	registry *PolicyRegistry
	rules    RuleLookup
	executor Executor
	logger   logr.Logger

	mu     sync.Mutex
	active sets.Set[string]
}

// NewCoordinator returns a Coordinator. A nil executor means BackoffExecutor.
func NewCoordinator(registry *PolicyRegistry, lookup RuleLookup, executor Executor) *Coordinator {
	if executor == nil {
		executor = BackoffExecutor{}
	}
	return &Coordinator{
		registry: registry,
		rules:    lookup,
		executor: executor,
		logger:   log.Log.WithName("retry-coordinator"),
		active:   sets.New[string](),
	}
}

// BeginIfAbsent marks chainID as retrying. It returns false when the chain already is or
// when chainID is empty.
func (c *Coordinator) BeginIfAbsent(chainID string) bool {
	if chainID == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active.Has(chainID) {
		return false
	}
	c.active.Insert(chainID)
	return true
}

// End clears the marker of chainID. It is idempotent.
func (c *Coordinator) End(chainID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active.Delete(chainID)
}

// IsActive reports whether chainID is retrying.
func (c *Coordinator) IsActive(chainID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active.Has(chainID)
}

// ActiveChains returns the number of chains currently retrying.
func (c *Coordinator) ActiveChains() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active.Len()
}

// Decide classifies the failure of a call of businessKey made with fw in chain chainID.
//
// It returns NoRetry for an empty chainID, AlreadyRetrying when the chain is retrying, NoRetry when no retry rule with
// more than one attempt governs businessKey or neither err nor the status of result is
// retryable, and Retry otherwise. On Retry the chain marker has been acquired and the
// caller must call End once its retries are over.
func (c *Coordinator) Decide(chainID string, fw Framework, businessKey string, result any, err error) Decision {
	d, _ := c.decide(chainID, fw, businessKey, result, err)
	metrics.RecordRetryDecision(fw.String(), d.String())
	return d
}

func (c *Coordinator) decide(chainID string, fw Framework, businessKey string, result any, err error) (Decision, *rules.RetryRule) {
	if chainID == "" {
		c.logger.Info("Refusing to retry a call without a chain id", "businessKey", businessKey, "framework", fw.String())
		return NoRetry, nil
	}
	if c.IsActive(chainID) {
		return AlreadyRetrying, nil
	}
	rule, ok := c.rules.Rule(businessKey)
	if !ok || rule.MaxAttempts <= 1 {
		return NoRetry, nil
	}
	if !c.shouldRetry(fw, rule, result, err) {
		return NoRetry, nil
	}
	if !c.BeginIfAbsent(chainID) {
		return AlreadyRetrying, nil
	}
	return Retry, rule
}

func (c *Coordinator) shouldRetry(fw Framework, rule *rules.RetryRule, result any, err error) bool {
	if err != nil {
		return c.registry.IsRetryable(fw, err)
	}
	if sc, ok := result.(StatusCoder); ok {
		return c.registry.IsRetryableStatus(fw, sc.StatusCode(), rule.RetryOnResponseStatus)
	}
	return false
}

// Invoke calls call and, when the coordinator decides so, retries it under the retry rule
// of businessKey. The chain id is taken from ctx, or started when ctx has none, and is
// passed on to every attempt so that nested Invokes of the same chain do not retry again.
//
// When the retries are exhausted the result and error of the last attempt are returned
// unchanged. The chain marker is released on every exit path, panics included.
func Invoke[T any](ctx context.Context, c *Coordinator, fw Framework, businessKey string, call func(ctx context.Context) (T, error)) (T, error) {
	ctx, chainID := EnsureChainID(ctx)
	result, err := call(ctx)
	if err == nil {
		if _, ok := any(result).(StatusCoder); !ok {
			return result, nil
		}
	}

	decision, rule := c.decide(chainID, fw, businessKey, result, err)
	metrics.RecordRetryDecision(fw.String(), decision.String())
	if decision != Retry {
		return result, err
	}
	defer c.End(chainID)

	ctx, span := tracing.StartSpan(ctx, tracing.OperationRetry,
		attribute.String(tracing.AttrFramework, fw.String()),
		attribute.String(tracing.AttrBusinessKey, businessKey))
	defer span.End()
	logger := log.FromContext(ctx).WithValues("businessKey", businessKey, "framework", fw.String(), "chain", chainID)
	logger.V(logutil.DEBUG).Info("Retrying failed call", "error", err, "maxAttempts", rule.MaxAttempts)

	attempts := 1
	execErr := c.executor.Execute(ctx, rule, func(ctx context.Context) bool {
		attempts++
		metrics.RecordRetryAttempt(fw.String())
		result, err = call(ctx)
		return !c.shouldRetry(fw, rule, result, err)
	})
	span.SetAttributes(attribute.Int("governance.retry.attempts", attempts))

	switch {
	case execErr == nil:
		if err != nil {
			tracing.SetSpanError(span, err)
		} else {
			tracing.SetSpanSuccess(span)
		}
	case ctx.Err() != nil:
		logger.V(logutil.DEBUG).Info("Retry interrupted", "attempts", attempts, "reason", ctx.Err())
		if err == nil {
			err = ctx.Err()
		}
		tracing.SetSpanError(span, err)
	default:
		logger.V(logutil.DEBUG).Info("Retries exhausted", "attempts", attempts, "error", err)
		if err != nil {
			tracing.SetSpanError(span, err)
		}
	}
	return result, err
}
