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
	"cmp"
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"sigs.k8s.io/traffic-governance/pkg/governance/rules"
)

// ErrRetriesExhausted is returned by BackoffExecutor when the attempt budget is spent.
var ErrRetriesExhausted = errors.New("retry attempts exhausted")

// Executor runs the retries of a call whose first attempt already failed. It owns the
// attempt budget and the pause between attempts.
type Executor interface {
	// Execute calls retry until it reports done, the budget of rule is spent or ctx is done.
	// It returns nil when retry reported done and an error otherwise.
	Execute(ctx context.Context, rule *rules.RetryRule, retry func(ctx context.Context) (done bool)) error
}

// BackoffExecutor paces retries with a wait.Backoff derived from the retry rule.
type BackoffExecutor struct{}

var _ Executor = BackoffExecutor{}

// Backoff returns the deterministic schedule of rule. Steps counts the original attempt,
// so a rule with MaxAttempts 3 yields at most two retries. No pause exceeds Cap, which is
// the maxInterval of rule or DefaultRetryMaxInterval when unset.
//
// Randomization is not part of the returned backoff: wait.Backoff only jitters upwards,
// while randomizationFactor spreads the pause on both sides. See Delay.
func Backoff(rule *rules.RetryRule) wait.Backoff {
	maxInterval := cmp.Or(rule.MaxInterval.Duration, rules.DefaultRetryMaxInterval)
	if rule.RetryStrategy == rules.RandomBackoff {
		return wait.Backoff{
			Duration: min(rule.InitialInterval.Duration, maxInterval),
			Factor:   rule.Multiplier,
			Cap:      maxInterval,
			Steps:    rule.MaxAttempts,
		}
	}
	return wait.Backoff{
		Duration: min(rule.WaitDuration.Duration, maxInterval),
		Cap:      maxInterval,
		Steps:    rule.MaxAttempts,
	}
}

// Delay randomizes the scheduled pause d by up to factor of d in either direction.
func Delay(d time.Duration, factor float64) time.Duration {
	if factor <= 0 || d <= 0 {
		return d
	}
	factor = min(factor, 1)
	return time.Duration(float64(d) * (1 + factor*(2*rand.Float64()-1)))
}

func (BackoffExecutor) Execute(ctx context.Context, rule *rules.RetryRule, retry func(ctx context.Context) bool) error {
	backoff := Backoff(rule)
	randomization := 0.0
	if rule.RetryStrategy == rules.RandomBackoff {
		randomization = rule.RandomizationFactor
	}
	// Step is called once per retry; wait.Backoff stops growing once Cap is reached.
	for attempt := 1; attempt < rule.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		timer := time.NewTimer(Delay(backoff.Step(), randomization))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if retry(ctx) {
			return nil
		}
	}
	return ErrRetriesExhausted
}
