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

package rules

import (
	"testing"
	"time"

	"go.uber.org/multierr"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func defaultedRetry(mutate func(r *RetryRule)) *RetryRule {
	r := &RetryRule{MaxAttempts: 3}
	r.Default()
	if mutate != nil {
		mutate(r)
	}
	return r
}

func TestRetryRuleValidate(t *testing.T) {
	tests := []struct {
		name     string
		rule     *RetryRule
		wantErrs int
	}{
		{name: "defaults are valid", rule: defaultedRetry(nil)},
		{name: "zero attempts", rule: defaultedRetry(func(r *RetryRule) { r.MaxAttempts = 0 }), wantErrs: 1},
		{name: "negative wait", rule: defaultedRetry(func(r *RetryRule) { r.WaitDuration = metav1.Duration{Duration: -time.Second} }), wantErrs: 1},
		{name: "unknown strategy", rule: defaultedRetry(func(r *RetryRule) { r.RetryStrategy = "Linear" }), wantErrs: 1},
		{
			name: "random backoff with bad parameters",
			rule: defaultedRetry(func(r *RetryRule) {
				r.RetryStrategy = RandomBackoff
				r.InitialInterval = metav1.Duration{}
				r.Multiplier = 0.5
				r.RandomizationFactor = 2
			}),
			wantErrs: 3,
		},
		{name: "too many attempts", rule: defaultedRetry(func(r *RetryRule) { r.MaxAttempts = MaxRetryAttempts + 1 }), wantErrs: 1},
		{name: "attempt bound is inclusive", rule: defaultedRetry(func(r *RetryRule) { r.MaxAttempts = MaxRetryAttempts })},
		{
			name: "multiplier above bound",
			rule: defaultedRetry(func(r *RetryRule) {
				r.RetryStrategy = RandomBackoff
				r.Multiplier = MaxRetryMultiplier + 1
			}),
			wantErrs: 1,
		},
		{name: "missing maxInterval", rule: defaultedRetry(func(r *RetryRule) { r.MaxInterval = metav1.Duration{} }), wantErrs: 1},
		{name: "maxInterval above bound", rule: defaultedRetry(func(r *RetryRule) { r.MaxInterval = metav1.Duration{Duration: 2 * time.Hour} }), wantErrs: 1},
		{name: "bad status code", rule: defaultedRetry(func(r *RetryRule) { r.RetryOnResponseStatus = []int{503, 42} }), wantErrs: 1},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.rule.Validate()
			if got := len(multierr.Errors(err)); got != test.wantErrs {
				t.Errorf("Validate() returned %d errors (%v), want %d", got, err, test.wantErrs)
			}
		})
	}
}

func TestFlowRuleValidate(t *testing.T) {
	r := &FlowRule{LimitForPeriod: 0}
	r.Default()
	if err := r.Validate(); err == nil {
		t.Error("expected an error for limitForPeriod 0")
	}
	r.LimitForPeriod = 1
	if err := r.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCircuitBreakerRuleValidate(t *testing.T) {
	r := &CircuitBreakerRule{FailureRateThreshold: 150}
	r.Default()
	r.SlidingWindowType = "hybrid"
	if got := len(multierr.Errors(r.Validate())); got != 2 {
		t.Errorf("Validate() returned %d errors, want 2", got)
	}
}

func TestCategories(t *testing.T) {
	got := Categories()
	want := []Category{CategoryCircuitBreaker, CategoryFlow, CategoryRetry}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Categories() = %v, want %v", got, want)
		}
	}
	if CategoryRetry.DefaultPrefix() != "retry." {
		t.Errorf("DefaultPrefix() = %q", CategoryRetry.DefaultPrefix())
	}
}
