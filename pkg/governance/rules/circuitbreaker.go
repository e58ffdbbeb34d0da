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
	"fmt"
	"time"

	"go.uber.org/multierr"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// SlidingWindowType selects how the circuit breaker aggregates call outcomes.
type SlidingWindowType string

const (
	SlidingWindowCount SlidingWindowType = "count"
	SlidingWindowTime  SlidingWindowType = "time"
)

const (
	DefaultSlowCallRateThreshold     = 100.0
	DefaultSlowCallDurationThreshold = 60 * time.Second
	DefaultSlidingWindowSize         = 100
	DefaultMinimumNumberOfCalls      = 100
	DefaultWaitDurationInOpenState   = 60 * time.Second
)

var CircuitBreakerRequiredFields = []string{"failureRateThreshold"}

// CircuitBreakerRule describes when calls of one business scenario stop being sent downstream.
type CircuitBreakerRule struct {
	Base `json:",inline"`

	// FailureRateThreshold is a percentage in (0, 100].
	FailureRateThreshold      float64           `json:"failureRateThreshold"`
	SlowCallRateThreshold     float64           `json:"slowCallRateThreshold,omitempty"`
	SlowCallDurationThreshold metav1.Duration   `json:"slowCallDurationThreshold,omitempty"`
	SlidingWindowType         SlidingWindowType `json:"slidingWindowType,omitempty"`
	// SlidingWindowSize is a call count or a number of seconds, depending on SlidingWindowType.
	SlidingWindowSize       int             `json:"slidingWindowSize,omitempty"`
	MinimumNumberOfCalls    int             `json:"minimumNumberOfCalls,omitempty"`
	WaitDurationInOpenState metav1.Duration `json:"waitDurationInOpenState,omitempty"`
}

var _ Rule = &CircuitBreakerRule{}
var _ Defaulter = &CircuitBreakerRule{}

func (r *CircuitBreakerRule) Default() {
	r.SlowCallRateThreshold = DefaultSlowCallRateThreshold
	r.SlowCallDurationThreshold = metav1.Duration{Duration: DefaultSlowCallDurationThreshold}
	r.SlidingWindowType = SlidingWindowCount
	r.SlidingWindowSize = DefaultSlidingWindowSize
	r.MinimumNumberOfCalls = DefaultMinimumNumberOfCalls
	r.WaitDurationInOpenState = metav1.Duration{Duration: DefaultWaitDurationInOpenState}
}

func (r *CircuitBreakerRule) Validate() error {
	var errs error
	if r.FailureRateThreshold <= 0 || r.FailureRateThreshold > 100 {
		errs = multierr.Append(errs, fmt.Errorf("failureRateThreshold must be within (0, 100], got %v", r.FailureRateThreshold))
	}
	if r.SlowCallRateThreshold <= 0 || r.SlowCallRateThreshold > 100 {
		errs = multierr.Append(errs, fmt.Errorf("slowCallRateThreshold must be within (0, 100], got %v", r.SlowCallRateThreshold))
	}
	if r.SlowCallDurationThreshold.Duration <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("slowCallDurationThreshold must be positive, got %s", r.SlowCallDurationThreshold.Duration))
	}
	if r.SlidingWindowType != SlidingWindowCount && r.SlidingWindowType != SlidingWindowTime {
		errs = multierr.Append(errs, fmt.Errorf("unknown slidingWindowType %q", r.SlidingWindowType))
	}
	if r.SlidingWindowSize < 1 {
		errs = multierr.Append(errs, fmt.Errorf("slidingWindowSize must be at least 1, got %d", r.SlidingWindowSize))
	}
	if r.MinimumNumberOfCalls < 1 {
		errs = multierr.Append(errs, fmt.Errorf("minimumNumberOfCalls must be at least 1, got %d", r.MinimumNumberOfCalls))
	}
	if r.WaitDurationInOpenState.Duration <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("waitDurationInOpenState must be positive, got %s", r.WaitDurationInOpenState.Duration))
	}
	return errs
}
