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

// RetryStrategy selects how the wait between attempts evolves.
type RetryStrategy string

const (
	// FixedInterval waits WaitDuration between every attempt.
	FixedInterval RetryStrategy = "FixedInterval"
	// RandomBackoff starts at InitialInterval and grows by Multiplier up to MaxInterval, with
	// RandomizationFactor jitter.
	RandomBackoff RetryStrategy = "RandomBackoff"
)

const (
	DefaultRetryWaitDuration        = 10 * time.Millisecond
	DefaultRetryInitialInterval     = 100 * time.Millisecond
	DefaultRetryMultiplier          = 2.0
	DefaultRetryRandomizationFactor = 0.5
	DefaultRetryMaxInterval         = 30 * time.Second
)

// Upper bounds of retry rule fields.
const (
	MaxRetryAttempts    = 100
	MaxRetryMultiplier  = 10.0
	MaxRetryMaxInterval = time.Hour
)

// RetryRequiredFields lists the fields a retry rule body must set.
var RetryRequiredFields = []string{"maxAttempts"}

// RetryRule governs whether and how a failed call of one business scenario is retried.
type RetryRule struct {
	Base `json:",inline"`

	// MaxAttempts is the total number of attempts, including the original call.
	MaxAttempts int `json:"maxAttempts"`
	// WaitDuration is the pause between attempts for FixedInterval.
	WaitDuration metav1.Duration `json:"waitDuration,omitempty"`
	// RetryStrategy defaults to FixedInterval.
	RetryStrategy RetryStrategy `json:"retryStrategy,omitempty"`
	// InitialInterval is the first pause for RandomBackoff.
	InitialInterval metav1.Duration `json:"initialInterval,omitempty"`
	// Multiplier grows the RandomBackoff pause after each attempt.
	Multiplier float64 `json:"multiplier,omitempty"`
	// RandomizationFactor is the RandomBackoff jitter, in [0, 1]. A pause d is drawn uniformly
	// from [d*(1-f), d*(1+f)].
	RandomizationFactor float64 `json:"randomizationFactor,omitempty"`
	// MaxInterval caps the scheduled pause of either strategy, before randomization.
	MaxInterval metav1.Duration `json:"maxInterval,omitempty"`
	// RetryOnResponseStatus adds response status codes that trigger a retry, for frameworks that have them.
	RetryOnResponseStatus []int `json:"retryOnResponseStatus,omitempty"`
	// RetryOnSame retries against the same instance instead of re-selecting one.
	RetryOnSame bool `json:"retryOnSame,omitempty"`
}

var _ Rule = &RetryRule{}
var _ Defaulter = &RetryRule{}

func (r *RetryRule) Default() {
	r.WaitDuration = metav1.Duration{Duration: DefaultRetryWaitDuration}
	r.RetryStrategy = FixedInterval
	r.InitialInterval = metav1.Duration{Duration: DefaultRetryInitialInterval}
	r.Multiplier = DefaultRetryMultiplier
	r.RandomizationFactor = DefaultRetryRandomizationFactor
	r.MaxInterval = metav1.Duration{Duration: DefaultRetryMaxInterval}
}

func (r *RetryRule) Validate() error {
	var errs error
	if r.MaxAttempts < 1 {
		errs = multierr.Append(errs, fmt.Errorf("maxAttempts must be at least 1, got %d", r.MaxAttempts))
	}
	if r.MaxAttempts > MaxRetryAttempts {
		errs = multierr.Append(errs, fmt.Errorf("maxAttempts must be at most %d, got %d", MaxRetryAttempts, r.MaxAttempts))
	}
	if r.MaxInterval.Duration <= 0 || r.MaxInterval.Duration > MaxRetryMaxInterval {
		errs = multierr.Append(errs, fmt.Errorf("maxInterval must be within (0, %s], got %s", MaxRetryMaxInterval, r.MaxInterval.Duration))
	}
	if r.WaitDuration.Duration < 0 {
		errs = multierr.Append(errs, fmt.Errorf("waitDuration must not be negative, got %s", r.WaitDuration.Duration))
	}
	switch r.RetryStrategy {
	case FixedInterval:
	case RandomBackoff:
		if r.InitialInterval.Duration <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("initialInterval must be positive, got %s", r.InitialInterval.Duration))
		}
		if r.Multiplier < 1 || r.Multiplier > MaxRetryMultiplier {
			errs = multierr.Append(errs, fmt.Errorf("multiplier must be within [1, %v], got %v", MaxRetryMultiplier, r.Multiplier))
		}
		if r.RandomizationFactor < 0 || r.RandomizationFactor > 1 {
			errs = multierr.Append(errs, fmt.Errorf("randomizationFactor must be within [0, 1], got %v", r.RandomizationFactor))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("unknown retryStrategy %q", r.RetryStrategy))
	}
	for _, code := range r.RetryOnResponseStatus {
		if code < 100 || code > 599 {
			errs = multierr.Append(errs, fmt.Errorf("invalid response status %d in retryOnResponseStatus", code))
		}
	}
	return errs
}
