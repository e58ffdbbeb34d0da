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
	"fmt"
	"slices"

	"go.uber.org/multierr"
	"k8s.io/apimachinery/pkg/util/sets"
)

// PolicySpec is the textual form of a framework's retry policy.
type PolicySpec struct {
	// Errors are ParseMatcher expressions.
	Errors []string
	// StatusCodes are retried for frameworks that have status codes.
	StatusCodes []int
}

// Policy is the resolved retry policy of one framework.
type Policy struct {
	Matchers    []ErrorMatcher
	StatusCodes sets.Set[int]
}

// BuildPolicy resolves spec. All invalid entries are reported together.
func BuildPolicy(fw Framework, spec PolicySpec) (Policy, error) {
	var errs error
	p := Policy{StatusCodes: sets.New[int]()}
	for _, expr := range spec.Errors {
		m, err := ParseMatcher(expr)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", fw, err))
			continue
		}
		p.Matchers = append(p.Matchers, m)
	}
	if len(spec.StatusCodes) > 0 && !fw.HasStatusCodes() {
		errs = multierr.Append(errs, fmt.Errorf("%s: framework has no status codes", fw))
	}
	for _, code := range spec.StatusCodes {
		if code < 100 || code > 599 {
			errs = multierr.Append(errs, fmt.Errorf("%s: invalid status code %d", fw, code))
			continue
		}
		p.StatusCodes.Insert(code)
	}
	return p, errs
}

// DefaultPolicySpecs returns the built-in policies.
func DefaultPolicySpecs() map[Framework]PolicySpec {
	transport := []string{NetTimeout, NetRefused, NetReset, IOEOF}
	return map[Framework]PolicySpec{
		DubboApache:  {Errors: append(slices.Clone(transport), "RemotingException", "TimeoutException")},
		DubboAlibaba: {Errors: append(slices.Clone(transport), "RemotingException", "TimeoutException")},
		SpringRest: {
			Errors:      append(slices.Clone(transport), "ResourceAccessException"),
			StatusCodes: []int{502, 503, 504},
		},
		GRPC: {Errors: []string{"grpc:Unavailable", NetRefused, NetReset}},
		HTTP: {
			Errors:      slices.Clone(transport),
			StatusCodes: []int{502, 503, 504},
		},
	}
}

// PolicyRegistry maps frameworks to their retry policies. It is immutable once built and
// safe for concurrent use.
type PolicyRegistry struct {
	policies map[Framework]Policy
}

// NewPolicyRegistry resolves specs into a registry.
func NewPolicyRegistry(specs map[Framework]PolicySpec) (*PolicyRegistry, error) {
	var errs error
	r := &PolicyRegistry{policies: map[Framework]Policy{}}
	for fw, spec := range specs {
		p, err := BuildPolicy(fw, spec)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		r.policies[fw] = p
	}
	if errs != nil {
		return nil, errs
	}
	return r, nil
}

// DefaultPolicyRegistry returns a registry holding DefaultPolicySpecs.
func DefaultPolicyRegistry() *PolicyRegistry {
	r, err := NewPolicyRegistry(DefaultPolicySpecs())
	if err != nil {
		panic(fmt.Sprintf("invalid built-in retry policies: %v", err))
	}
	return r
}

// Policy returns the policy of fw.
func (r *PolicyRegistry) Policy(fw Framework) (Policy, bool) {
	p, ok := r.policies[fw]
	return p, ok
}

// IsRetryable reports whether err is retryable for fw.
func (r *PolicyRegistry) IsRetryable(fw Framework, err error) bool {
	if err == nil {
		return false
	}
	for _, m := range r.policies[fw].Matchers {
		if m.Match(err) {
			return true
		}
	}
	return false
}

// IsRetryableStatus reports whether a response status is retryable for fw. extra adds the
// statuses a retry rule lists. It is always false for frameworks without status codes.
func (r *PolicyRegistry) IsRetryableStatus(fw Framework, status int, extra []int) bool {
	if !fw.HasStatusCodes() || status == 0 {
		return false
	}
	if slices.Contains(extra, status) {
		return true
	}
	return r.policies[fw].StatusCodes.Has(status)
}
