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
	"strings"

	"go.uber.org/multierr"
	"sigs.k8s.io/yaml"

	errutil "sigs.k8s.io/traffic-governance/pkg/governance/util/error"
)

// Codec turns a raw rule body into a typed rule.
type Codec[R Rule] interface {
	// Decode parses raw and checks that the required fields are present.
	// Semantic checks are left to Rule.Validate.
	Decode(raw string) (R, error)
}

// rulePtr constrains R to be a pointer to T implementing Rule.
type rulePtr[T any] interface {
	*T
	Rule
}

type yamlCodec[T any, R rulePtr[T]] struct {
	required []string
}

// NewYAMLCodec returns a Codec decoding YAML (or JSON) bodies into *T.
// required lists the top-level fields a body must set.
func NewYAMLCodec[T any, R rulePtr[T]](required ...string) Codec[R] {
	return &yamlCodec[T, R]{required: required}
}

// NewRetryCodec returns the codec for the retry category.
func NewRetryCodec() Codec[*RetryRule] {
	return NewYAMLCodec[RetryRule](RetryRequiredFields...)
}

// NewFlowCodec returns the codec for the flow category.
func NewFlowCodec() Codec[*FlowRule] {
	return NewYAMLCodec[FlowRule](FlowRequiredFields...)
}

// NewCircuitBreakerCodec returns the codec for the circuit breaker category.
func NewCircuitBreakerCodec() Codec[*CircuitBreakerRule] {
	return NewYAMLCodec[CircuitBreakerRule](CircuitBreakerRequiredFields...)
}

func (c *yamlCodec[T, R]) Decode(raw string) (R, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errutil.Error{Code: errutil.MalformedConfig, Msg: "empty rule body"}
	}

	var fields map[string]any
	if err := yaml.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, errutil.Error{Code: errutil.MalformedConfig, Msg: "rule body is not a YAML mapping", Err: err}
	}
	if fields == nil {
		return nil, errutil.Error{Code: errutil.MalformedConfig, Msg: "rule body is empty"}
	}

	var missing error
	for _, f := range c.required {
		if v, ok := fields[f]; !ok || v == nil {
			missing = multierr.Append(missing, fmt.Errorf("missing required field %q", f))
		}
	}
	if missing != nil {
		return nil, errutil.Error{Code: errutil.InvalidRule, Msg: "rule body is incomplete", Err: missing}
	}

	rule := R(new(T))
	if d, ok := any(rule).(Defaulter); ok {
		d.Default()
	}
	if err := yaml.Unmarshal([]byte(raw), rule); err != nil {
		return nil, errutil.Error{Code: errutil.MalformedConfig, Msg: "failed to decode rule body", Err: err}
	}
	return rule, nil
}
