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

// Package rules defines the typed governance rules and the codec that decodes them from
// their textual configuration bodies.
//
// Each rule category (retry, flow, circuit breaker) has its own schema. A rule body is
// YAML; it is decoded into the category struct after defaults have been applied, so any
// field written by the author overrides the default.
package rules

import (
	"sort"
)

// Category identifies a namespace of rules sharing one config key prefix and one schema.
type Category string

const (
	CategoryRetry          Category = "retry"
	CategoryFlow           Category = "flow"
	CategoryCircuitBreaker Category = "circuitbreaker"
)

// Categories returns all known categories, sorted.
func Categories() []Category {
	cs := []Category{CategoryRetry, CategoryFlow, CategoryCircuitBreaker}
	sort.Slice(cs, func(i, j int) bool { return cs[i] < cs[j] })
	return cs
}

// DefaultPrefix is the config key prefix used when none is configured, e.g. "retry.".
func (c Category) DefaultPrefix() string {
	return string(c) + "."
}

// Rule is implemented by every category struct.
type Rule interface {
	// GetName returns the business key the rule is stored under.
	GetName() string
	// SetName overwrites the name. Only the resolver calls it.
	SetName(name string)
	// GetServices returns the raw service[:version] scope filter.
	GetServices() string
	// Validate checks category specific field constraints.
	Validate() error
}

// Defaulter is implemented by rules that have default field values.
type Defaulter interface {
	Default()
}

// Base holds the fields every rule carries.
type Base struct {
	// Name is the business key. Any value written by the rule author is overwritten.
	Name string `json:"name,omitempty"`
	// Services is a comma separated service[:version] list. Empty means every service.
	Services string `json:"services,omitempty"`
}

func (b *Base) GetName() string {
	return b.Name
}

func (b *Base) SetName(name string) {
	b.Name = name
}

func (b *Base) GetServices() string {
	return b.Services
}
