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

// Package scope parses and evaluates the service[:version] filter attached to governance rules.
package scope

import (
	"strings"
)

const (
	clauseSeparator  = ","
	versionSeparator = ":"
)

// Clause is a single service[:version] entry. An empty Version matches every version of Service.
type Clause struct {
	Service string
	Version string
}

// Matches reports whether an instance of service at version satisfies the clause.
func (c Clause) Matches(service, version string) bool {
	if c.Service != service {
		return false
	}
	return c.Version == "" || c.Version == version
}

func (c Clause) String() string {
	if c.Version == "" {
		return c.Service
	}
	return c.Service + versionSeparator + c.Version
}

// Scope is a set of clauses OR'd together. An empty Scope matches any service.
type Scope []Clause

// Parse turns a comma separated "svcA:v1,svcB" string into a Scope.
// Blank entries are skipped, so "" and " , " both yield the match-all scope.
func Parse(services string) Scope {
	var s Scope
	for _, raw := range strings.Split(services, clauseSeparator) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		svc, version, _ := strings.Cut(raw, versionSeparator)
		svc = strings.TrimSpace(svc)
		if svc == "" {
			continue
		}
		s = append(s, Clause{Service: svc, Version: strings.TrimSpace(version)})
	}
	return s
}

// IsEmpty reports whether the scope places no restriction on services.
func (s Scope) IsEmpty() bool {
	return len(s) == 0
}

// Matches reports whether any clause accepts service at version.
func (s Scope) Matches(service, version string) bool {
	if s.IsEmpty() {
		return true
	}
	for _, c := range s {
		if c.Matches(service, version) {
			return true
		}
	}
	return false
}

func (s Scope) String() string {
	parts := make([]string, 0, len(s))
	for _, c := range s {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, clauseSeparator)
}
