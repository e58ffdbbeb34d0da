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

// Package identity holds the service identity of the governed process.
package identity

import (
	"errors"
	"maps"
	"strings"
)

// ServiceIdentity describes the process the engine runs in. It is built once at startup,
// injected into every component that needs it and never mutated afterwards.
type ServiceIdentity struct {
	name     string
	version  string
	metadata map[string]string
}

// New returns a ServiceIdentity. The service name is mandatory, the version may be empty.
func New(name, version string, metadata map[string]string) (*ServiceIdentity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("service name must not be empty")
	}
	return &ServiceIdentity{
		name:     name,
		version:  strings.TrimSpace(version),
		metadata: maps.Clone(metadata),
	}, nil
}

// Name returns the service name.
func (s *ServiceIdentity) Name() string {
	return s.name
}

// Version returns the service version, possibly empty.
func (s *ServiceIdentity) Version() string {
	return s.version
}

// Metadata returns a copy of the identity metadata.
func (s *ServiceIdentity) Metadata() map[string]string {
	return maps.Clone(s.metadata)
}

func (s *ServiceIdentity) String() string {
	if s.version == "" {
		return s.name
	}
	return s.name + ":" + s.version
}
