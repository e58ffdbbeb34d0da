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

// Package retry decides whether a failed call is retried and runs the retries, making sure
// a call chain is never retried by more than one layer at a time.
package retry

import (
	"fmt"
	"strings"
)

// Framework identifies the RPC framework a call was made with. Each framework has its own
// error taxonomy.
type Framework int

const (
	FrameworkUnknown Framework = iota
	DubboApache
	DubboAlibaba
	SpringRest
	GRPC
	HTTP
)

var frameworkNames = map[Framework]string{
	DubboApache:  "DubboApache",
	DubboAlibaba: "DubboAlibaba",
	SpringRest:   "SpringRest",
	GRPC:         "GRPC",
	HTTP:         "HTTP",
}

// Frameworks returns every known framework.
func Frameworks() []Framework {
	return []Framework{DubboApache, DubboAlibaba, SpringRest, GRPC, HTTP}
}

func (f Framework) String() string {
	if name, ok := frameworkNames[f]; ok {
		return name
	}
	return "Unknown"
}

// HasStatusCodes reports whether responses of the framework carry a status code.
// RPC frameworks without one are retried on errors only.
func (f Framework) HasStatusCodes() bool {
	return f == SpringRest || f == HTTP
}

// ParseFramework parses a framework name, ignoring case.
func ParseFramework(name string) (Framework, error) {
	for f, n := range frameworkNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return f, nil
		}
	}
	return FrameworkUnknown, fmt.Errorf("unknown framework %q", name)
}
