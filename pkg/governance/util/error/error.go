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

package error

import (
	"errors"
	"fmt"
)

// Error is an error struct for errors returned by the governance engine.
type Error struct {
	Code string
	Msg  string
	Err  error
}

const (
	Unknown             = "Unknown"
	MalformedConfig     = "MalformedConfig"
	InvalidRule         = "InvalidRule"
	RegistryUnavailable = "RegistryUnavailable"
	Internal            = "Internal"
)

// Error returns a string version of the error.
func (e Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("governance error - %s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("governance error - %s: %s", e.Code, e.Msg)
}

// Unwrap returns the underlying cause, if any.
func (e Error) Unwrap() error {
	return e.Err
}

// CanonicalCode returns the error's Code if err is (or wraps) an Error, Unknown otherwise.
func CanonicalCode(err error) string {
	var e Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Unknown
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return CanonicalCode(err) == code
}
