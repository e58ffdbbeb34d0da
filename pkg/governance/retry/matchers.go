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
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Matcher expression prefixes understood by ParseMatcher.
const (
	grpcPrefix = "grpc:"

	NetTimeout      = "net:timeout"
	NetRefused      = "net:refused"
	NetReset        = "net:reset"
	ContextDeadline = "context:deadline"
	IOEOF           = "io:eof"
)

// ErrorMatcher recognizes one kind of error.
type ErrorMatcher interface {
	Match(err error) bool
	String() string
}

// KindError is implemented by host errors that name their kind, e.g. "RemotingException".
type KindError interface {
	error
	ErrorKind() string
}

type kindError struct {
	kind string
	err  error
}

func (e *kindError) Error() string     { return e.kind + ": " + e.err.Error() }
func (e *kindError) Unwrap() error     { return e.err }
func (e *kindError) ErrorKind() string { return e.kind }

// WithKind wraps err so that it is recognized by kind matchers for kind.
func WithKind(err error, kind string) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: err}
}

type kindMatcher struct {
	kind string
}

func (m kindMatcher) Match(err error) bool {
	for err != nil {
		if k, ok := err.(KindError); ok && k.ErrorKind() == m.kind {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

func (m kindMatcher) String() string { return m.kind }

type grpcCodeMatcher struct {
	code codes.Code
}

func (m grpcCodeMatcher) Match(err error) bool {
	if err == nil {
		return false
	}
	s, ok := status.FromError(err)
	return ok && s.Code() == m.code
}

func (m grpcCodeMatcher) String() string { return grpcPrefix + m.code.String() }

type funcMatcher struct {
	name  string
	match func(error) bool
}

func (m funcMatcher) Match(err error) bool { return err != nil && m.match(err) }
func (m funcMatcher) String() string       { return m.name }

var builtinMatchers = map[string]ErrorMatcher{
	NetTimeout: funcMatcher{name: NetTimeout, match: func(err error) bool {
		var ne net.Error
		return errors.As(err, &ne) && ne.Timeout()
	}},
	NetRefused: funcMatcher{name: NetRefused, match: func(err error) bool {
		return errors.Is(err, syscall.ECONNREFUSED)
	}},
	NetReset: funcMatcher{name: NetReset, match: func(err error) bool {
		return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE)
	}},
	ContextDeadline: funcMatcher{name: ContextDeadline, match: func(err error) bool {
		return errors.Is(err, context.DeadlineExceeded)
	}},
	IOEOF: funcMatcher{name: IOEOF, match: func(err error) bool {
		return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
	}},
}

var grpcCodes = func() map[string]codes.Code {
	m := map[string]codes.Code{}
	for c := codes.OK; c <= codes.Unauthenticated; c++ {
		m[strings.ToLower(c.String())] = c
	}
	return m
}()

// ParseMatcher builds a matcher from its textual form:
//
//	grpc:<Code>       gRPC status code, e.g. grpc:Unavailable
//	net:timeout       network timeout
//	net:refused       connection refused
//	net:reset         connection reset or broken pipe
//	context:deadline  context deadline exceeded
//	io:eof            unexpected end of stream
//	anything else     an error kind reported through KindError
func ParseMatcher(expr string) (ErrorMatcher, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("empty error matcher")
	}
	if m, ok := builtinMatchers[strings.ToLower(expr)]; ok {
		return m, nil
	}
	if code, ok := strings.CutPrefix(expr, grpcPrefix); ok {
		c, found := grpcCodes[strings.ToLower(strings.TrimSpace(code))]
		if !found {
			return nil, fmt.Errorf("unknown gRPC code %q", code)
		}
		return grpcCodeMatcher{code: c}, nil
	}
	for _, reserved := range []string{"net:", "context:", "io:"} {
		if strings.HasPrefix(strings.ToLower(expr), reserved) {
			return nil, fmt.Errorf("unknown error matcher %q", expr)
		}
	}
	return kindMatcher{kind: expr}, nil
}
