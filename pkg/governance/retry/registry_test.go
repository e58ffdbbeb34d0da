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
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestParseFramework(t *testing.T) {
	for _, fw := range Frameworks() {
		got, err := ParseFramework(fw.String())
		require.NoError(t, err)
		assert.Equal(t, fw, got)
	}
	got, err := ParseFramework(" dubboapache ")
	require.NoError(t, err)
	assert.Equal(t, DubboApache, got)

	_, err = ParseFramework("thrift")
	assert.Error(t, err)
	assert.Equal(t, "Unknown", FrameworkUnknown.String())
}

func TestHasStatusCodes(t *testing.T) {
	assert.True(t, HTTP.HasStatusCodes())
	assert.True(t, SpringRest.HasStatusCodes())
	assert.False(t, DubboApache.HasStatusCodes())
	assert.False(t, DubboAlibaba.HasStatusCodes())
	assert.False(t, GRPC.HasStatusCodes())
}

func TestParseMatcher(t *testing.T) {
	timeout := &net.DNSError{Err: "i/o timeout", IsTimeout: true}
	refused := &net.OpError{Op: "dial", Err: &os.SyscallError{Syscall: "connect", Err: syscall.ECONNREFUSED}}
	tests := []struct {
		expr    string
		wantErr bool
		match   []error
		noMatch []error
	}{
		{expr: NetTimeout, match: []error{timeout, fmt.Errorf("call: %w", timeout)}, noMatch: []error{refused}},
		{expr: NetRefused, match: []error{refused}, noMatch: []error{timeout}},
		{expr: NetReset, match: []error{fmt.Errorf("read: %w", syscall.ECONNRESET)}, noMatch: []error{refused}},
		{expr: ContextDeadline, match: []error{context.DeadlineExceeded}, noMatch: []error{context.Canceled}},
		{expr: IOEOF, match: []error{io.EOF, io.ErrUnexpectedEOF}, noMatch: []error{errors.New("eof")}},
		{
			expr:    "grpc:Unavailable",
			match:   []error{status.Error(codes.Unavailable, "down"), fmt.Errorf("wrapped: %w", status.Error(codes.Unavailable, "down"))},
			noMatch: []error{status.Error(codes.NotFound, "missing"), errors.New("plain")},
		},
		{expr: "grpc:deadlineexceeded", match: []error{status.Error(codes.DeadlineExceeded, "slow")}},
		{
			expr:    "RemotingException",
			match:   []error{WithKind(errors.New("boom"), "RemotingException"), fmt.Errorf("outer: %w", WithKind(io.EOF, "RemotingException"))},
			noMatch: []error{WithKind(errors.New("boom"), "RpcException"), errors.New("RemotingException")},
		},
		{expr: "", wantErr: true},
		{expr: "grpc:Bogus", wantErr: true},
		{expr: "net:flaky", wantErr: true},
	}
	for _, test := range tests {
		t.Run(test.expr, func(t *testing.T) {
			m, err := ParseMatcher(test.expr)
			if test.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			for _, e := range test.match {
				assert.True(t, m.Match(e), "%s should match %v", m, e)
			}
			for _, e := range test.noMatch {
				assert.False(t, m.Match(e), "%s should not match %v", m, e)
			}
			assert.False(t, m.Match(nil))
		})
	}
}

func TestWithKindNil(t *testing.T) {
	assert.NoError(t, WithKind(nil, "RemotingException"))
}

func TestPolicyRegistry(t *testing.T) {
	r := DefaultPolicyRegistry()

	assert.True(t, r.IsRetryable(DubboApache, WithKind(errors.New("x"), "RemotingException")))
	assert.False(t, r.IsRetryable(DubboApache, WithKind(errors.New("x"), "BizException")))
	assert.True(t, r.IsRetryable(GRPC, status.Error(codes.Unavailable, "down")))
	assert.False(t, r.IsRetryable(GRPC, status.Error(codes.InvalidArgument, "bad")))
	assert.False(t, r.IsRetryable(HTTP, nil))
	assert.False(t, r.IsRetryable(FrameworkUnknown, io.EOF))

	assert.True(t, r.IsRetryableStatus(HTTP, 503, nil))
	assert.False(t, r.IsRetryableStatus(HTTP, 500, nil))
	assert.True(t, r.IsRetryableStatus(HTTP, 500, []int{500}))
	assert.True(t, r.IsRetryableStatus(SpringRest, 502, nil))
	// RPC frameworks are never retried on status.
	assert.False(t, r.IsRetryableStatus(DubboApache, 503, []int{503}))
	assert.False(t, r.IsRetryableStatus(HTTP, 0, []int{0}))
}

func TestNewPolicyRegistryErrors(t *testing.T) {
	_, err := NewPolicyRegistry(map[Framework]PolicySpec{
		GRPC:        {Errors: []string{"grpc:Nope"}, StatusCodes: []int{503}},
		HTTP:        {StatusCodes: []int{42}},
		DubboApache: {Errors: []string{"RemotingException"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown gRPC code "Nope"`)
	assert.Contains(t, err.Error(), "GRPC: framework has no status codes")
	assert.Contains(t, err.Error(), "HTTP: invalid status code 42")

	r, err := NewPolicyRegistry(map[Framework]PolicySpec{DubboApache: {Errors: []string{"RemotingException"}}})
	require.NoError(t, err)
	p, ok := r.Policy(DubboApache)
	require.True(t, ok)
	assert.Len(t, p.Matchers, 1)
	_, ok = r.Policy(HTTP)
	assert.False(t, ok)
}

func TestChainID(t *testing.T) {
	ctx := context.Background()
	_, ok := ChainIDFromContext(ctx)
	assert.False(t, ok)

	ctx, id := EnsureChainID(ctx)
	assert.NotEmpty(t, id)
	again, sameID := EnsureChainID(ctx)
	assert.Equal(t, id, sameID)
	got, ok := ChainIDFromContext(again)
	assert.True(t, ok)
	assert.Equal(t, id, got)

	_, ok = ChainIDFromContext(WithChainID(context.Background(), ""))
	assert.False(t, ok)
}
