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

	"github.com/google/uuid"
)

// ChainHeader carries the chain id across hops for transports that propagate it.
const ChainHeader = "x-governance-retry-chain"

type chainIDKey struct{}

// WithChainID returns a copy of ctx carrying the retry chain id.
func WithChainID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, chainIDKey{}, id)
}

// ChainIDFromContext returns the retry chain id carried by ctx.
func ChainIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(chainIDKey{}).(string)
	return id, ok && id != ""
}

// EnsureChainID returns ctx and its chain id, starting a new chain when ctx has none.
func EnsureChainID(ctx context.Context) (context.Context, string) {
	if id, ok := ChainIDFromContext(ctx); ok {
		return ctx, id
	}
	id := uuid.NewString()
	return WithChainID(ctx, id), id
}
