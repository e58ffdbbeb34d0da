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

package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

func TestNewVerbosity(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Verbosity: VERBOSE, Output: &buf})

	logger.V(VERBOSE).Info("rule churn")
	logger.V(DEBUG).Info("call decision")

	assert.Contains(t, buf.String(), "rule churn")
	assert.NotContains(t, buf.String(), "call decision")
}

func TestScopedLoggers(t *testing.T) {
	var buf bytes.Buffer
	ctx := log.IntoContext(context.Background(), New(Options{Verbosity: DEFAULT, Output: &buf}))

	ctx, _ = WithValues(ctx, "source", "redis")
	log.FromContext(ctx).Info("polled")
	ForRule(ctx, "retry", "checkout").Info("resolved")

	out := buf.String()
	assert.Contains(t, out, `"source":"redis"`)
	assert.Contains(t, out, `"category":"retry"`)
	assert.Contains(t, out, `"businessKey":"checkout"`)
}
