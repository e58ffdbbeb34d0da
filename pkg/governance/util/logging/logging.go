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

// Package logging holds the verbosity levels of the governance engine and the helpers that
// build and scope its loggers.
package logging

import (
	"context"
	"io"

	"github.com/go-logr/logr"
	uberzap "go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// Verbosity levels passed to logr.Logger.V. Rule churn is logged at VERBOSE, per call
// decisions at DEBUG and per instance listings at TRACE.
const (
	DEFAULT = 2
	VERBOSE = 3
	DEBUG   = 4
	TRACE   = 5
)

// Options configures a logger built by New.
type Options struct {
	// Verbosity n enables V(0) through V(n).
	Verbosity int
	// Development switches to the console encoder and stack traces on warnings.
	Development bool
	// Output defaults to stderr.
	Output io.Writer
}

// New builds a zap backed logr.Logger.
func New(opts Options) logr.Logger {
	zapOpts := []zap.Opts{
		zap.UseDevMode(opts.Development),
		zap.Level(uberzap.NewAtomicLevelAt(zapcore.Level(int8(-opts.Verbosity)))),
		zap.RawZapOpts(uberzap.AddCaller()),
	}
	if opts.Output != nil {
		zapOpts = append(zapOpts, zap.WriteTo(opts.Output))
	}
	return zap.New(zapOpts...)
}

// NewTestLogger returns a development logger that prints up to DEBUG.
func NewTestLogger() logr.Logger {
	return New(Options{Verbosity: DEBUG, Development: true})
}

// NewTestLoggerIntoContext returns ctx carrying NewTestLogger.
func NewTestLoggerIntoContext(ctx context.Context) context.Context {
	return log.IntoContext(ctx, NewTestLogger())
}

// WithValues returns ctx carrying its logger extended with keysAndValues, and that logger.
func WithValues(ctx context.Context, keysAndValues ...any) (context.Context, logr.Logger) {
	logger := log.FromContext(ctx).WithValues(keysAndValues...)
	return log.IntoContext(ctx, logger), logger
}

// ForRule returns the logger of ctx scoped to one rule.
func ForRule(ctx context.Context, category, businessKey string) logr.Logger {
	return log.FromContext(ctx).WithValues("category", category, "businessKey", businessKey)
}
