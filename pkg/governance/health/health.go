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

// Package health implements the gRPC health service of the governor.
package health

import (
	"context"

	"google.golang.org/grpc/codes"
	healthPb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"sigs.k8s.io/controller-runtime/pkg/log"

	logutil "sigs.k8s.io/traffic-governance/pkg/governance/util/logging"
)

// ReadinessChecker reports whether the engine has applied a configuration.
type ReadinessChecker interface {
	HasSynced() bool
}

// Server answers SERVING once the checker is ready and NOT_SERVING before.
type Server struct {
	healthPb.UnimplementedHealthServer
	Checker ReadinessChecker
}

func NewServer(checker ReadinessChecker) *Server {
	return &Server{Checker: checker}
}

func (s *Server) Check(ctx context.Context, in *healthPb.HealthCheckRequest) (*healthPb.HealthCheckResponse, error) {
	if !s.Checker.HasSynced() {
		log.FromContext(ctx).V(logutil.VERBOSE).Info("gRPC health check not serving", "service", in.GetService())
		return &healthPb.HealthCheckResponse{Status: healthPb.HealthCheckResponse_NOT_SERVING}, nil
	}
	log.FromContext(ctx).V(logutil.TRACE).Info("gRPC health check serving", "service", in.GetService())
	return &healthPb.HealthCheckResponse{Status: healthPb.HealthCheckResponse_SERVING}, nil
}

func (s *Server) Watch(in *healthPb.HealthCheckRequest, srv healthPb.Health_WatchServer) error {
	return status.Error(codes.Unimplemented, "Watch is not implemented")
}
