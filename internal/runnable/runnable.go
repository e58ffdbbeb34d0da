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

// Package runnable adapts servers and components to controller-runtime manager runnables.
package runnable

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/manager"
)

type leaderElection struct {
	manager.Runnable
	needsLeaderElection bool
}

// NoLeaderElection wraps runnable so that it runs on every replica, leader or not.
func NoLeaderElection(runnable manager.Runnable) manager.Runnable {
	return &leaderElection{Runnable: runnable}
}

func (r *leaderElection) NeedLeaderElection() bool {
	return r.needsLeaderElection
}

// GRPCServer turns srv into a runnable serving on port until the manager stops.
// name is only used for logging.
func GRPCServer(name string, srv *grpc.Server, port int) manager.Runnable {
	return manager.RunnableFunc(func(ctx context.Context) error {
		log := ctrl.Log.WithValues("name", name)
		log.Info("gRPC server starting", "port", port)

		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			log.Error(err, "gRPC server failed to listen")
			return err
		}
		return serveGRPC(ctx, name, srv, lis)
	})
}

func serveGRPC(ctx context.Context, name string, srv *grpc.Server, lis net.Listener) error {
	log := ctrl.Log.WithValues("name", name)
	doneCh := make(chan struct{})
	defer close(doneCh)
	go func() {
		select {
		case <-ctx.Done():
			log.Info("gRPC server shutting down")
			srv.GracefulStop()
		case <-doneCh:
		}
	}()

	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		log.Error(err, "gRPC server failed")
		return err
	}
	log.Info("gRPC server terminated")
	return nil
}
