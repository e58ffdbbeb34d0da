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

package controller

import (
	"context"
	"errors"

	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/manager"

	"sigs.k8s.io/traffic-governance/pkg/governance/datastore"
)

// CacheWaiter is implemented by the manager cache.
type CacheWaiter interface {
	WaitForCacheSync(ctx context.Context) bool
}

// InstanceSyncer performs the initial Pod listing once the informer cache is ready and then
// marks the datastore synced, so that routing stops reporting an unavailable registry.
type InstanceSyncer struct {
	Reader    client.Reader
	Cache     CacheWaiter
	Datastore datastore.Datastore
	Namespace string
}

var _ manager.Runnable = &InstanceSyncer{}
var _ manager.LeaderElectionRunnable = &InstanceSyncer{}

func (s *InstanceSyncer) Start(ctx context.Context) error {
	if !s.Cache.WaitForCacheSync(ctx) {
		return errors.New("informer cache did not sync")
	}
	if err := s.Datastore.InstanceResyncAll(ctx, s.Reader, s.Namespace); err != nil {
		return err
	}
	s.Datastore.MarkSynced()
	log.FromContext(ctx).Info("Instance cache synced", "services", s.Datastore.Services())
	return nil
}

// NeedLeaderElection is false: every replica keeps its own instance cache.
func (s *InstanceSyncer) NeedLeaderElection() bool {
	return false
}
