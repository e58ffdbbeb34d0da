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

// Package redis reads the flat governance configuration from a Redis hash.
package redis

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"k8s.io/apimachinery/pkg/util/wait"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/manager"

	"sigs.k8s.io/traffic-governance/pkg/governance/controller"
	logutil "sigs.k8s.io/traffic-governance/pkg/governance/util/logging"
)

// DefaultPollInterval is used when Source.Interval is not set.
const DefaultPollInterval = 10 * time.Second

// HashReader is the subset of the Redis client the source needs.
type HashReader interface {
	HGetAll(ctx context.Context, key string) *goredis.MapStringStringCmd
}

// NewClient connects to the Redis server at url, e.g. "redis://localhost:6379/0".
func NewClient(ctx context.Context, url, password string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// Source polls one Redis hash and hands its fields to the Applier whenever the hash
// changed. A failed read leaves the last applied configuration in force.
type Source struct {
	Client   HashReader
	Key      string
	Interval time.Duration
	Applier  controller.ConfigApplier

	mu      sync.Mutex
	last    map[string]string
	applied bool
}

var _ manager.Runnable = &Source{}
var _ manager.LeaderElectionRunnable = &Source{}

// Start polls until ctx is done.
func (s *Source) Start(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ctx, logger := logutil.WithValues(ctx, "source", "redis", "key", s.Key)
	logger.Info("Starting Redis config source", "interval", interval)
	wait.UntilWithContext(ctx, func(ctx context.Context) {
		_ = s.Poll(ctx)
	}, interval)
	return nil
}

// NeedLeaderElection is false: every replica resolves rules for itself.
func (s *Source) NeedLeaderElection() bool {
	return false
}

// Poll reads the hash once and applies it if it differs from the last applied content.
func (s *Source) Poll(ctx context.Context) error {
	logger := log.FromContext(ctx)
	data, err := s.Client.HGetAll(ctx, s.Key).Result()
	if err != nil {
		logger.Error(err, "Failed to read governance config from Redis, keeping the last applied config")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applied && maps.Equal(s.last, data) {
		logger.V(logutil.TRACE).Info("Governance config unchanged")
		return nil
	}
	logger.V(logutil.VERBOSE).Info("Applying governance config from Redis", "keys", len(data))
	s.Applier.ApplyConfig(ctx, data)
	s.last = maps.Clone(data)
	s.applied = true
	return nil
}
