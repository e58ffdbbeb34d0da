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

// Package flowcontrol enforces flow rules with one token bucket per business key.
package flowcontrol

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"sigs.k8s.io/traffic-governance/pkg/governance/metrics"
	"sigs.k8s.io/traffic-governance/pkg/governance/notify"
	"sigs.k8s.io/traffic-governance/pkg/governance/rules"
	"sigs.k8s.io/traffic-governance/pkg/governance/store"
	logutil "sigs.k8s.io/traffic-governance/pkg/governance/util/logging"
)

type limiterEntry struct {
	limitForPeriod int
	refreshPeriod  time.Duration
	limiter        *rate.Limiter
}

// LimiterSet holds the limiters of the current flow rules. It is kept up to date by
// subscribing it to the flow resolver.
type LimiterSet struct {
	mu       sync.RWMutex
	limiters map[string]*limiterEntry
}

var _ notify.Listener[*rules.FlowRule] = &LimiterSet{}

func NewLimiterSet() *LimiterSet {
	return &LimiterSet{limiters: map[string]*limiterEntry{}}
}

// OnRulesChanged replaces the limiters with those of snapshot. The limiter of a rule whose
// limit did not change keeps its tokens.
func (s *LimiterSet) OnRulesChanged(ctx context.Context, _ rules.Category, snapshot store.Snapshot[*rules.FlowRule]) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]*limiterEntry, snapshot.Len())
	snapshot.Range(func(key string, rule *rules.FlowRule) bool {
		period := rule.LimitRefreshPeriod.Duration
		if old, ok := s.limiters[key]; ok && old.limitForPeriod == rule.LimitForPeriod && old.refreshPeriod == period {
			next[key] = old
			return true
		}
		next[key] = &limiterEntry{
			limitForPeriod: rule.LimitForPeriod,
			refreshPeriod:  period,
			limiter:        rate.NewLimiter(rate.Every(period/time.Duration(rule.LimitForPeriod)), rule.LimitForPeriod),
		}
		return true
	})
	s.limiters = next
	log.FromContext(ctx).V(logutil.VERBOSE).Info("Updated flow limiters", "count", len(next))
	return nil
}

// Allow reports whether a request of businessKey may proceed now. Keys without a flow rule
// are always allowed.
func (s *LimiterSet) Allow(businessKey string) bool {
	s.mu.RLock()
	e, ok := s.limiters[businessKey]
	s.mu.RUnlock()
	if !ok {
		return true
	}
	if e.limiter.Allow() {
		return true
	}
	metrics.RecordFlowRejection(businessKey)
	return false
}

// Len returns the number of limited business keys.
func (s *LimiterSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.limiters)
}
