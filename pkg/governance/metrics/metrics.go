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

package metrics

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	compbasemetrics "k8s.io/component-base/metrics"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

const (
	GovernanceComponent = "traffic_governance"
)

// Resolution outcomes.
const (
	OutcomeApplied    = "applied"
	OutcomeRemoved    = "removed"
	OutcomeMalformed  = "malformed"
	OutcomeInvalid    = "invalid"
	OutcomeOutOfScope = "out_of_scope"
	OutcomeIgnored    = "ignored"
)

var (
	ruleResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: GovernanceComponent,
			Name:      "rule_resolutions_total",
			Help:      HelpMsgWithStability("Counter of rule resolutions broken out by rule category and outcome.", compbasemetrics.ALPHA),
		},
		[]string{"category", "outcome"},
	)

	listenerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: GovernanceComponent,
			Name:      "listener_failures_total",
			Help:      HelpMsgWithStability("Counter of rule change listeners that returned an error or panicked.", compbasemetrics.ALPHA),
		},
		[]string{"category"},
	)

	retryDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: GovernanceComponent,
			Name:      "retry_decisions_total",
			Help:      HelpMsgWithStability("Counter of retry decisions broken out by framework and decision.", compbasemetrics.ALPHA),
		},
		[]string{"framework", "decision"},
	)

	retryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: GovernanceComponent,
			Name:      "retry_attempts_total",
			Help:      HelpMsgWithStability("Counter of retried call attempts broken out by framework.", compbasemetrics.ALPHA),
		},
		[]string{"framework"},
	)

	routingFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: GovernanceComponent,
			Name:      "routing_failures_total",
			Help:      HelpMsgWithStability("Counter of gray routing failures broken out by target service and reason.", compbasemetrics.ALPHA),
		},
		[]string{"service", "reason"},
	)

	flowRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: GovernanceComponent,
			Name:      "flow_rejections_total",
			Help:      HelpMsgWithStability("Counter of requests rejected by flow rules broken out by business key.", compbasemetrics.ALPHA),
		},
		[]string{"business_key"},
	)
)

var registerMetrics sync.Once

// Register all metrics, plus any extra collectors, on the controller-runtime registry.
func Register(customCollectors ...prometheus.Collector) {
	registerMetrics.Do(func() {
		ctrlmetrics.Registry.MustRegister(ruleResolutions)
		ctrlmetrics.Registry.MustRegister(listenerFailures)
		ctrlmetrics.Registry.MustRegister(retryDecisions)
		ctrlmetrics.Registry.MustRegister(retryAttempts)
		ctrlmetrics.Registry.MustRegister(routingFailures)
		ctrlmetrics.Registry.MustRegister(flowRejections)
		for _, collector := range customCollectors {
			ctrlmetrics.Registry.MustRegister(collector)
		}
	})
}

// Reset resets all metrics. Used by tests only.
func Reset() {
	ruleResolutions.Reset()
	listenerFailures.Reset()
	retryDecisions.Reset()
	retryAttempts.Reset()
	routingFailures.Reset()
	flowRejections.Reset()
}

// HelpMsgWithStability prefixes a help message with its stability level, the way
// k8s.io/component-base metrics render it.
func HelpMsgWithStability(msg string, stability compbasemetrics.StabilityLevel) string {
	return fmt.Sprintf("[%v] %v", stability, msg)
}

// RecordRuleResolution counts the outcome of resolving one business key.
func RecordRuleResolution(category, outcome string) {
	ruleResolutions.WithLabelValues(category, outcome).Inc()
}

// RecordListenerFailure counts a failed rule change listener.
func RecordListenerFailure(category string) {
	listenerFailures.WithLabelValues(category).Inc()
}

// RecordRetryDecision counts a retry decision.
func RecordRetryDecision(framework, decision string) {
	retryDecisions.WithLabelValues(framework, decision).Inc()
}

// RecordRetryAttempt counts one retried attempt.
func RecordRetryAttempt(framework string) {
	retryAttempts.WithLabelValues(framework).Inc()
}

// RecordRoutingFailure counts a call that could not be routed.
func RecordRoutingFailure(service, reason string) {
	routingFailures.WithLabelValues(service, reason).Inc()
}

// RecordFlowRejection counts a request rejected by a flow rule.
func RecordFlowRejection(businessKey string) {
	flowRejections.WithLabelValues(businessKey).Inc()
}
