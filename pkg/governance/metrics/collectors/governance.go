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

package collectors

import (
	"github.com/prometheus/client_golang/prometheus"
	compbasemetrics "k8s.io/component-base/metrics"

	"sigs.k8s.io/traffic-governance/pkg/governance/datastore"
	"sigs.k8s.io/traffic-governance/pkg/governance/metrics"
	"sigs.k8s.io/traffic-governance/pkg/governance/rules"
)

var (
	descRulesStored = prometheus.NewDesc(
		metrics.GovernanceComponent+"_rules_stored",
		metrics.HelpMsgWithStability("Number of rules currently in force, broken out by rule category.", compbasemetrics.ALPHA),
		[]string{
			"category",
		}, nil,
	)

	descInstances = prometheus.NewDesc(
		metrics.GovernanceComponent+"_instances",
		metrics.HelpMsgWithStability("Number of discovered service instances, broken out by service and version.", compbasemetrics.ALPHA),
		[]string{
			"service",
			"version",
		}, nil,
	)
)

// RuleCounter reports the number of stored rules per category.
type RuleCounter interface {
	RuleCounts() map[rules.Category]int
}

type governanceCollector struct {
	rules RuleCounter
	ds    datastore.Datastore
}

// Check if governanceCollector implements necessary interface
var _ prometheus.Collector = &governanceCollector{}

// NewGovernanceCollector implements the prometheus.Collector interface and exposes the
// rules in force and the discovered instances. ds may be nil.
func NewGovernanceCollector(counter RuleCounter, ds datastore.Datastore) prometheus.Collector {
	return &governanceCollector{
		rules: counter,
		ds:    ds,
	}
}

// Describe implements the prometheus.Collector interface.
func (c *governanceCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descRulesStored
	ch <- descInstances
}

// Collect implements the prometheus.Collector interface.
func (c *governanceCollector) Collect(ch chan<- prometheus.Metric) {
	counts := c.rules.RuleCounts()
	for _, category := range rules.Categories() {
		ch <- prometheus.MustNewConstMetric(
			descRulesStored,
			prometheus.GaugeValue,
			float64(counts[category]),
			string(category),
		)
	}

	if c.ds == nil || !c.ds.HasSynced() {
		// Instances not synced yet, no metrics to expose
		return
	}
	type key struct{ service, version string }
	instances := map[key]int{}
	for _, inst := range c.ds.InstanceGetAll() {
		instances[key{inst.ServiceName, inst.Version}]++
	}
	for k, n := range instances {
		ch <- prometheus.MustNewConstMetric(
			descInstances,
			prometheus.GaugeValue,
			float64(n),
			k.service,
			k.version,
		)
	}
}
