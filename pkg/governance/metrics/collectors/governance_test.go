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
	"strings"
	"testing"

	"k8s.io/component-base/metrics/testutil"

	"sigs.k8s.io/traffic-governance/pkg/governance/datastore"
	"sigs.k8s.io/traffic-governance/pkg/governance/rules"
	utiltest "sigs.k8s.io/traffic-governance/pkg/governance/util/testing"
)

type fixedCounts map[rules.Category]int

func (f fixedCounts) RuleCounts() map[rules.Category]int { return f }

func TestRulesCollected(t *testing.T) {
	collector := NewGovernanceCollector(fixedCounts{rules.CategoryRetry: 2, rules.CategoryFlow: 1}, nil)

	err := testutil.CollectAndCompare(collector, strings.NewReader(`
		# HELP traffic_governance_rules_stored [ALPHA] Number of rules currently in force, broken out by rule category.
		# TYPE traffic_governance_rules_stored gauge
		traffic_governance_rules_stored{category="circuitbreaker"} 0
		traffic_governance_rules_stored{category="flow"} 1
		traffic_governance_rules_stored{category="retry"} 2
`), "traffic_governance_rules_stored")
	if err != nil {
		t.Fatal(err)
	}
}

func TestNoInstancesCollectedBeforeSync(t *testing.T) {
	ds := datastore.NewDatastore(8080)
	ds.InstanceUpdateOrAddIfNotExist(utiltest.MakePod("a").IP("10.0.0.1").
		Labels(map[string]string{datastore.ServiceLabel: "svcA"}).ObjRef())

	collector := NewGovernanceCollector(fixedCounts{}, ds)
	if err := testutil.CollectAndCompare(collector, strings.NewReader(""), "traffic_governance_instances"); err != nil {
		t.Fatal(err)
	}
}

func TestInstancesCollected(t *testing.T) {
	ds := datastore.NewDatastore(8080)
	for name, labels := range map[string]map[string]string{
		"a-1": {datastore.ServiceLabel: "svcA", datastore.VersionLabel: "v1"},
		"a-2": {datastore.ServiceLabel: "svcA", datastore.VersionLabel: "v1"},
		"a-3": {datastore.ServiceLabel: "svcA", datastore.VersionLabel: "v2"},
		"b-1": {datastore.ServiceLabel: "svcB"},
	} {
		ds.InstanceUpdateOrAddIfNotExist(utiltest.MakePod(name).IP("10.0.0." + name[2:]).Labels(labels).ObjRef())
	}
	ds.MarkSynced()

	collector := NewGovernanceCollector(fixedCounts{}, ds)
	err := testutil.CollectAndCompare(collector, strings.NewReader(`
		# HELP traffic_governance_instances [ALPHA] Number of discovered service instances, broken out by service and version.
		# TYPE traffic_governance_instances gauge
		traffic_governance_instances{service="svcA",version="v1"} 2
		traffic_governance_instances{service="svcA",version="v2"} 1
		traffic_governance_instances{service="svcB",version=""} 1
`), "traffic_governance_instances")
	if err != nil {
		t.Fatal(err)
	}
}
