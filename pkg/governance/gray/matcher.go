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

// Package gray selects the service instances that should receive an outbound call
// according to its gray routing tag.
package gray

import (
	"sigs.k8s.io/traffic-governance/pkg/governance/scope"
	"sigs.k8s.io/traffic-governance/pkg/governance/types"
)

// Matcher filters candidate instances. It holds no state and is safe for concurrent use.
type Matcher struct{}

// Select returns the instances eligible for tag, in their original order.
//
// An instance of tag.Service is eligible when tag.Version is empty or equal to the instance
// version, and when its metadata carries every label of tag.Labels. A tag without a service
// places no restriction, so every instance is returned.
func (m *Matcher) Select(instances []types.ServiceInstance, tag types.TrafficTag) []types.ServiceInstance {
	var clause scope.Scope
	if tag.Service != "" {
		clause = scope.Scope{{Service: tag.Service, Version: tag.Version}}
	}
	result := []types.ServiceInstance{}
	for _, inst := range instances {
		if clause.Matches(inst.ServiceName, inst.Version) && hasLabels(inst, tag.Labels) {
			result = append(result, inst)
		}
	}
	return result
}

// SelectByScope returns the instances matching any clause of s. An empty scope matches all.
func (m *Matcher) SelectByScope(instances []types.ServiceInstance, s scope.Scope) []types.ServiceInstance {
	result := []types.ServiceInstance{}
	for _, inst := range instances {
		if s.Matches(inst.ServiceName, inst.Version) {
			result = append(result, inst)
		}
	}
	return result
}

func hasLabels(inst types.ServiceInstance, labels map[string]string) bool {
	for k, v := range labels {
		if got, ok := inst.Metadata[k]; !ok || got != v {
			return false
		}
	}
	return true
}
