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

// Package v1alpha1 contains the configuration API of the traffic governor.
package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	GroupName = "governance.k8s.io"
	Version   = "v1alpha1"
	Kind      = "GovernorConfig"
)

// APIVersion is the apiVersion a GovernorConfig document must declare.
var APIVersion = GroupName + "/" + Version

// GovernorConfig is the configuration of the traffic governor.
type GovernorConfig struct {
	metav1.TypeMeta `json:",inline"`

	// Identity is the service this process governs calls for.
	// +optional
	Identity IdentityConfig `json:"identity,omitempty"`

	// Categories overrides the config key prefix of rule categories.
	// +optional
	Categories []CategoryConfig `json:"categories,omitempty"`

	// RetryPolicies replaces the built-in retry policy of the listed frameworks.
	// +optional
	RetryPolicies []RetryPolicy `json:"retryPolicies,omitempty"`

	// Discovery configures how service instances are found.
	// +optional
	Discovery DiscoveryConfig `json:"discovery,omitempty"`
}

// IdentityConfig names the local service.
type IdentityConfig struct {
	Service  string            `json:"service,omitempty"`
	Version  string            `json:"version,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// CategoryConfig configures one rule category.
type CategoryConfig struct {
	// Name is one of retry, flow or circuitbreaker.
	Name string `json:"name"`
	// Prefix is the config key prefix, e.g. "servicecomb.retry.".
	Prefix string `json:"prefix"`
}

// RetryPolicy lists what is retryable for one framework.
type RetryPolicy struct {
	// Framework is one of DubboApache, DubboAlibaba, SpringRest, GRPC or HTTP.
	Framework string `json:"framework"`
	// Errors are error matcher expressions such as "grpc:Unavailable", "net:timeout" or an error kind.
	// +optional
	Errors []string `json:"errors,omitempty"`
	// StatusCodes are retried for frameworks with response statuses.
	// +optional
	StatusCodes []int `json:"statusCodes,omitempty"`
}

// DiscoveryConfig configures Pod based instance discovery.
type DiscoveryConfig struct {
	// DefaultPort is used for Pods without a port annotation.
	// +optional
	DefaultPort int32 `json:"defaultPort,omitempty"`
}
