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

package loader

import (
	configapi "sigs.k8s.io/traffic-governance/api/config/v1alpha1"
)

// DefaultInstancePort is the instance port for Pods without a port annotation.
const DefaultInstancePort = 8080

// applyDefaults fills in the fields the configuration left out.
func applyDefaults(cfg *configapi.GovernorConfig) {
	if cfg.APIVersion == "" {
		cfg.APIVersion = configapi.APIVersion
	}
	if cfg.Kind == "" {
		cfg.Kind = configapi.Kind
	}
	if cfg.Discovery.DefaultPort == 0 {
		cfg.Discovery.DefaultPort = DefaultInstancePort
	}
	if cfg.Identity.Metadata == nil {
		cfg.Identity.Metadata = map[string]string{}
	}
}
