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
	"fmt"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"go.uber.org/multierr"
	"sigs.k8s.io/yaml"

	configapi "sigs.k8s.io/traffic-governance/api/config/v1alpha1"
	"sigs.k8s.io/traffic-governance/pkg/governance/retry"
	"sigs.k8s.io/traffic-governance/pkg/governance/rules"
)

// LoadConfig loads the governor configuration either from configText or, when it is empty,
// from fileName. With neither, the defaults are returned.
func LoadConfig(configText []byte, fileName string, log logr.Logger) (*configapi.GovernorConfig, error) {
	var err error
	if len(configText) == 0 && fileName != "" {
		configText, err = os.ReadFile(fileName)
		if err != nil {
			log.Error(err, "failed to load config file")
			return nil, err
		}
	}

	theConfig := &configapi.GovernorConfig{}
	if len(configText) > 0 {
		if err := yaml.UnmarshalStrict(configText, theConfig); err != nil {
			log.Error(err, "the configuration is invalid")
			return nil, err
		}
		if err := validateTypeMeta(theConfig); err != nil {
			log.Error(err, "the configuration is invalid")
			return nil, err
		}
	}

	applyDefaults(theConfig)

	if err := validateConfiguration(theConfig); err != nil {
		log.Error(err, "the configuration is invalid")
		return nil, err
	}
	return theConfig, nil
}

func validateTypeMeta(cfg *configapi.GovernorConfig) error {
	if cfg.APIVersion != configapi.APIVersion {
		return fmt.Errorf("unsupported apiVersion %q, expected %q", cfg.APIVersion, configapi.APIVersion)
	}
	if cfg.Kind != configapi.Kind {
		return fmt.Errorf("unsupported kind %q, expected %q", cfg.Kind, configapi.Kind)
	}
	return nil
}

func validateConfiguration(cfg *configapi.GovernorConfig) error {
	var errs error

	seen := map[string]bool{}
	for _, c := range cfg.Categories {
		if !isCategory(c.Name) {
			errs = multierr.Append(errs, fmt.Errorf("unknown rule category %q", c.Name))
			continue
		}
		if seen[c.Name] {
			errs = multierr.Append(errs, fmt.Errorf("rule category %q is configured more than once", c.Name))
		}
		seen[c.Name] = true
		if c.Prefix == "" {
			errs = multierr.Append(errs, fmt.Errorf("rule category %q needs a prefix", c.Name))
		}
	}

	errs = multierr.Append(errs, validatePrefixes(Prefixes(cfg)))

	if _, err := BuildPolicyRegistry(cfg); err != nil {
		errs = multierr.Append(errs, err)
	}

	if cfg.Discovery.DefaultPort < 1 || cfg.Discovery.DefaultPort > 65535 {
		errs = multierr.Append(errs, fmt.Errorf("discovery.defaultPort %d is out of range", cfg.Discovery.DefaultPort))
	}
	return errs
}

// validatePrefixes rejects prefixes that could claim the same key. Every resolver takes the
// keys carrying its prefix, so with "retry." and "retry.flow." the key "retry.flow.x" would
// be read as both a retry and a flow rule.
func validatePrefixes(prefixes map[rules.Category]string) error {
	var errs error
	categories := rules.Categories()
	for i, a := range categories {
		for _, b := range categories[i+1:] {
			pa, pb := prefixes[a], prefixes[b]
			switch {
			case pa == pb:
				errs = multierr.Append(errs, fmt.Errorf("rule categories %q and %q share the prefix %q", a, b, pa))
			case strings.HasPrefix(pa, pb), strings.HasPrefix(pb, pa):
				errs = multierr.Append(errs, fmt.Errorf("rule categories %q and %q have overlapping prefixes %q and %q", a, b, pa, pb))
			}
		}
	}
	return errs
}

func isCategory(name string) bool {
	for _, c := range rules.Categories() {
		if string(c) == name {
			return true
		}
	}
	return false
}

// Prefixes returns the config key prefix of every rule category.
func Prefixes(cfg *configapi.GovernorConfig) map[rules.Category]string {
	res := map[rules.Category]string{}
	for _, c := range rules.Categories() {
		res[c] = c.DefaultPrefix()
	}
	for _, c := range cfg.Categories {
		if isCategory(c.Name) && c.Prefix != "" {
			res[rules.Category(c.Name)] = c.Prefix
		}
	}
	return res
}

// BuildPolicyRegistry resolves the retry policies of cfg on top of the built-in ones.
func BuildPolicyRegistry(cfg *configapi.GovernorConfig) (*retry.PolicyRegistry, error) {
	specs := retry.DefaultPolicySpecs()
	var errs error
	for _, p := range cfg.RetryPolicies {
		fw, err := retry.ParseFramework(p.Framework)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		specs[fw] = retry.PolicySpec{Errors: p.Errors, StatusCodes: p.StatusCodes}
	}
	if errs != nil {
		return nil, errs
	}
	registry, err := retry.NewPolicyRegistry(specs)
	if err != nil {
		return nil, fmt.Errorf("invalid retry policies: %w", err)
	}
	return registry, nil
}
