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

package runner

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/multierr"

	"sigs.k8s.io/traffic-governance/pkg/governance/source/redis"
	"sigs.k8s.io/traffic-governance/pkg/governance/util/logging"
)

// Options contains configuration values necessary to create and run the governor.
type Options struct {
	//
	// Identity, overriding the one of the configuration file.
	//
	ServiceName    string // Name of the service this governor runs for.
	ServiceVersion string // Version of the service this governor runs for.
	//
	// Discovery and rule ingestion.
	//
	Namespace          string        // Namespace whose Pods are the instances of downstream services.
	ConfigMapName      string        // Name of the ConfigMap holding the flat rule configuration. Empty disables it.
	ConfigMapNamespace string        // Namespace of the rule ConfigMap. Defaults to Namespace.
	RedisURL           string        // URL of the Redis server holding the rule configuration hash. Empty disables it.
	RedisKey           string        // Key of the Redis hash holding the rule configuration.
	RedisPollInterval  time.Duration // Interval between two reads of the Redis hash.
	//
	// Diagnostics.
	//
	LogVerbosity   int  // Number for the log level verbosity.
	Development    bool // Enables human readable development logging.
	Tracing        bool // Enables emitting traces.
	MetricsPort    int  // The metrics port exposed by the governor.
	GRPCHealthPort int  // The port used for gRPC liveness and readiness probes.
	AdminPort      int  // The port of the read-only admin API. 0 disables it.
	//
	// Configuration.
	//
	ConfigFile string // The path to the configuration file.
	ConfigText string // The configuration specified as text, in lieu of a file.
}

// NewOptions returns a new Options struct initialized with the default values.
func NewOptions() *Options {
	return &Options{
		Namespace:         "default",
		RedisKey:          "traffic-governance",
		RedisPollInterval: redis.DefaultPollInterval,
		LogVerbosity:      logging.DEFAULT,
		MetricsPort:       9090,
		GRPCHealthPort:    9003,
		AdminPort:         9004,
	}
}

func (opts *Options) AddFlags(fs *pflag.FlagSet) {
	if fs == nil {
		fs = pflag.CommandLine
	}

	fs.StringVar(&opts.ServiceName, "service-name", opts.ServiceName,
		"Name of the service this governor runs for. Overrides identity.service of the configuration.")
	fs.StringVar(&opts.ServiceVersion, "service-version", opts.ServiceVersion,
		"Version of the service this governor runs for. Overrides identity.version of the configuration.")
	fs.StringVar(&opts.Namespace, "namespace", opts.Namespace, "Namespace whose Pods are the instances of downstream services.")
	fs.StringVar(&opts.ConfigMapName, "rules-configmap", opts.ConfigMapName,
		"Name of the ConfigMap holding the rule configuration. Mutually exclusive with --redis-url.")
	fs.StringVar(&opts.ConfigMapNamespace, "rules-configmap-namespace", opts.ConfigMapNamespace,
		"Namespace of the rule ConfigMap. Defaults to --namespace.")
	fs.StringVar(&opts.RedisURL, "redis-url", opts.RedisURL,
		"URL of the Redis server holding the rule configuration hash, e.g. redis://redis:6379/0. "+
			"The password is read from the REDIS_PASSWORD environment variable.")
	fs.StringVar(&opts.RedisKey, "redis-key", opts.RedisKey, "Key of the Redis hash holding the rule configuration.")
	fs.DurationVar(&opts.RedisPollInterval, "redis-poll-interval", opts.RedisPollInterval, "Interval between two reads of the Redis hash.")
	fs.IntVar(&opts.LogVerbosity, "v", opts.LogVerbosity, "Number for the log level verbosity.")
	fs.BoolVar(&opts.Development, "development", opts.Development, "Enables human readable development logging.")
	fs.BoolVar(&opts.Tracing, "tracing", opts.Tracing, "Enables emitting traces.")
	fs.IntVar(&opts.MetricsPort, "metrics-port", opts.MetricsPort, "The metrics port exposed by the governor.")
	fs.IntVar(&opts.GRPCHealthPort, "grpc-health-port", opts.GRPCHealthPort, "The port used for gRPC liveness and readiness probes.")
	fs.IntVar(&opts.AdminPort, "admin-port", opts.AdminPort, "The port of the read-only admin API. Set to 0 to disable.")
	fs.StringVar(&opts.ConfigFile, "config-file", opts.ConfigFile, "The path to the configuration file.")
	fs.StringVar(&opts.ConfigText, "config-text", opts.ConfigText, "The configuration specified as text, in lieu of a file.")
}

func (opts *Options) Complete() error {
	if opts.ConfigMapName != "" && opts.ConfigMapNamespace == "" {
		opts.ConfigMapNamespace = opts.Namespace
	}
	return nil
}

func (opts *Options) Validate() error {
	var errs error
	if opts.Namespace == "" {
		errs = multierr.Append(errs, errors.New("--namespace is required"))
	}
	if opts.ConfigMapName == "" && opts.RedisURL == "" {
		errs = multierr.Append(errs, errors.New("one of --rules-configmap or --redis-url is required"))
	}
	// Each source delivers the whole rule set and removes whatever it does not list.
	if opts.ConfigMapName != "" && opts.RedisURL != "" {
		errs = multierr.Append(errs, errors.New("--rules-configmap and --redis-url are mutually exclusive"))
	}
	if opts.RedisURL != "" {
		if opts.RedisKey == "" {
			errs = multierr.Append(errs, errors.New("--redis-key is required with --redis-url"))
		}
		if opts.RedisPollInterval <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("--redis-poll-interval must be positive, got %s", opts.RedisPollInterval))
		}
	}
	if opts.ConfigFile != "" && opts.ConfigText != "" {
		errs = multierr.Append(errs, errors.New("--config-file and --config-text are mutually exclusive"))
	}

	ports := map[int]string{}
	for _, p := range []struct {
		flag     string
		port     int
		optional bool
	}{
		{flag: "--metrics-port", port: opts.MetricsPort},
		{flag: "--grpc-health-port", port: opts.GRPCHealthPort},
		{flag: "--admin-port", port: opts.AdminPort, optional: true},
	} {
		if p.optional && p.port == 0 {
			continue
		}
		if p.port < 1 || p.port > 65535 {
			errs = multierr.Append(errs, fmt.Errorf("%s %d is out of range", p.flag, p.port))
			continue
		}
		if other, ok := ports[p.port]; ok {
			errs = multierr.Append(errs, fmt.Errorf("%s and %s both use port %d", other, p.flag, p.port))
		}
		ports[p.port] = p.flag
	}
	return errs
}
