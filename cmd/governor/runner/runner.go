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

// Package runner assembles the governor process from its options.
package runner

import (
	"cmp"
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/pflag"
	"google.golang.org/grpc"
	healthPb "google.golang.org/grpc/health/grpc_health_v1"
	"k8s.io/apimachinery/pkg/runtime"
	k8stypes "k8s.io/apimachinery/pkg/types"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/utils/ptr"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/cache"
	"sigs.k8s.io/controller-runtime/pkg/manager"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	"sigs.k8s.io/traffic-governance/internal/runnable"
	"sigs.k8s.io/traffic-governance/pkg/governance"
	"sigs.k8s.io/traffic-governance/pkg/governance/admin"
	"sigs.k8s.io/traffic-governance/pkg/governance/config/loader"
	"sigs.k8s.io/traffic-governance/pkg/governance/controller"
	"sigs.k8s.io/traffic-governance/pkg/governance/datastore"
	"sigs.k8s.io/traffic-governance/pkg/governance/health"
	"sigs.k8s.io/traffic-governance/pkg/governance/identity"
	"sigs.k8s.io/traffic-governance/pkg/governance/metrics"
	"sigs.k8s.io/traffic-governance/pkg/governance/metrics/collectors"
	"sigs.k8s.io/traffic-governance/pkg/governance/source/redis"
	logutil "sigs.k8s.io/traffic-governance/pkg/governance/util/logging"
	"sigs.k8s.io/traffic-governance/pkg/tracing"
)

const envRedisPassword = "REDIS_PASSWORD"

var scheme = runtime.NewScheme()

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
}

// Runner runs the governor.
type Runner struct {
	opts *Options
}

func NewRunner() *Runner {
	return &Runner{opts: NewOptions()}
}

// Run parses the command line and runs the governor until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	opts := r.opts
	opts.AddFlags(pflag.CommandLine)
	pflag.Parse()
	if err := opts.Complete(); err != nil {
		return err
	}
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	ctrl.SetLogger(logutil.New(logutil.Options{Verbosity: opts.LogVerbosity, Development: opts.Development}))
	setupLog := ctrl.Log.WithName("setup")
	flags := map[string]any{}
	pflag.VisitAll(func(f *pflag.Flag) {
		flags[f.Name] = f.Value
	})
	setupLog.Info("Flags processed", "flags", flags)

	if opts.Tracing {
		shutdown, err := tracing.Initialize(ctx, tracing.NewConfigFromEnv(), setupLog)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		defer shutdown()
	}

	engine, ds, err := setupEngine(opts, setupLog)
	if err != nil {
		return err
	}
	setupLog.Info("Governance engine created", "identity", engine.Identity().String())

	mgr, err := ctrl.NewManager(ctrl.GetConfigOrDie(), managerOptions(opts))
	if err != nil {
		return fmt.Errorf("failed to create controller manager: %w", err)
	}

	if err := (&controller.PodReconciler{
		Reader:    mgr.GetClient(),
		Datastore: ds,
		Namespace: opts.Namespace,
	}).SetupWithManager(mgr); err != nil {
		return fmt.Errorf("failed setting up PodReconciler: %w", err)
	}
	if err := mgr.Add(&controller.InstanceSyncer{
		Reader:    mgr.GetClient(),
		Cache:     mgr.GetCache(),
		Datastore: ds,
		Namespace: opts.Namespace,
	}); err != nil {
		return fmt.Errorf("failed setting up InstanceSyncer: %w", err)
	}

	if opts.ConfigMapName != "" {
		if err := (&controller.ConfigMapReconciler{
			Reader:    mgr.GetClient(),
			Applier:   engine,
			ConfigMap: k8stypes.NamespacedName{Namespace: opts.ConfigMapNamespace, Name: opts.ConfigMapName},
		}).SetupWithManager(mgr); err != nil {
			return fmt.Errorf("failed setting up ConfigMapReconciler: %w", err)
		}
	}

	if opts.RedisURL != "" {
		client, err := redis.NewClient(ctx, opts.RedisURL, os.Getenv(envRedisPassword))
		if err != nil {
			return err
		}
		defer client.Close()
		if err := mgr.Add(&redis.Source{
			Client:   client,
			Key:      opts.RedisKey,
			Interval: opts.RedisPollInterval,
			Applier:  engine,
		}); err != nil {
			return fmt.Errorf("failed setting up Redis config source: %w", err)
		}
	}

	if err := registerHealthServer(mgr, engine, opts.GRPCHealthPort); err != nil {
		return err
	}
	if opts.AdminPort != 0 {
		if err := mgr.Add(adminServer(engine, opts.AdminPort)); err != nil {
			return fmt.Errorf("failed setting up admin server: %w", err)
		}
	}

	metrics.Register(collectors.NewGovernanceCollector(engine, ds))

	setupLog.Info("Controller manager starting")
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("failed to start manager: %w", err)
	}
	setupLog.Info("Controller manager terminated")
	return nil
}

// setupEngine loads the governor configuration and builds the engine and the instance
// datastore it routes against.
func setupEngine(opts *Options, logger logr.Logger) (*governance.Engine, datastore.Datastore, error) {
	cfg, err := loader.LoadConfig([]byte(opts.ConfigText), opts.ConfigFile, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load the configuration: %w", err)
	}

	id, err := identity.New(cmp.Or(opts.ServiceName, cfg.Identity.Service), cmp.Or(opts.ServiceVersion, cfg.Identity.Version),
		cfg.Identity.Metadata)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid service identity: %w", err)
	}

	policies, err := loader.BuildPolicyRegistry(cfg)
	if err != nil {
		return nil, nil, err
	}

	ds := datastore.NewDatastore(cfg.Discovery.DefaultPort)
	engine, err := governance.NewEngine(governance.Config{
		Identity:  id,
		Instances: ds,
		Prefixes:  loader.Prefixes(cfg),
		Policies:  policies,
	})
	if err != nil {
		return nil, nil, err
	}
	return engine, ds, nil
}

func managerOptions(opts *Options) ctrl.Options {
	namespaces := map[string]cache.Config{opts.Namespace: {}}
	if opts.ConfigMapNamespace != "" {
		namespaces[opts.ConfigMapNamespace] = cache.Config{}
	}
	return ctrl.Options{
		Scheme: scheme,
		Cache: cache.Options{
			DefaultNamespaces: namespaces,
		},
		Metrics: metricsserver.Options{
			BindAddress: fmt.Sprintf(":%d", opts.MetricsPort),
		},
	}
}

func registerHealthServer(mgr manager.Manager, checker health.ReadinessChecker, port int) error {
	srv := grpc.NewServer()
	healthPb.RegisterHealthServer(srv, health.NewServer(checker))
	if err := mgr.Add(runnable.NoLeaderElection(runnable.GRPCServer("health", srv, port))); err != nil {
		return fmt.Errorf("failed to register health server: %w", err)
	}
	return nil
}

func adminServer(view admin.View, port int) *manager.Server {
	return &manager.Server{
		Name: "admin",
		Server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           admin.NewHandler(view, ctrl.Log.WithName("admin")),
			ReadHeaderTimeout: 10 * time.Second,
		},
		ShutdownTimeout: ptr.To(5 * time.Second),
	}
}
