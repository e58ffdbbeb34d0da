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

package gray

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"sigs.k8s.io/traffic-governance/pkg/governance/metrics"
	"sigs.k8s.io/traffic-governance/pkg/governance/types"
	errutil "sigs.k8s.io/traffic-governance/pkg/governance/util/error"
	logutil "sigs.k8s.io/traffic-governance/pkg/governance/util/logging"
	"sigs.k8s.io/traffic-governance/pkg/tracing"
)

const (
	reasonRegistryUnavailable = "registry_unavailable"
	reasonNoEligibleInstances = "no_eligible_instances"
	reasonNoTargetService     = "no_target_service"
)

// ErrNoEligibleInstances is returned by Route when the registry knows instances of the
// target service but none of them matches the tag.
var ErrNoEligibleInstances = errors.New("no eligible instances")

// InstanceLister is the registry collaborator providing the instances of a service.
type InstanceLister interface {
	ListInstances(ctx context.Context, service string) ([]types.ServiceInstance, error)
}

// Router resolves the target instances of an outbound call.
type Router struct {
	lister  InstanceLister
	matcher Matcher
}

func NewRouter(lister InstanceLister) *Router {
	return &Router{lister: lister}
}

// Route lists the instances of tag.Service and returns the ones eligible for tag.
// A registry failure is returned as a RegistryUnavailable error with no instances.
func (r *Router) Route(ctx context.Context, tag types.TrafficTag) ([]types.ServiceInstance, error) {
	ctx, span := tracing.StartSpan(ctx, tracing.OperationRoute, attribute.String(tracing.AttrTargetService, tag.Service))
	defer span.End()
	logger := log.FromContext(ctx).WithValues("tag", tag.String())

	if tag.Service == "" {
		err := errutil.Error{Code: errutil.InvalidRule, Msg: "traffic tag has no target service"}
		metrics.RecordRoutingFailure(tag.Service, reasonNoTargetService)
		tracing.SetSpanError(span, err)
		return nil, err
	}

	instances, err := r.lister.ListInstances(ctx, tag.Service)
	if err != nil {
		if !errutil.Is(err, errutil.RegistryUnavailable) {
			err = errutil.Error{Code: errutil.RegistryUnavailable, Msg: fmt.Sprintf("listing instances of %q", tag.Service), Err: err}
		}
		metrics.RecordRoutingFailure(tag.Service, reasonRegistryUnavailable)
		logger.Error(err, "Failed to list service instances")
		tracing.SetSpanError(span, err)
		return nil, err
	}

	selected := r.matcher.Select(instances, tag)
	if len(selected) == 0 {
		metrics.RecordRoutingFailure(tag.Service, reasonNoEligibleInstances)
		logger.V(logutil.DEBUG).Info("No instance matches the traffic tag", "candidates", len(instances))
		err := fmt.Errorf("routing %s: %w", tag.String(), ErrNoEligibleInstances)
		tracing.SetSpanError(span, err)
		return selected, err
	}

	logger.V(logutil.TRACE).Info("Routed call", "candidates", len(instances), "selected", len(selected))
	span.SetAttributes(attribute.Int("governance.instances.selected", len(selected)))
	tracing.SetSpanSuccess(span)
	return selected, nil
}
