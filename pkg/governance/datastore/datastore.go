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

// Package datastore caches the service instances discovered from Kubernetes Pods.
package datastore

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/selection"
	k8stypes "k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"sigs.k8s.io/traffic-governance/pkg/governance/types"
	errutil "sigs.k8s.io/traffic-governance/pkg/governance/util/error"
	logutil "sigs.k8s.io/traffic-governance/pkg/governance/util/logging"
)

const (
	// ServiceLabel names the service a Pod is an instance of. Pods without it are ignored.
	ServiceLabel = "governance.k8s.io/service"
	// VersionLabel carries the instance version used for gray routing.
	VersionLabel = "governance.k8s.io/version"
	// PortAnnotation overrides the default instance port.
	PortAnnotation = "governance.k8s.io/port"
)

var errNotSynced = errutil.Error{Code: errutil.RegistryUnavailable, Msg: "instance cache has not synced yet"}

// Datastore is a local cache of the service instances in the watched namespace.
type Datastore interface {
	// InstanceUpdateOrAddIfNotExist stores the instance of pod. It returns true when the
	// instance was added, false when it was updated or pod is not a governed instance.
	InstanceUpdateOrAddIfNotExist(pod *corev1.Pod) bool
	InstanceGet(namespacedName k8stypes.NamespacedName) (types.ServiceInstance, bool)
	InstanceDelete(namespacedName k8stypes.NamespacedName)
	InstanceResyncAll(ctx context.Context, ctrlClient client.Reader, namespace string) error
	InstanceGetAll() []types.ServiceInstance

	// ListInstances returns the instances of service, sorted by address. It fails with a
	// RegistryUnavailable error until the cache has synced.
	ListInstances(ctx context.Context, service string) ([]types.ServiceInstance, error)
	// Services returns the names of the services having at least one instance, sorted.
	Services() []string

	MarkSynced()
	HasSynced() bool

	// Clear drops every instance and marks the cache as not synced.
	Clear()
}

func NewDatastore(defaultPort int32) Datastore {
	return &datastore{
		defaultPort: defaultPort,
		instances:   &sync.Map{},
	}
}

type datastore struct {
	defaultPort int32
	synced      atomic.Bool
	// key: types.NamespacedName, value: types.ServiceInstance
	instances *sync.Map
}

func (ds *datastore) MarkSynced() {
	ds.synced.Store(true)
}

func (ds *datastore) HasSynced() bool {
	return ds.synced.Load()
}

func (ds *datastore) Clear() {
	ds.synced.Store(false)
	ds.instances.Clear()
}

func (ds *datastore) InstanceUpdateOrAddIfNotExist(pod *corev1.Pod) bool {
	namespacedName := k8stypes.NamespacedName{Name: pod.Name, Namespace: pod.Namespace}
	inst, ok := ds.instanceFromPod(pod)
	if !ok {
		ds.instances.Delete(namespacedName)
		return false
	}
	_, loaded := ds.instances.Swap(namespacedName, inst)
	return !loaded
}

func (ds *datastore) InstanceGet(namespacedName k8stypes.NamespacedName) (types.ServiceInstance, bool) {
	val, ok := ds.instances.Load(namespacedName)
	if !ok {
		return types.ServiceInstance{}, false
	}
	return val.(types.ServiceInstance), true
}

func (ds *datastore) InstanceDelete(namespacedName k8stypes.NamespacedName) {
	ds.instances.Delete(namespacedName)
}

func (ds *datastore) InstanceGetAll() []types.ServiceInstance {
	res := []types.ServiceInstance{}
	ds.instances.Range(func(_, v any) bool {
		res = append(res, v.(types.ServiceInstance))
		return true
	})
	sortByAddress(res)
	return res
}

func (ds *datastore) ListInstances(ctx context.Context, service string) ([]types.ServiceInstance, error) {
	if !ds.HasSynced() {
		return nil, errNotSynced
	}
	res := []types.ServiceInstance{}
	ds.instances.Range(func(_, v any) bool {
		if inst := v.(types.ServiceInstance); inst.ServiceName == service {
			res = append(res, inst)
		}
		return true
	})
	sortByAddress(res)
	log.FromContext(ctx).V(logutil.TRACE).Info("Listed instances", "service", service, "count", len(res))
	return res, nil
}

func (ds *datastore) Services() []string {
	seen := map[string]struct{}{}
	ds.instances.Range(func(_, v any) bool {
		seen[v.(types.ServiceInstance).ServiceName] = struct{}{}
		return true
	})
	return slices.Sorted(maps.Keys(seen))
}

// InstanceResyncAll lists the labelled Pods of namespace and makes the cache match the ready ones.
func (ds *datastore) InstanceResyncAll(ctx context.Context, ctrlClient client.Reader, namespace string) error {
	hasService, err := labels.NewRequirement(ServiceLabel, selection.Exists, nil)
	if err != nil {
		return err
	}
	podList := &corev1.PodList{}
	if err := ctrlClient.List(ctx, podList, &client.ListOptions{
		LabelSelector: labels.NewSelector().Add(*hasService),
		Namespace:     namespace,
	}); err != nil {
		log.FromContext(ctx).V(logutil.DEFAULT).Error(err, "Failed to list pods")
		return err
	}

	active := make(map[k8stypes.NamespacedName]bool)
	for i := range podList.Items {
		pod := &podList.Items[i]
		if !PodIsReady(pod) {
			continue
		}
		namespacedName := k8stypes.NamespacedName{Name: pod.Name, Namespace: pod.Namespace}
		ds.InstanceUpdateOrAddIfNotExist(pod)
		if _, ok := ds.InstanceGet(namespacedName); ok {
			active[namespacedName] = true
		}
	}

	// Remove instances whose pod is gone or no longer ready.
	ds.instances.Range(func(k, _ any) bool {
		if !active[k.(k8stypes.NamespacedName)] {
			ds.instances.Delete(k)
		}
		return true
	})
	return nil
}

func (ds *datastore) instanceFromPod(pod *corev1.Pod) (types.ServiceInstance, bool) {
	service := pod.Labels[ServiceLabel]
	if service == "" || pod.Status.PodIP == "" {
		return types.ServiceInstance{}, false
	}
	port := ds.defaultPort
	if raw, ok := pod.Annotations[PortAnnotation]; ok {
		if p, err := strconv.ParseInt(raw, 10, 32); err == nil && p > 0 && p < 65536 {
			port = int32(p)
		}
	}
	return types.ServiceInstance{
		Host:        pod.Status.PodIP,
		Port:        port,
		ServiceName: service,
		Version:     pod.Labels[VersionLabel],
		Metadata:    maps.Clone(pod.Labels),
	}, true
}

func sortByAddress(instances []types.ServiceInstance) {
	slices.SortFunc(instances, func(a, b types.ServiceInstance) int {
		return cmp.Or(strings.Compare(a.Host, b.Host), cmp.Compare(a.Port, b.Port))
	})
}

// PodIsReady reports whether the pod's Ready condition is true.
func PodIsReady(pod *corev1.Pod) bool {
	for _, condition := range pod.Status.Conditions {
		if condition.Type == corev1.PodReady {
			if condition.Status == corev1.ConditionTrue {
				return true
			}
			break
		}
	}
	return false
}
