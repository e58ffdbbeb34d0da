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

package controller

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/builder"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/event"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/predicate"

	"sigs.k8s.io/traffic-governance/pkg/governance/datastore"
	logutil "sigs.k8s.io/traffic-governance/pkg/governance/util/logging"
)

// PodReconciler keeps the instance datastore in line with the labelled Pods of one namespace.
type PodReconciler struct {
	client.Reader
	Datastore datastore.Datastore
	Namespace string
}

func (c *PodReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	logger := log.FromContext(ctx)

	pod := &corev1.Pod{}
	if err := c.Get(ctx, req.NamespacedName, pod); err != nil {
		if errors.IsNotFound(err) {
			logger.V(logutil.DEBUG).Info("Pod not found, removing instance", "pod", req.NamespacedName)
			c.Datastore.InstanceDelete(req.NamespacedName)
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, fmt.Errorf("unable to get pod - %w", err)
	}

	c.updateDatastore(logger, pod)
	return ctrl.Result{}, nil
}

func (c *PodReconciler) updateDatastore(logger logr.Logger, pod *corev1.Pod) {
	namespacedName := client.ObjectKeyFromObject(pod)
	if !pod.DeletionTimestamp.IsZero() || !datastore.PodIsReady(pod) {
		logger.V(logutil.DEBUG).Info("Pod removed or not ready", "pod", namespacedName)
		c.Datastore.InstanceDelete(namespacedName)
		return
	}
	if c.Datastore.InstanceUpdateOrAddIfNotExist(pod) {
		logger.V(logutil.DEFAULT).Info("Instance added", "pod", namespacedName, "service", pod.Labels[datastore.ServiceLabel])
	} else {
		logger.V(logutil.DEBUG).Info("Instance updated", "pod", namespacedName)
	}
}

func (c *PodReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&corev1.Pod{}, builder.WithPredicates(predicate.Funcs{
			CreateFunc: func(e event.CreateEvent) bool { return c.isGoverned(e.Object) },
			UpdateFunc: func(e event.UpdateEvent) bool {
				return c.isGoverned(e.ObjectOld) || c.isGoverned(e.ObjectNew)
			},
			DeleteFunc:  func(e event.DeleteEvent) bool { return c.isGoverned(e.Object) },
			GenericFunc: func(e event.GenericEvent) bool { return c.isGoverned(e.Object) },
		})).
		Complete(c)
}

func (c *PodReconciler) isGoverned(object client.Object) bool {
	if c.Namespace != "" && object.GetNamespace() != c.Namespace {
		return false
	}
	_, ok := object.GetLabels()[datastore.ServiceLabel]
	return ok
}
