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

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/builder"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/predicate"

	logutil "sigs.k8s.io/traffic-governance/pkg/governance/util/logging"
)

// ConfigApplier consumes a complete flat key/value configuration.
type ConfigApplier interface {
	ApplyConfig(ctx context.Context, data map[string]string)
}

// ConfigMapReconciler feeds the data of one ConfigMap to the rule resolvers. A missing or
// deleted ConfigMap is applied as an empty configuration.
type ConfigMapReconciler struct {
	client.Reader
	Applier   ConfigApplier
	ConfigMap types.NamespacedName
}

func (c *ConfigMapReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	logger := log.FromContext(ctx).V(logutil.DEFAULT)
	ctx = ctrl.LoggerInto(ctx, logger)

	logger.Info("Reconciling governance ConfigMap")

	cm := &corev1.ConfigMap{}
	if err := c.Get(ctx, req.NamespacedName, cm); err != nil {
		if !errors.IsNotFound(err) {
			return ctrl.Result{}, fmt.Errorf("unable to get ConfigMap - %w", err)
		}
		logger.Info("Governance ConfigMap not found, clearing rules")
		c.Applier.ApplyConfig(ctx, map[string]string{})
		return ctrl.Result{}, nil
	}

	if !cm.DeletionTimestamp.IsZero() {
		logger.Info("Governance ConfigMap is being deleted, clearing rules")
		c.Applier.ApplyConfig(ctx, map[string]string{})
		return ctrl.Result{}, nil
	}

	logger.V(logutil.VERBOSE).Info("Applying governance config", "keys", len(cm.Data))
	data := cm.Data
	if data == nil {
		data = map[string]string{}
	}
	c.Applier.ApplyConfig(ctx, data)
	return ctrl.Result{}, nil
}

func (c *ConfigMapReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&corev1.ConfigMap{}, builder.WithPredicates(predicate.NewPredicateFuncs(c.isGovernanceConfigMap))).
		Complete(c)
}

func (c *ConfigMapReconciler) isGovernanceConfigMap(object client.Object) bool {
	return object.GetName() == c.ConfigMap.Name && object.GetNamespace() == c.ConfigMap.Namespace
}
