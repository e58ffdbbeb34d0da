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

package testing

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// PodWrapper wraps a Pod.
type PodWrapper struct {
	corev1.Pod
}

// MakePod creates a wrapper for a Pod in the default namespace.
func MakePod(name string) *PodWrapper {
	return &PodWrapper{
		corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{
				Name:      name,
				Namespace: "default",
				Labels:    map[string]string{},
			},
		},
	}
}

// Namespace sets the pod namespace.
func (p *PodWrapper) Namespace(ns string) *PodWrapper {
	p.ObjectMeta.Namespace = ns
	return p
}

// Labels merges labels into the pod labels.
func (p *PodWrapper) Labels(labels map[string]string) *PodWrapper {
	for k, v := range labels {
		p.ObjectMeta.Labels[k] = v
	}
	return p
}

// Annotation sets one pod annotation.
func (p *PodWrapper) Annotation(key, value string) *PodWrapper {
	if p.ObjectMeta.Annotations == nil {
		p.ObjectMeta.Annotations = map[string]string{}
	}
	p.ObjectMeta.Annotations[key] = value
	return p
}

// IP sets the pod IP.
func (p *PodWrapper) IP(ip string) *PodWrapper {
	p.Status.PodIP = ip
	return p
}

// ReadyCondition marks the pod ready.
func (p *PodWrapper) ReadyCondition() *PodWrapper {
	p.Status.Conditions = []corev1.PodCondition{{
		Type:   corev1.PodReady,
		Status: corev1.ConditionTrue,
	}}
	return p
}

// DeletionTimestamp marks the pod as being deleted.
func (p *PodWrapper) DeletionTimestamp() *PodWrapper {
	now := metav1.Now()
	p.ObjectMeta.DeletionTimestamp = &now
	p.ObjectMeta.Finalizers = []string{"finalizer"}
	return p
}

// ObjRef returns the wrapped Pod.
func (p *PodWrapper) ObjRef() *corev1.Pod {
	return &p.Pod
}

// ConfigMapWrapper wraps a ConfigMap.
type ConfigMapWrapper struct {
	corev1.ConfigMap
}

// MakeConfigMap creates a wrapper for a ConfigMap in the default namespace.
func MakeConfigMap(name string) *ConfigMapWrapper {
	return &ConfigMapWrapper{
		corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{
				Name:      name,
				Namespace: "default",
			},
		},
	}
}

// Namespace sets the config map namespace.
func (c *ConfigMapWrapper) Namespace(ns string) *ConfigMapWrapper {
	c.ObjectMeta.Namespace = ns
	return c
}

// Data sets the config map data.
func (c *ConfigMapWrapper) Data(data map[string]string) *ConfigMapWrapper {
	c.ConfigMap.Data = data
	return c
}

// ObjRef returns the wrapped ConfigMap.
func (c *ConfigMapWrapper) ObjRef() *corev1.ConfigMap {
	return &c.ConfigMap
}
