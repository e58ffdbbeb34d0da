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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"sigs.k8s.io/traffic-governance/pkg/governance/datastore"
	logutil "sigs.k8s.io/traffic-governance/pkg/governance/util/logging"
	utiltest "sigs.k8s.io/traffic-governance/pkg/governance/util/testing"
)

type recordingApplier struct {
	batches []map[string]string
}

func (r *recordingApplier) ApplyConfig(_ context.Context, data map[string]string) {
	r.batches = append(r.batches, data)
}

func newFakeClient(objs ...client.Object) client.Client {
	scheme := runtime.NewScheme()
	_ = clientgoscheme.AddToScheme(scheme)
	return fake.NewClientBuilder().WithScheme(scheme).WithObjects(objs...).Build()
}

func TestConfigMapReconciler(t *testing.T) {
	key := types.NamespacedName{Name: "governance", Namespace: "default"}
	data := map[string]string{"retry.order.create": "maxAttempts: 3"}
	tests := []struct {
		name     string
		objects  []client.Object
		expected []map[string]string
	}{
		{
			name:     "ConfigMap data is applied",
			objects:  []client.Object{utiltest.MakeConfigMap("governance").Data(data).ObjRef()},
			expected: []map[string]string{data},
		},
		{
			name:     "ConfigMap without data clears rules",
			objects:  []client.Object{utiltest.MakeConfigMap("governance").ObjRef()},
			expected: []map[string]string{{}},
		},
		{
			name:     "missing ConfigMap clears rules",
			expected: []map[string]string{{}},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			applier := &recordingApplier{}
			r := &ConfigMapReconciler{
				Reader:    newFakeClient(test.objects...),
				Applier:   applier,
				ConfigMap: key,
			}
			ctx := logutil.NewTestLoggerIntoContext(context.Background())
			result, err := r.Reconcile(ctx, ctrl.Request{NamespacedName: key})
			require.NoError(t, err)
			assert.Equal(t, ctrl.Result{}, result)
			if diff := cmp.Diff(test.expected, applier.batches); diff != "" {
				t.Errorf("Unexpected output (-want +got): %v", diff)
			}
		})
	}
}

func TestConfigMapPredicate(t *testing.T) {
	r := &ConfigMapReconciler{ConfigMap: types.NamespacedName{Name: "governance", Namespace: "default"}}
	assert.True(t, r.isGovernanceConfigMap(utiltest.MakeConfigMap("governance").ObjRef()))
	assert.False(t, r.isGovernanceConfigMap(utiltest.MakeConfigMap("governance").Namespace("prod").ObjRef()))
	assert.False(t, r.isGovernanceConfigMap(utiltest.MakeConfigMap("other").ObjRef()))
}

func TestPodReconciler(t *testing.T) {
	labels := map[string]string{datastore.ServiceLabel: "svcA", datastore.VersionLabel: "v1"}
	ready := utiltest.MakePod("a-1").IP("10.0.0.1").Labels(labels).ReadyCondition().ObjRef()
	notReady := utiltest.MakePod("a-1").IP("10.0.0.1").Labels(labels).ObjRef()
	deleting := utiltest.MakePod("a-1").IP("10.0.0.1").Labels(labels).ReadyCondition().DeletionTimestamp().ObjRef()
	tests := []struct {
		name        string
		inStore     []*corev1.Pod
		inAPIServer []client.Object
		wantHosts   []string
	}{
		{
			name:        "ready pod is added",
			inAPIServer: []client.Object{ready},
			wantHosts:   []string{"10.0.0.1"},
		},
		{
			name:        "pod no longer ready is removed",
			inStore:     []*corev1.Pod{ready},
			inAPIServer: []client.Object{notReady},
			wantHosts:   []string{},
		},
		{
			name:        "terminating pod is removed",
			inStore:     []*corev1.Pod{ready},
			inAPIServer: []client.Object{deleting},
			wantHosts:   []string{},
		},
		{
			name:      "deleted pod is removed",
			inStore:   []*corev1.Pod{ready},
			wantHosts: []string{},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ds := datastore.NewDatastore(8080)
			for _, p := range test.inStore {
				ds.InstanceUpdateOrAddIfNotExist(p)
			}
			r := &PodReconciler{Reader: newFakeClient(test.inAPIServer...), Datastore: ds, Namespace: "default"}
			ctx := logutil.NewTestLoggerIntoContext(context.Background())
			_, err := r.Reconcile(ctx, ctrl.Request{NamespacedName: types.NamespacedName{Name: "a-1", Namespace: "default"}})
			require.NoError(t, err)

			gotHosts := []string{}
			for _, inst := range ds.InstanceGetAll() {
				gotHosts = append(gotHosts, inst.Host)
			}
			if diff := cmp.Diff(test.wantHosts, gotHosts); diff != "" {
				t.Errorf("Unexpected output (-want +got): %v", diff)
			}
		})
	}
}

func TestPodPredicate(t *testing.T) {
	r := &PodReconciler{Namespace: "default"}
	labelled := utiltest.MakePod("p").Labels(map[string]string{datastore.ServiceLabel: "svcA"})
	assert.True(t, r.isGoverned(labelled.ObjRef()))
	assert.False(t, r.isGoverned(utiltest.MakePod("p").ObjRef()))
	assert.False(t, r.isGoverned(utiltest.MakePod("p").Namespace("prod").Labels(map[string]string{datastore.ServiceLabel: "svcA"}).ObjRef()))
}

type syncedCache bool

func (c syncedCache) WaitForCacheSync(context.Context) bool { return bool(c) }

func TestInstanceSyncer(t *testing.T) {
	ctx := logutil.NewTestLoggerIntoContext(context.Background())
	pod := utiltest.MakePod("a-1").IP("10.0.0.1").Labels(map[string]string{datastore.ServiceLabel: "svcA"}).ReadyCondition().ObjRef()

	ds := datastore.NewDatastore(8080)
	s := &InstanceSyncer{Reader: newFakeClient(pod), Cache: syncedCache(true), Datastore: ds, Namespace: "default"}
	require.NoError(t, s.Start(ctx))
	assert.True(t, ds.HasSynced())
	got, err := ds.ListInstances(ctx, "svcA")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.False(t, s.NeedLeaderElection())

	notSynced := datastore.NewDatastore(8080)
	s = &InstanceSyncer{Reader: newFakeClient(), Cache: syncedCache(false), Datastore: notSynced}
	assert.Error(t, s.Start(ctx))
	assert.False(t, notSynced.HasSynced())
}
