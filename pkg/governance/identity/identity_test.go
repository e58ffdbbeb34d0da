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

package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		svc         string
		version     string
		wantErr     bool
		wantString  string
		wantVersion string
	}{
		{name: "name and version", svc: "svcA", version: "v1", wantString: "svcA:v1", wantVersion: "v1"},
		{name: "name only", svc: "svcA", wantString: "svcA"},
		{name: "surrounding spaces are trimmed", svc: " svcA ", version: " v2 ", wantString: "svcA:v2", wantVersion: "v2"},
		{name: "empty name", svc: "  ", wantErr: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			id, err := New(test.svc, test.version, nil)
			if test.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.wantString, id.String())
			assert.Equal(t, test.wantVersion, id.Version())
		})
	}
}

func TestMetadataIsCopied(t *testing.T) {
	md := map[string]string{"zone": "a"}
	id, err := New("svcA", "v1", md)
	require.NoError(t, err)

	md["zone"] = "b"
	got := id.Metadata()
	assert.Equal(t, "a", got["zone"])

	got["zone"] = "c"
	assert.Equal(t, "a", id.Metadata()["zone"])
}
