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

package types

import (
	"fmt"
	"net"
	"strconv"
)

// ServiceInstance is one addressable instance of a service, as reported by the registry.
// The governance engine never creates or destroys instances.
type ServiceInstance struct {
	Host        string
	Port        int32
	ServiceName string
	Version     string
	Metadata    map[string]string
}

// Address returns host:port.
func (i ServiceInstance) Address() string {
	return net.JoinHostPort(i.Host, strconv.Itoa(int(i.Port)))
}

func (i ServiceInstance) String() string {
	return fmt.Sprintf("%s:%s@%s", i.ServiceName, i.Version, i.Address())
}

// TrafficTag is the gray routing context of one outbound call.
type TrafficTag struct {
	// Service is the target service name.
	Service string
	// Version is the desired version. Empty means any version.
	Version string
	// Labels must all be present, with equal values, in an eligible instance's metadata.
	Labels map[string]string
}

func (t TrafficTag) String() string {
	if t.Version == "" {
		return t.Service
	}
	return t.Service + ":" + t.Version
}
