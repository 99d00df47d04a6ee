// Copyright (c) The NodeMesh Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package workload

import (
	"k8s.io/apimachinery/pkg/types"

	"github.com/nodemesh-net/nodemesh/pkg/proxy/authz"
)

// Protocol is the wire protocol used to reach a workload.
// Absence on the wire means ProtocolDirect.
type Protocol int32

const (
	// ProtocolDirect means the workload accepts connections directly on its address.
	ProtocolDirect Protocol = 0
	// ProtocolHTTP2Connect means the workload is reached through an
	// HTTP/2 CONNECT tunnel relay.
	ProtocolHTTP2Connect Protocol = 1
)

func (p Protocol) String() string {
	if p == ProtocolHTTP2Connect {
		return "HTTP2CONNECT"
	}
	return "DIRECT"
}

// Port maps a service port to a workload target port.
type Port struct {
	ServicePort uint32 `json:"servicePort"`
	TargetPort  uint32 `json:"targetPort"`
}

// PortList is an ordered list of port mappings.
// Service ports are expected to be unique within a list; on duplicates,
// the first mapping wins.
type PortList []Port

// Workload describes the identity, reachability and access policy of a
// single mesh workload. Workloads are immutable value snapshots received
// from the control plane; updates arrive as full replacement records.
type Workload struct {
	UID       string `json:"uid"`
	Name      string `json:"name,omitempty"`
	Namespace string `json:"namespace,omitempty"`

	// Descriptive metadata, opaque to routing and authorization.
	CanonicalName     string `json:"canonicalName,omitempty"`
	CanonicalRevision string `json:"canonicalRevision,omitempty"`
	WorkloadType      string `json:"workloadType,omitempty"`
	WorkloadName      string `json:"workloadName,omitempty"`

	// Address is a single IPv4/IPv6 literal, without a port.
	Address string `json:"address,omitempty"`
	// Identity is the SPIFFE-form URI used as the authorization subject.
	Identity string `json:"identity,omitempty"`

	Protocol Protocol `json:"protocol,omitempty"`
	// GatewayAddress, if set, means the workload must be reached through
	// this address rather than its own address.
	GatewayAddress string `json:"gatewayAddress,omitempty"`
	// RemoteProxy is the tunnel relay address of the workload.
	RemoteProxy string `json:"remoteProxy,omitempty"`
	// NativeHbone disables direct node-to-node calling even when one would
	// otherwise apply. It takes precedence over Protocol.
	NativeHbone bool `json:"nativeHbone,omitempty"`

	// VirtualIPs maps a virtual IP to its service-to-target port mappings.
	VirtualIPs map[string]PortList `json:"virtualIps,omitempty"`

	// Enforce requires connections to this workload to satisfy mTLS and
	// authorization; when false, authorization is bypassed (permissive mode).
	Enforce bool `json:"enforce,omitempty"`
	// Node is the identifier of the node hosting the workload.
	Node string `json:"node,omitempty"`

	// Rbac is the authorization policy applied to inbound connections.
	Rbac authz.Authorization `json:"rbac,omitempty"`
}

// NamespacedName returns the logical name of the workload.
func (w *Workload) NamespacedName() types.NamespacedName {
	return types.NamespacedName{Namespace: w.Namespace, Name: w.Name}
}
