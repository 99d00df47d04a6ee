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

package router

import (
	"fmt"

	"github.com/nodemesh-net/nodemesh/pkg/workload"
)

// Mode enumerates the ways a destination workload can be reached.
type Mode int

const (
	// ModeDirect dials the workload address directly.
	ModeDirect Mode = iota
	// ModeGateway dials the workload through its gateway address.
	ModeGateway
	// ModeTunnel dials the workload through an HTTP/2 CONNECT tunnel relay.
	ModeTunnel
)

func (m Mode) String() string {
	switch m {
	case ModeGateway:
		return "gateway"
	case ModeTunnel:
		return "tunnel"
	default:
		return "direct"
	}
}

// ConnectionPlan describes how to reach a destination workload on the wire.
type ConnectionPlan struct {
	// Mode of the connection.
	Mode Mode
	// Address to dial: the workload address, its gateway, or its tunnel relay.
	Address string
	// Protocol expected by the endpoint at Address.
	Protocol workload.Protocol
}

// MissingRelayError is returned when a workload requires a tunnel relay
// but none is configured.
type MissingRelayError struct {
	UID string
}

func (e *MissingRelayError) Error() string {
	return fmt.Sprintf("workload '%s' requires a tunnel relay but has none configured", e.UID)
}

// UnresolvedAddressError is returned when a workload must be dialed
// directly but has no address.
type UnresolvedAddressError struct {
	UID string
}

func (e *UnresolvedAddressError) Error() string {
	return fmt.Sprintf("workload '%s' has no resolvable address", e.UID)
}

// Resolve decides the connection mode for reaching dst from src.
//
// NativeHbone is an explicit operator override and wins regardless of
// topology; a configured gateway comes next; co-located workloads always
// bypass tunneling; otherwise the workload protocol governs.
//
// Resolve is pure and deterministic: identical (src, dst) pairs always
// yield identical plans. src may be nil when the source workload is unknown,
// in which case no co-location shortcut applies.
func Resolve(src, dst *workload.Workload) (*ConnectionPlan, error) {
	switch {
	case dst.NativeHbone:
		if dst.RemoteProxy == "" {
			return nil, &MissingRelayError{UID: dst.UID}
		}
		return &ConnectionPlan{
			Mode:     ModeTunnel,
			Address:  dst.RemoteProxy,
			Protocol: workload.ProtocolHTTP2Connect,
		}, nil

	case dst.GatewayAddress != "":
		return &ConnectionPlan{
			Mode:     ModeGateway,
			Address:  dst.GatewayAddress,
			Protocol: dst.Protocol,
		}, nil

	// an empty node is unknown, not co-located
	case src != nil && src.Node != "" && src.Node == dst.Node:
		if dst.Address == "" {
			return nil, &UnresolvedAddressError{UID: dst.UID}
		}
		return &ConnectionPlan{
			Mode:     ModeDirect,
			Address:  dst.Address,
			Protocol: workload.ProtocolDirect,
		}, nil

	case dst.Protocol == workload.ProtocolHTTP2Connect:
		if dst.RemoteProxy == "" {
			return nil, &MissingRelayError{UID: dst.UID}
		}
		return &ConnectionPlan{
			Mode:     ModeTunnel,
			Address:  dst.RemoteProxy,
			Protocol: workload.ProtocolHTTP2Connect,
		}, nil

	default:
		if dst.Address == "" {
			return nil, &UnresolvedAddressError{UID: dst.UID}
		}
		return &ConnectionPlan{
			Mode:     ModeDirect,
			Address:  dst.Address,
			Protocol: workload.ProtocolDirect,
		}, nil
	}
}
