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

package router_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nodemesh-net/nodemesh/pkg/proxy/router"
	"github.com/nodemesh-net/nodemesh/pkg/workload"
)

func TestResolveDirect(t *testing.T) {
	dst := &workload.Workload{UID: "dst", Address: "10.0.0.2"}

	plan, err := router.Resolve(nil, dst)
	require.NoError(t, err)
	require.Equal(t, router.ModeDirect, plan.Mode)
	require.Equal(t, "10.0.0.2", plan.Address)
	require.Equal(t, workload.ProtocolDirect, plan.Protocol)
}

func TestResolveDirectNoAddress(t *testing.T) {
	_, err := router.Resolve(nil, &workload.Workload{UID: "dst"})
	require.Error(t, err)
	require.IsType(t, &router.UnresolvedAddressError{}, err)
}

func TestResolveTunnel(t *testing.T) {
	dst := &workload.Workload{
		UID:         "dst",
		Address:     "10.0.0.2",
		Protocol:    workload.ProtocolHTTP2Connect,
		RemoteProxy: "10.0.0.100",
	}

	plan, err := router.Resolve(nil, dst)
	require.NoError(t, err)
	require.Equal(t, router.ModeTunnel, plan.Mode)
	require.Equal(t, "10.0.0.100", plan.Address)
	require.Equal(t, workload.ProtocolHTTP2Connect, plan.Protocol)
}

func TestResolveTunnelMissingRelay(t *testing.T) {
	dst := &workload.Workload{
		UID:      "dst",
		Address:  "10.0.0.2",
		Protocol: workload.ProtocolHTTP2Connect,
	}

	_, err := router.Resolve(nil, dst)
	require.Error(t, err)
	require.IsType(t, &router.MissingRelayError{}, err)
}

func TestResolveGateway(t *testing.T) {
	dst := &workload.Workload{
		UID:            "dst",
		Address:        "10.0.0.2",
		Protocol:       workload.ProtocolHTTP2Connect,
		RemoteProxy:    "10.0.0.100",
		GatewayAddress: "10.0.0.200",
	}

	plan, err := router.Resolve(nil, dst)
	require.NoError(t, err)
	require.Equal(t, router.ModeGateway, plan.Mode)
	require.Equal(t, "10.0.0.200", plan.Address)
	require.Equal(t, workload.ProtocolHTTP2Connect, plan.Protocol)
}

func TestResolveSameNode(t *testing.T) {
	src := &workload.Workload{UID: "src", Node: "node-a"}
	dst := &workload.Workload{
		UID:         "dst",
		Address:     "10.0.0.2",
		Protocol:    workload.ProtocolHTTP2Connect,
		RemoteProxy: "10.0.0.100",
		Node:        "node-a",
	}

	// co-located workloads skip the tunnel
	plan, err := router.Resolve(src, dst)
	require.NoError(t, err)
	require.Equal(t, router.ModeDirect, plan.Mode)
	require.Equal(t, "10.0.0.2", plan.Address)
}

func TestResolveEmptyNodeNotColocated(t *testing.T) {
	src := &workload.Workload{UID: "src"}
	dst := &workload.Workload{
		UID:         "dst",
		Address:     "10.0.0.2",
		Protocol:    workload.ProtocolHTTP2Connect,
		RemoteProxy: "10.0.0.100",
	}

	plan, err := router.Resolve(src, dst)
	require.NoError(t, err)
	require.Equal(t, router.ModeTunnel, plan.Mode)
}

func TestResolveNativeHboneOverride(t *testing.T) {
	src := &workload.Workload{UID: "src", Node: "node-a"}
	dst := &workload.Workload{
		UID:         "dst",
		Address:     "10.0.0.2",
		RemoteProxy: "10.0.0.100",
		NativeHbone: true,
		Node:        "node-a",
	}

	// the override wins even over co-location
	plan, err := router.Resolve(src, dst)
	require.NoError(t, err)
	require.Equal(t, router.ModeTunnel, plan.Mode)
	require.Equal(t, "10.0.0.100", plan.Address)

	dst.RemoteProxy = ""
	_, err = router.Resolve(src, dst)
	require.Error(t, err)
	require.IsType(t, &router.MissingRelayError{}, err)
}

func TestResolveDeterminism(t *testing.T) {
	src := &workload.Workload{UID: "src", Node: "node-a"}
	dst := &workload.Workload{
		UID:         "dst",
		Address:     "10.0.0.2",
		Protocol:    workload.ProtocolHTTP2Connect,
		RemoteProxy: "10.0.0.100",
		Node:        "node-b",
	}

	first, err := router.Resolve(src, dst)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		plan, err := router.Resolve(src, dst)
		require.NoError(t, err)
		require.Equal(t, first, plan)
	}
}
