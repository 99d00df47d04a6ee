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

package server

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nodemesh-net/nodemesh/pkg/proxy/router"
	"github.com/nodemesh-net/nodemesh/pkg/workload"
)

func TestSourceWorkload(t *testing.T) {
	store := workload.NewStore()
	require.Empty(t, store.Replace([]workload.Workload{
		{UID: "uid-1", Address: "10.0.0.1", Node: "node-b"},
	}))

	proxy := NewProxy("node-a", store, nil)

	source := proxy.sourceWorkload("10.0.0.1")
	require.Equal(t, "uid-1", source.UID)
	require.Equal(t, "node-b", source.Node)

	// an unregistered client is attributed to the proxy's own node
	source = proxy.sourceWorkload("10.0.0.9")
	require.NotNil(t, source)
	require.Equal(t, "node-a", source.Node)
}

func TestUnregisteredSourceColocation(t *testing.T) {
	proxy := NewProxy("node-a", workload.NewStore(), nil)

	destination := &workload.Workload{
		UID:         "dst",
		Address:     "10.0.0.2",
		Protocol:    workload.ProtocolHTTP2Connect,
		RemoteProxy: "10.0.0.100",
		Node:        "node-a",
	}

	// a local destination is dialed directly even when the client IP
	// is not a registered workload
	plan, err := router.Resolve(proxy.sourceWorkload("10.0.0.9"), destination)
	require.NoError(t, err)
	require.Equal(t, router.ModeDirect, plan.Mode)
	require.Equal(t, "10.0.0.2", plan.Address)

	destination.Node = "node-b"
	plan, err = router.Resolve(proxy.sourceWorkload("10.0.0.9"), destination)
	require.NoError(t, err)
	require.Equal(t, router.ModeTunnel, plan.Mode)
}
