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

// Package api defines the well-known ports of the nodemesh proxy.
package api

import (
	"net"
	"strconv"
)

const (
	// OutboundPort is the port of the egress CONNECT proxy.
	OutboundPort = 15001
	// TunnelPort is the port of the inbound mTLS HTTP/2 CONNECT tunnel server.
	TunnelPort = 15008
	// AuthzPort is the port of the gRPC external authorization server.
	AuthzPort = 15012
	// AdminPort is the port of the workload management and metrics server.
	AdminPort = 15020
)

// RelayTarget returns a dialable relay address: if address carries no port,
// the well-known tunnel port is appended.
func RelayTarget(address string) string {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}
	return net.JoinHostPort(address, strconv.Itoa(TunnelPort))
}
