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
	"github.com/sirupsen/logrus"

	utiltls "github.com/nodemesh-net/nodemesh/pkg/util/tls"
	"github.com/nodemesh-net/nodemesh/pkg/workload"
)

// Proxy holds the state shared by the proxy servers: the node the proxy
// runs on, the published workload snapshots, and the mesh certificates.
type Proxy struct {
	node           string
	store          *workload.Store
	parsedCertData *utiltls.ParsedCertData

	logger *logrus.Entry
}

// sourceWorkload returns the workload registered at the given IP.
// A client at an unregistered IP is attributed to the proxy's own node,
// so co-location with local destinations still applies.
func (p *Proxy) sourceWorkload(ip string) *workload.Workload {
	source, err := p.store.Get().GetByAddress(ip)
	if err != nil {
		return &workload.Workload{Node: p.node}
	}
	return source
}

// NewProxy returns a new proxy for the given node.
func NewProxy(node string, store *workload.Store, parsedCertData *utiltls.ParsedCertData) *Proxy {
	return &Proxy{
		node:           node,
		store:          store,
		parsedCertData: parsedCertData,
		logger:         logrus.WithField("component", "proxy"),
	}
}
