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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nodemesh-net/nodemesh/pkg/proxy/authz"
)

var (
	// AuthzDecisions counts authorization decisions by verdict and reason.
	AuthzDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nodemesh_authz_decisions_total",
		Help: "Authorization decisions made by the proxy.",
	}, []string{"verdict", "reason"})

	// Connections counts proxied connections by direction and plan mode.
	Connections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nodemesh_proxy_connections_total",
		Help: "Connections proxied, by direction and connection plan mode.",
	}, []string{"direction", "mode"})

	// ConnectionErrors counts connections dropped before being proxied.
	ConnectionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nodemesh_proxy_connection_errors_total",
		Help: "Connections dropped by the proxy, by direction.",
	}, []string{"direction"})
)

// RecordDecision records an authorization decision.
func RecordDecision(decision authz.Decision) {
	AuthzDecisions.WithLabelValues(decision.Verdict.String(), string(decision.Reason)).Inc()
}
