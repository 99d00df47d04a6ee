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

package authz

import "fmt"

// ConnectionAttrs are the attributes of a peer connection which
// an authorization decision is made against.
type ConnectionAttrs struct {
	// PeerIdentity is the SPIFFE-form identity of the connecting peer.
	// Empty when the peer did not present a verified client certificate.
	PeerIdentity string
	// PeerNamespace is the namespace of the connecting peer.
	PeerNamespace string
	// DestPort is the destination port of the connection.
	DestPort uint32
}

// Rule matches a peer by identity and namespace.
// An empty identity or namespace matches any peer.
// When Invert is set, a structural match becomes a non-match and vice versa.
type Rule struct {
	Identity  string `json:"identity,omitempty"`
	Namespace string `json:"namespace,omitempty"`
	Invert    bool   `json:"invert,omitempty"`
}

func (r *Rule) matches(conn *ConnectionAttrs) bool {
	matched := (r.Identity == "" || r.Identity == conn.PeerIdentity) &&
		(r.Namespace == "" || r.Namespace == conn.PeerNamespace)
	return matched != r.Invert
}

// Condition matches the destination port of a connection.
// Port is mandatory; a zero port does not act as "no constraint".
type Condition struct {
	Port   uint32 `json:"port"`
	Invert bool   `json:"invert,omitempty"`
}

func (c *Condition) matches(conn *ConnectionAttrs) bool {
	return (conn.DestPort == c.Port) != c.Invert
}

// Policy is a conjunction of rules and conditions: it matches a connection
// iff all of its rules match and all of its conditions match.
// A policy with no rules and no conditions matches every connection.
type Policy struct {
	Rules []Rule      `json:"rule,omitempty"`
	When  []Condition `json:"when,omitempty"`
}

// Matches checks whether the policy matches the given connection.
func (p *Policy) Matches(conn *ConnectionAttrs) bool {
	for i := range p.Rules {
		if !p.Rules[i].matches(conn) {
			return false
		}
	}
	for i := range p.When {
		if !p.When[i].matches(conn) {
			return false
		}
	}
	return true
}

// Authorization is the access policy applied to inbound connections
// of a single workload. Deny policies take precedence over allow policies.
// An empty allow list means open-by-default (subject to the deny list).
type Authorization struct {
	EnforceTLS bool     `json:"enforceTLS,omitempty"`
	Allow      []Policy `json:"allow,omitempty"`
	Deny       []Policy `json:"deny,omitempty"`
}

// Validate returns an error if the given Authorization is invalid.
func (a *Authorization) Validate() error {
	for _, policies := range [][]Policy{a.Allow, a.Deny} {
		for i := range policies {
			for j := range policies[i].When {
				if policies[i].When[j].Port == 0 {
					return fmt.Errorf("authorization condition must specify a non-zero port")
				}
			}
		}
	}
	return nil
}
