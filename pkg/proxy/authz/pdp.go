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

// Verdict is the outcome of an authorization decision.
type Verdict int

const (
	VerdictDeny Verdict = iota
	VerdictAllow
)

func (v Verdict) String() string {
	if v == VerdictAllow {
		return "allow"
	}
	return "deny"
}

// Reason classifies why a verdict was reached.
// Deny reasons are routine, expected outcomes - not internal errors.
type Reason string

const (
	// ReasonUnauthenticatedPeer denies a peer which presented no verified
	// identity while the destination requires TLS.
	ReasonUnauthenticatedPeer Reason = "unauthenticated-peer"
	// ReasonExplicitDeny denies a connection matched by a deny policy.
	ReasonExplicitDeny Reason = "explicit-deny"
	// ReasonNoMatchingAllow denies a connection matched by none of the
	// configured allow policies.
	ReasonNoMatchingAllow Reason = "no-matching-allow"
	// ReasonAllowPolicyMatch allows a connection matched by an allow policy.
	ReasonAllowPolicyMatch Reason = "allow-policy-match"
	// ReasonDefaultAllow allows a connection when no allow policies are configured.
	ReasonDefaultAllow Reason = "default-allow"
	// ReasonNotEnforced allows a connection to a workload running in permissive mode.
	ReasonNotEnforced Reason = "not-enforced"
)

// Decision is the result of evaluating an Authorization against a connection.
type Decision struct {
	Verdict Verdict
	Reason  Reason
}

// Allowed returns whether the decision allows the connection.
func (d Decision) Allowed() bool {
	return d.Verdict == VerdictAllow
}

// Decide evaluates an Authorization against the attributes of a connection.
//
// Precedence: an unauthenticated peer is denied when TLS is enforced;
// a matching deny policy is absolute and short-circuits; an empty allow
// list is open-by-default; otherwise some allow policy must match.
//
// Decide is pure: it performs no I/O, never blocks, and always returns
// identical results for identical inputs. It is safe for concurrent use.
func Decide(authz *Authorization, conn *ConnectionAttrs) Decision {
	if authz.EnforceTLS && conn.PeerIdentity == "" {
		return Decision{Verdict: VerdictDeny, Reason: ReasonUnauthenticatedPeer}
	}

	for i := range authz.Deny {
		if authz.Deny[i].Matches(conn) {
			return Decision{Verdict: VerdictDeny, Reason: ReasonExplicitDeny}
		}
	}

	if len(authz.Allow) == 0 {
		return Decision{Verdict: VerdictAllow, Reason: ReasonDefaultAllow}
	}

	for i := range authz.Allow {
		if authz.Allow[i].Matches(conn) {
			return Decision{Verdict: VerdictAllow, Reason: ReasonAllowPolicyMatch}
		}
	}

	return Decision{Verdict: VerdictDeny, Reason: ReasonNoMatchingAllow}
}
