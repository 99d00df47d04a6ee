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

package authz_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nodemesh-net/nodemesh/pkg/proxy/authz"
)

const (
	identityFoo = "spiffe://cluster.local/ns/foo/sa/bar"
	identityBaz = "spiffe://cluster.local/ns/baz/sa/qux"
)

func connFrom(identity string, port uint32) *authz.ConnectionAttrs {
	return &authz.ConnectionAttrs{
		PeerIdentity:  identity,
		PeerNamespace: authz.PeerNamespace(identity),
		DestPort:      port,
	}
}

func TestDecideEmptyAuthorization(t *testing.T) {
	decision := authz.Decide(&authz.Authorization{}, connFrom(identityFoo, 8080))
	require.True(t, decision.Allowed())
	require.Equal(t, authz.ReasonDefaultAllow, decision.Reason)

	// even an anonymous peer is allowed when TLS is not enforced
	decision = authz.Decide(&authz.Authorization{}, connFrom("", 8080))
	require.True(t, decision.Allowed())
}

func TestDecideEnforceTLS(t *testing.T) {
	authorization := &authz.Authorization{EnforceTLS: true}

	decision := authz.Decide(authorization, connFrom("", 8080))
	require.False(t, decision.Allowed())
	require.Equal(t, authz.ReasonUnauthenticatedPeer, decision.Reason)

	decision = authz.Decide(authorization, connFrom(identityFoo, 8080))
	require.True(t, decision.Allowed())
	require.Equal(t, authz.ReasonDefaultAllow, decision.Reason)
}

func TestDecideDenyOverridesAllow(t *testing.T) {
	authorization := &authz.Authorization{
		Allow: []authz.Policy{
			{Rules: []authz.Rule{{Identity: identityFoo}}},
		},
		Deny: []authz.Policy{
			{Rules: []authz.Rule{{Identity: identityFoo}}},
		},
	}

	decision := authz.Decide(authorization, connFrom(identityFoo, 8080))
	require.False(t, decision.Allowed())
	require.Equal(t, authz.ReasonExplicitDeny, decision.Reason)
}

func TestDecideAllowList(t *testing.T) {
	authorization := &authz.Authorization{
		Allow: []authz.Policy{
			{Rules: []authz.Rule{{Identity: identityFoo}}},
		},
	}

	decision := authz.Decide(authorization, connFrom(identityFoo, 8080))
	require.True(t, decision.Allowed())
	require.Equal(t, authz.ReasonAllowPolicyMatch, decision.Reason)

	decision = authz.Decide(authorization, connFrom(identityBaz, 8080))
	require.False(t, decision.Allowed())
	require.Equal(t, authz.ReasonNoMatchingAllow, decision.Reason)
}

func TestDecideNamespaceRule(t *testing.T) {
	authorization := &authz.Authorization{
		Allow: []authz.Policy{
			{Rules: []authz.Rule{{Namespace: "foo"}}},
		},
	}

	require.True(t, authz.Decide(authorization, connFrom(identityFoo, 8080)).Allowed())
	require.False(t, authz.Decide(authorization, connFrom(identityBaz, 8080)).Allowed())
}

func TestDecideInvertedRule(t *testing.T) {
	// inversion is a pure logical NOT of the structural match
	authorization := &authz.Authorization{
		Allow: []authz.Policy{
			{Rules: []authz.Rule{{Namespace: "foo", Invert: true}}},
		},
	}

	require.False(t, authz.Decide(authorization, connFrom(identityFoo, 8080)).Allowed())
	require.True(t, authz.Decide(authorization, connFrom(identityBaz, 8080)).Allowed())

	// an empty (match-anything) rule inverted matches nothing
	authorization = &authz.Authorization{
		Allow: []authz.Policy{
			{Rules: []authz.Rule{{Invert: true}}},
		},
	}
	require.False(t, authz.Decide(authorization, connFrom(identityFoo, 8080)).Allowed())
}

func TestDecidePortCondition(t *testing.T) {
	authorization := &authz.Authorization{
		Allow: []authz.Policy{
			{When: []authz.Condition{{Port: 8080}}},
		},
	}

	require.True(t, authz.Decide(authorization, connFrom(identityFoo, 8080)).Allowed())
	require.False(t, authz.Decide(authorization, connFrom(identityFoo, 9090)).Allowed())

	inverted := &authz.Authorization{
		Deny: []authz.Policy{
			{When: []authz.Condition{{Port: 8080, Invert: true}}},
		},
	}

	require.True(t, authz.Decide(inverted, connFrom(identityFoo, 8080)).Allowed())
	require.False(t, authz.Decide(inverted, connFrom(identityFoo, 9090)).Allowed())
}

func TestDecidePolicyConjunction(t *testing.T) {
	// all rules and all conditions of a policy must match
	authorization := &authz.Authorization{
		Allow: []authz.Policy{
			{
				Rules: []authz.Rule{{Namespace: "foo"}},
				When:  []authz.Condition{{Port: 8080}},
			},
		},
	}

	require.True(t, authz.Decide(authorization, connFrom(identityFoo, 8080)).Allowed())
	require.False(t, authz.Decide(authorization, connFrom(identityFoo, 9090)).Allowed())
	require.False(t, authz.Decide(authorization, connFrom(identityBaz, 8080)).Allowed())
}

func TestDecideDeterminism(t *testing.T) {
	authorization := &authz.Authorization{
		EnforceTLS: true,
		Allow: []authz.Policy{
			{Rules: []authz.Rule{{Namespace: "foo"}}},
			{When: []authz.Condition{{Port: 9090}}},
		},
		Deny: []authz.Policy{
			{Rules: []authz.Rule{{Identity: identityBaz}}},
		},
	}

	conn := connFrom(identityFoo, 8080)
	first := authz.Decide(authorization, conn)
	for i := 0; i < 100; i++ {
		require.Equal(t, first, authz.Decide(authorization, conn))
	}
}

func TestValidate(t *testing.T) {
	valid := &authz.Authorization{
		Allow: []authz.Policy{{When: []authz.Condition{{Port: 8080}}}},
	}
	require.NoError(t, valid.Validate())

	invalid := &authz.Authorization{
		Deny: []authz.Policy{{When: []authz.Condition{{Port: 0}}}},
	}
	require.Error(t, invalid.Validate())
}
