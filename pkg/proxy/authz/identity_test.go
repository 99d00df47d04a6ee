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

func TestParseIdentity(t *testing.T) {
	identity, err := authz.ParseIdentity("spiffe://cluster.local/ns/foo/sa/bar")
	require.NoError(t, err)
	require.Equal(t, "cluster.local", identity.TrustDomain)
	require.Equal(t, "foo", identity.Namespace)
	require.Equal(t, "bar", identity.ServiceAccount)
	require.Equal(t, "spiffe://cluster.local/ns/foo/sa/bar", identity.String())
}

func TestParseIdentityInvalid(t *testing.T) {
	for _, uri := range []string{
		"",
		"cluster.local/ns/foo/sa/bar",
		"spiffe://cluster.local",
		"spiffe://cluster.local/ns/foo",
		"spiffe://cluster.local/sa/bar/ns/foo",
		"spiffe://cluster.local/ns//sa/bar",
		"spiffe://cluster.local/ns/foo/sa/bar/extra",
	} {
		_, err := authz.ParseIdentity(uri)
		require.Error(t, err, "uri: %s", uri)
	}
}

func TestPeerNamespace(t *testing.T) {
	require.Equal(t, "foo", authz.PeerNamespace("spiffe://cluster.local/ns/foo/sa/bar"))
	require.Equal(t, "", authz.PeerNamespace("not-an-identity"))
	require.Equal(t, "", authz.PeerNamespace(""))
}
