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

import (
	"fmt"
	"strings"
)

const spiffeScheme = "spiffe://"

// Identity is a parsed SPIFFE workload identity.
type Identity struct {
	TrustDomain    string
	Namespace      string
	ServiceAccount string
}

// String returns the SPIFFE URI form of the identity.
func (i *Identity) String() string {
	return fmt.Sprintf("%s%s/ns/%s/sa/%s",
		spiffeScheme, i.TrustDomain, i.Namespace, i.ServiceAccount)
}

// ParseIdentity parses a SPIFFE URI of the form
// spiffe://<trust-domain>/ns/<namespace>/sa/<service-account>.
func ParseIdentity(uri string) (*Identity, error) {
	if !strings.HasPrefix(uri, spiffeScheme) {
		return nil, fmt.Errorf("identity '%s' does not have a spiffe:// scheme", uri)
	}

	segments := strings.Split(strings.TrimPrefix(uri, spiffeScheme), "/")
	if len(segments) != 5 || segments[1] != "ns" || segments[3] != "sa" {
		return nil, fmt.Errorf(
			"identity '%s' is not of the form spiffe://<trust-domain>/ns/<namespace>/sa/<service-account>", uri)
	}

	for _, segment := range segments {
		if segment == "" {
			return nil, fmt.Errorf("identity '%s' contains an empty segment", uri)
		}
	}

	return &Identity{
		TrustDomain:    segments[0],
		Namespace:      segments[2],
		ServiceAccount: segments[4],
	}, nil
}

// PeerNamespace extracts the namespace encoded in a SPIFFE-form peer
// identity, or an empty string if the identity cannot be parsed.
func PeerNamespace(identity string) string {
	parsed, err := ParseIdentity(identity)
	if err != nil {
		return ""
	}
	return parsed.Namespace
}
