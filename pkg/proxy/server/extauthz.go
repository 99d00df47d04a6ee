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
	"context"

	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
	typev3 "github.com/envoyproxy/go-control-plane/envoy/type/v3"
	"github.com/sirupsen/logrus"
	rpcstatus "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nodemesh-net/nodemesh/pkg/proxy/authz"
	"github.com/nodemesh-net/nodemesh/pkg/proxy/metrics"
	utilgrpc "github.com/nodemesh-net/nodemesh/pkg/util/grpc"
	"github.com/nodemesh-net/nodemesh/pkg/workload"
)

// authzService implements the Envoy external authorization API on top of
// the workload policy evaluator, so non-tunneled proxies can delegate
// their access decisions.
type authzService struct {
	proxy  *Proxy
	logger *logrus.Entry
}

// Check authorizes a single connection attempt.
func (s *authzService) Check(
	_ context.Context, req *authv3.CheckRequest,
) (*authv3.CheckResponse, error) {
	address, port := destinationFromRequest(req)

	var principal string
	if source := req.GetAttributes().GetSource(); source != nil {
		principal = source.Principal
	}

	destination, err := s.proxy.store.Get().GetByAddress(address)
	if err != nil {
		s.logger.Infof("Authorization request for unknown destination '%s'.", address)
		return deniedResponse("unknown destination workload"), nil
	}

	decision := authz.Decision{Verdict: authz.VerdictAllow, Reason: authz.ReasonNotEnforced}
	if destination.Enforce {
		decision = authz.Decide(&destination.Rbac, &authz.ConnectionAttrs{
			PeerIdentity:  principal,
			PeerNamespace: authz.PeerNamespace(principal),
			DestPort:      port,
		})
	}
	metrics.RecordDecision(decision)

	if !decision.Allowed() {
		s.logger.Infof("Denying '%s' access to '%s': %s.",
			principal, destination.UID, decision.Reason)
		return deniedResponse(string(decision.Reason)), nil
	}

	return &authv3.CheckResponse{
		Status:          &rpcstatus.Status{Code: int32(codes.OK)},
		DynamicMetadata: decisionMetadata(decision, destination),
		HttpResponse: &authv3.CheckResponse_OkResponse{
			OkResponse: &authv3.OkHttpResponse{},
		},
	}, nil
}

func deniedResponse(reason string) *authv3.CheckResponse {
	return &authv3.CheckResponse{
		Status: &rpcstatus.Status{
			Code:    int32(codes.PermissionDenied),
			Message: reason,
		},
		HttpResponse: &authv3.CheckResponse_DeniedResponse{
			DeniedResponse: &authv3.DeniedHttpResponse{
				Status: &typev3.HttpStatus{Code: typev3.StatusCode_Forbidden},
				Body:   reason,
			},
		},
	}
}

func decisionMetadata(decision authz.Decision, destination *workload.Workload) *structpb.Struct {
	metadata, err := structpb.NewStruct(map[string]interface{}{
		"reason":   string(decision.Reason),
		"workload": destination.UID,
	})
	if err != nil {
		return nil
	}
	return metadata
}

func destinationFromRequest(req *authv3.CheckRequest) (string, uint32) {
	socketAddress := req.GetAttributes().GetDestination().GetAddress().GetSocketAddress()
	return socketAddress.GetAddress(), socketAddress.GetPortValue()
}

// NewAuthzServer returns a gRPC server exposing the external
// authorization API over mutually-authenticated TLS.
func NewAuthzServer(proxy *Proxy) *utilgrpc.Server {
	server := utilgrpc.NewServer("authz-server", proxy.parsedCertData.ServerConfig())
	authv3.RegisterAuthorizationServer(server.GetGRPCServer(), &authzService{
		proxy:  proxy,
		logger: logrus.WithField("component", "proxy.authz-server"),
	})
	return server
}
