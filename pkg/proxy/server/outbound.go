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
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/sirupsen/logrus"

	"github.com/nodemesh-net/nodemesh/pkg/proxy/api"
	"github.com/nodemesh-net/nodemesh/pkg/proxy/metrics"
	"github.com/nodemesh-net/nodemesh/pkg/proxy/router"
	"github.com/nodemesh-net/nodemesh/pkg/util/tcp"
	"github.com/nodemesh-net/nodemesh/pkg/workload"
)

// OutboundServer accepts HTTP CONNECT requests from local applications
// and routes them into the mesh.
type OutboundServer struct {
	tcp.Listener

	proxy  *Proxy
	router *chi.Mux
	server *http.Server

	logger *logrus.Entry
}

// Name of the server.
func (s *OutboundServer) Name() string {
	return "outbound-server"
}

// Start the server.
func (s *OutboundServer) Start() error {
	err := s.server.Serve(s.GetListener())
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop the server.
func (s *OutboundServer) Stop() error {
	return s.server.Close()
}

// GracefulStop does a graceful stop of the server.
func (s *OutboundServer) GracefulStop() error {
	return s.server.Shutdown(context.Background())
}

func (s *OutboundServer) egress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodConnect {
		http.Error(w, "only CONNECT requests are proxied", http.StatusMethodNotAllowed)
		return
	}

	host, portString, err := net.SplitHostPort(r.Host)
	if err != nil {
		http.Error(w, fmt.Sprintf("malformed target '%s'", r.Host), http.StatusBadRequest)
		return
	}

	port, err := strconv.ParseUint(portString, 10, 16)
	if err != nil {
		http.Error(w, fmt.Sprintf("malformed target port '%s'", portString), http.StatusBadRequest)
		return
	}

	source := &workload.Workload{Node: s.proxy.node}
	if sourceIP, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		source = s.proxy.sourceWorkload(sourceIP)
	}

	snapshot := s.proxy.store.Get()
	targetPort := uint32(port)

	destination, err := snapshot.GetByAddress(host)
	if err != nil {
		var virtualErr error
		destination, virtualErr = snapshot.GetByVIP(host)
		if virtualErr != nil {
			// unknown destination, pass the connection through untouched
			s.passthrough(w, r)
			return
		}

		targetPort, err = workload.TranslateVIP(destination, host, uint32(port))
		if err != nil {
			s.logger.Infof("Rejecting egress connection: %v.", err)
			metrics.ConnectionErrors.WithLabelValues("outbound").Inc()
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
	}

	plan, err := router.Resolve(source, destination)
	if err != nil {
		s.logger.Errorf("Unable to plan egress connection to '%s': %v.", destination.UID, err)
		metrics.ConnectionErrors.WithLabelValues("outbound").Inc()
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	meshConn, err := s.dial(plan, destination, targetPort)
	if err != nil {
		s.logger.Errorf("Unable to establish egress connection: %v.", err)
		metrics.ConnectionErrors.WithLabelValues("outbound").Inc()
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	appConn, err := s.hijackConn(w)
	if err != nil {
		s.logger.Errorf("Hijacking failed: %v.", err)
		metrics.ConnectionErrors.WithLabelValues("outbound").Inc()
		http.Error(w, "hijacking failed", http.StatusInternalServerError)
		meshConn.Close()
		return
	}

	metrics.Connections.WithLabelValues("outbound", plan.Mode.String()).Inc()
	s.logger.Infof("Egress connection to '%s' via %s (%s).",
		destination.UID, plan.Address, plan.Mode)

	forward := newForwarder(appConn, meshConn)
	forward.run()
}

// dial opens the mesh-facing connection described by the plan.
func (s *OutboundServer) dial(
	plan *router.ConnectionPlan,
	destination *workload.Workload,
	targetPort uint32,
) (net.Conn, error) {
	innerTarget := net.JoinHostPort(
		destination.Address, strconv.Itoa(int(targetPort)))

	switch plan.Mode {
	case router.ModeTunnel:
		return s.proxy.dialTunnel(api.RelayTarget(plan.Address), innerTarget)

	case router.ModeGateway:
		// the plan protocol is the gateway's, not the destination's
		if plan.Protocol == workload.ProtocolHTTP2Connect {
			return s.proxy.dialTunnel(api.RelayTarget(plan.Address), innerTarget)
		}

		target := plan.Address
		if _, _, err := net.SplitHostPort(target); err != nil {
			target = net.JoinHostPort(target, strconv.Itoa(int(targetPort)))
		}
		return net.DialTimeout("tcp", target, time.Second)

	default:
		target := net.JoinHostPort(plan.Address, strconv.Itoa(int(targetPort)))
		return net.DialTimeout("tcp", target, time.Second)
	}
}

// passthrough proxies a connection to a destination outside the mesh.
func (s *OutboundServer) passthrough(w http.ResponseWriter, r *http.Request) {
	meshConn, err := net.DialTimeout("tcp", r.Host, time.Second)
	if err != nil {
		s.logger.Infof("Passthrough dial to '%s' failed: %v.", r.Host, err)
		metrics.ConnectionErrors.WithLabelValues("outbound").Inc()
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	appConn, err := s.hijackConn(w)
	if err != nil {
		s.logger.Errorf("Hijacking failed: %v.", err)
		metrics.ConnectionErrors.WithLabelValues("outbound").Inc()
		http.Error(w, "hijacking failed", http.StatusInternalServerError)
		meshConn.Close()
		return
	}

	metrics.Connections.WithLabelValues("outbound", "passthrough").Inc()
	s.logger.Debugf("Passthrough connection to '%s'.", r.Host)

	forward := newForwarder(appConn, meshConn)
	forward.run()
}

func (s *OutboundServer) hijackConn(w http.ResponseWriter) (net.Conn, error) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		return nil, errors.New("server doesn't support hijacking")
	}

	appConn, _, err := hj.Hijack()
	if err != nil {
		return nil, fmt.Errorf("hijacking failed: %w", err)
	}

	if err := appConn.SetDeadline(time.Time{}); err != nil {
		return nil, fmt.Errorf("failed to clear deadlines on connection: %w", err)
	}

	fmt.Fprintf(appConn, "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\n\r\n")
	return appConn, nil
}

// NewOutboundServer returns a new egress proxy server.
func NewOutboundServer(proxy *Proxy) *OutboundServer {
	s := &OutboundServer{
		Listener: tcp.NewListener("outbound-server"),
		proxy:    proxy,
		router:   chi.NewRouter(),
		logger:   logrus.WithField("component", "proxy.outbound"),
	}

	// CONNECT requests do not match any route
	s.router.NotFound(s.egress)

	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 2 * time.Second,
	}

	return s
}
