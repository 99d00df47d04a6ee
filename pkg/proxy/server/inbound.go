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
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"

	"github.com/nodemesh-net/nodemesh/pkg/proxy/authz"
	"github.com/nodemesh-net/nodemesh/pkg/proxy/metrics"
	"github.com/nodemesh-net/nodemesh/pkg/util/tcp"
)

// TunnelServer terminates inbound HTTP/2 CONNECT tunnels over mutually
// authenticated TLS, authorizes each stream against the destination
// workload policy, and splices allowed streams to the local application.
type TunnelServer struct {
	tcp.Listener

	proxy  *Proxy
	server *http.Server

	logger *logrus.Entry
}

// Name of the server.
func (s *TunnelServer) Name() string {
	return "tunnel-server"
}

// Start the server.
func (s *TunnelServer) Start() error {
	err := s.server.ServeTLS(s.GetListener(), "", "")
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop the server.
func (s *TunnelServer) Stop() error {
	return s.server.Close()
}

// GracefulStop does a graceful stop of the server.
func (s *TunnelServer) GracefulStop() error {
	return s.server.Shutdown(context.Background())
}

func (s *TunnelServer) serveConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodConnect {
		http.Error(w, "only CONNECT requests are served", http.StatusMethodNotAllowed)
		return
	}

	peerIdentity := peerIdentityFromRequest(r)
	if peerIdentity == "" {
		metrics.ConnectionErrors.WithLabelValues("inbound").Inc()
		http.Error(w, "client certificate carries no identity", http.StatusUnauthorized)
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

	destination, err := s.proxy.store.Get().GetByAddress(host)
	if err != nil {
		s.logger.Infof("Rejecting tunnel to unknown destination '%s'.", host)
		metrics.ConnectionErrors.WithLabelValues("inbound").Inc()
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	decision := authz.Decision{Verdict: authz.VerdictAllow, Reason: authz.ReasonNotEnforced}
	if destination.Enforce {
		decision = authz.Decide(&destination.Rbac, &authz.ConnectionAttrs{
			PeerIdentity:  peerIdentity,
			PeerNamespace: authz.PeerNamespace(peerIdentity),
			DestPort:      uint32(port),
		})
	}
	metrics.RecordDecision(decision)

	if !decision.Allowed() {
		s.logger.Infof("Denying tunnel from '%s' to '%s': %s.",
			peerIdentity, destination.UID, decision.Reason)
		http.Error(w, string(decision.Reason), http.StatusUnauthorized)
		return
	}

	appConn, err := net.DialTimeout(
		"tcp", net.JoinHostPort(host, portString), time.Second)
	if err != nil {
		s.logger.Errorf("Dial to local application failed: %v.", err)
		metrics.ConnectionErrors.WithLabelValues("inbound").Inc()
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer appConn.Close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Error("Tunnel response writer does not support flushing.")
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	metrics.Connections.WithLabelValues("inbound", "tunnel").Inc()
	s.logger.Infof("Tunnel from '%s' to '%s' established.", peerIdentity, r.Host)

	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := io.Copy(appConn, r.Body); err != nil {
			s.logger.Debugf("Tunnel read side closed: %v.", err)
		}
	}()

	if _, err := io.Copy(&flushWriter{writer: w, flusher: flusher}, appConn); err != nil {
		s.logger.Debugf("Tunnel write side closed: %v.", err)
	}
	<-done
}

// peerIdentityFromRequest extracts the SPIFFE identity from the verified
// client certificate, or returns an empty string if there is none.
func peerIdentityFromRequest(r *http.Request) string {
	if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
		return ""
	}

	for _, uri := range r.TLS.PeerCertificates[0].URIs {
		if uri.Scheme == "spiffe" {
			return uri.String()
		}
	}
	return ""
}

// flushWriter flushes the HTTP/2 stream after every write so tunneled
// bytes are not held back by response buffering.
type flushWriter struct {
	writer  io.Writer
	flusher http.Flusher
}

func (f *flushWriter) Write(b []byte) (int, error) {
	n, err := f.writer.Write(b)
	f.flusher.Flush()
	return n, err
}

// NewTunnelServer returns a new inbound tunnel server.
func NewTunnelServer(proxy *Proxy) (*TunnelServer, error) {
	s := &TunnelServer{
		Listener: tcp.NewListener("tunnel-server"),
		proxy:    proxy,
		logger:   logrus.WithField("component", "proxy.inbound"),
	}

	s.server = &http.Server{
		Handler:           http.HandlerFunc(s.serveConnect),
		TLSConfig:         proxy.parsedCertData.ServerConfig(),
		ReadHeaderTimeout: 2 * time.Second,
	}

	if err := http2.ConfigureServer(s.server, &http2.Server{}); err != nil {
		return nil, fmt.Errorf("unable to configure HTTP/2 server: %w", err)
	}

	return s, nil
}
