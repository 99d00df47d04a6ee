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
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http2"
)

// dialTunnel opens an HTTP/2 CONNECT stream to innerTarget through the
// relay at relayTarget, over mutually-authenticated TLS. The returned
// connection carries the raw stream bytes.
func (p *Proxy) dialTunnel(relayTarget, innerTarget string) (net.Conn, error) {
	sni, _, err := net.SplitHostPort(relayTarget)
	if err != nil {
		sni = relayTarget
	}

	tlsConfig := p.parsedCertData.ClientConfig(sni)
	tlsConfig.NextProtos = []string{"h2"}

	rawConn, err := tls.Dial("tcp", relayTarget, tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to dial relay '%s': %w", relayTarget, err)
	}

	transport := &http2.Transport{TLSClientConfig: tlsConfig}
	clientConn, err := transport.NewClientConn(rawConn)
	if err != nil {
		rawConn.Close()
		return nil, fmt.Errorf("unable to initialize stream to relay '%s': %w", relayTarget, err)
	}

	reader, writer := io.Pipe()
	request := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Scheme: "https", Host: innerTarget},
		Host:   innerTarget,
		Body:   reader,
	}

	response, err := clientConn.RoundTrip(request)
	if err != nil {
		rawConn.Close()
		return nil, fmt.Errorf("tunnel request to '%s' via '%s' failed: %w",
			innerTarget, relayTarget, err)
	}

	if response.StatusCode != http.StatusOK {
		response.Body.Close()
		rawConn.Close()
		return nil, fmt.Errorf("got HTTP %d while establishing tunnel to '%s'",
			response.StatusCode, innerTarget)
	}

	return &tunnelConn{
		conn:   rawConn,
		reader: response.Body,
		writer: writer,
	}, nil
}

// tunnelConn adapts a single CONNECT stream to net.Conn.
type tunnelConn struct {
	conn   *tls.Conn
	reader io.ReadCloser
	writer *io.PipeWriter
}

func (c *tunnelConn) Read(b []byte) (int, error) {
	return c.reader.Read(b)
}

func (c *tunnelConn) Write(b []byte) (int, error) {
	return c.writer.Write(b)
}

func (c *tunnelConn) Close() error {
	c.writer.Close()
	c.reader.Close()
	return c.conn.Close()
}

func (c *tunnelConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *tunnelConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *tunnelConn) SetDeadline(t time.Time) error {
	return c.conn.SetDeadline(t)
}

func (c *tunnelConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *tunnelConn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}
