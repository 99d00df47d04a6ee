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
	"io"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	dataBufferSize = 64 * 1024
)

// forwarder splices bytes between a local application connection and a
// mesh-facing connection until either side closes.
type forwarder struct {
	appConn  net.Conn
	meshConn net.Conn
	logger   *logrus.Entry
}

func (f *forwarder) meshToApp() error {
	// closing both sides unblocks the sibling direction
	defer f.closeConnections()

	bufData := make([]byte, dataBufferSize)
	for {
		numBytes, err := f.meshConn.Read(bufData)
		if err != nil {
			if err != io.EOF { // don't log EOF
				return err
			}
			return nil
		}
		if _, err := f.appConn.Write(bufData[:numBytes]); err != nil {
			if err != io.EOF { // don't log EOF
				return err
			}
			return nil
		}
	}
}

func (f *forwarder) appToMesh() error {
	// closing both sides unblocks the sibling direction
	defer f.closeConnections()

	bufData := make([]byte, dataBufferSize)
	for {
		numBytes, err := f.appConn.Read(bufData)
		if err != nil {
			if err != io.EOF { // don't log EOF
				return err
			}
			return nil
		}
		if _, err := f.meshConn.Write(bufData[:numBytes]); err != nil {
			if err != io.EOF { // don't log EOF
				return err
			}
			return nil
		}
	}
}

func (f *forwarder) closeConnections() {
	if f.meshConn != nil {
		f.meshConn.Close()
	}
	if f.appConn != nil {
		f.appConn.Close()
	}
}

func (f *forwarder) run() {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := f.appToMesh(); err != nil {
			f.logger.Errorf("End of app to mesh connection: %v.", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := f.meshToApp(); err != nil {
			f.logger.Errorf("End of mesh to app connection: %v.", err)
		}
	}()

	wg.Wait()
}

func newForwarder(appConn, meshConn net.Conn) *forwarder {
	return &forwarder{
		appConn:  appConn,
		meshConn: meshConn,
		logger:   logrus.WithField("component", "proxy.forwarder"),
	}
}
