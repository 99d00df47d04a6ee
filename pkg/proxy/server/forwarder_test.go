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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestForwarderSplices(t *testing.T) {
	appLocal, appRemote := net.Pipe()
	meshLocal, meshRemote := net.Pipe()

	forward := newForwarder(appRemote, meshRemote)
	done := make(chan struct{})
	go func() {
		defer close(done)
		forward.run()
	}()

	go func() {
		_, _ = appLocal.Write([]byte("ping"))
	}()

	buf := make([]byte, 4)
	require.NoError(t, meshLocal.SetReadDeadline(time.Now().Add(time.Second)))
	_, err := io.ReadFull(meshLocal, buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf))

	appLocal.Close()
	meshLocal.Close()
	<-done
}

func TestForwarderClosesBothSidesOnError(t *testing.T) {
	appLocal, appRemote := net.Pipe()
	meshLocal, meshRemote := net.Pipe()

	forward := newForwarder(appRemote, meshRemote)
	done := make(chan struct{})
	go func() {
		defer close(done)
		forward.run()
	}()

	// an abrupt pipe close surfaces as a non-EOF read error on appRemote;
	// the mesh side must still be torn down
	appLocal.Close()

	require.NoError(t, meshLocal.SetReadDeadline(time.Now().Add(time.Second)))
	_, err := meshLocal.Read(make([]byte, 1))
	require.ErrorIs(t, err, io.EOF)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forwarder did not stop")
	}
}
