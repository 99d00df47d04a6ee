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

package admin_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nodemesh-net/nodemesh/pkg/proxy/admin"
	"github.com/nodemesh-net/nodemesh/pkg/workload"
)

func newTestServer(t *testing.T) (*httptest.Server, *workload.Store) {
	t.Helper()
	store := workload.NewStore()
	adminServer := admin.NewServer(store)
	httpServer := httptest.NewServer(adminServer.Router())
	t.Cleanup(httpServer.Close)
	return httpServer, store
}

func TestPutWorkloads(t *testing.T) {
	server, store := newTestServer(t)

	records := []workload.Workload{
		{UID: "uid-1", Address: "10.0.0.1"},
		{UID: "", Address: "10.0.0.2"},
	}
	raw, err := json.Marshal(records)
	require.NoError(t, err)

	request, err := http.NewRequest(
		http.MethodPut, server.URL+"/workloads", bytes.NewReader(raw))
	require.NoError(t, err)

	response, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	defer response.Body.Close()
	require.Equal(t, http.StatusOK, response.StatusCode)

	var result struct {
		Published int      `json:"published"`
		Dropped   []string `json:"dropped"`
	}
	require.NoError(t, json.NewDecoder(response.Body).Decode(&result))
	require.Equal(t, 1, result.Published)
	require.Len(t, result.Dropped, 1)

	require.Equal(t, 1, store.Get().Len())
}

func TestGetWorkloads(t *testing.T) {
	server, store := newTestServer(t)
	require.Empty(t, store.Replace([]workload.Workload{
		{UID: "uid-1", Address: "10.0.0.1"},
	}))

	response, err := http.Get(server.URL + "/workloads")
	require.NoError(t, err)
	defer response.Body.Close()
	require.Equal(t, http.StatusOK, response.StatusCode)

	var records []workload.Workload
	require.NoError(t, json.NewDecoder(response.Body).Decode(&records))
	require.Len(t, records, 1)
	require.Equal(t, "uid-1", records[0].UID)
}

func TestGetWorkload(t *testing.T) {
	server, store := newTestServer(t)
	require.Empty(t, store.Replace([]workload.Workload{
		{UID: "uid-1", Address: "10.0.0.1"},
	}))

	response, err := http.Get(server.URL + "/workloads/uid-1")
	require.NoError(t, err)
	defer response.Body.Close()
	require.Equal(t, http.StatusOK, response.StatusCode)

	var record workload.Workload
	require.NoError(t, json.NewDecoder(response.Body).Decode(&record))
	require.Equal(t, "10.0.0.1", record.Address)

	response, err = http.Get(server.URL + "/workloads/no-such-uid")
	require.NoError(t, err)
	defer response.Body.Close()
	require.Equal(t, http.StatusNotFound, response.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	response, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer response.Body.Close()
	require.Equal(t, http.StatusOK, response.StatusCode)
}
