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

// Package admin exposes the local management surface of the proxy:
// workload record replacement and Prometheus metrics.
package admin

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	utilhttp "github.com/nodemesh-net/nodemesh/pkg/util/http"
	"github.com/nodemesh-net/nodemesh/pkg/workload"
)

// Server serves the proxy management API over plain HTTP on localhost.
type Server struct {
	utilhttp.Server

	store *workload.Store

	logger *logrus.Entry
}

// replaceResponse reports the outcome of a workload replacement.
type replaceResponse struct {
	Published int      `json:"published"`
	Dropped   []string `json:"dropped,omitempty"`
}

func (s *Server) getWorkloads(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.store.Get().Workloads())
}

func (s *Server) getWorkload(w http.ResponseWriter, r *http.Request) {
	record, err := s.store.Get().Get(chi.URLParam(r, "uid"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.writeJSON(w, record)
}

func (s *Server) putWorkloads(w http.ResponseWriter, r *http.Request) {
	var records []workload.Workload
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	errs := s.store.Replace(records)

	response := replaceResponse{Published: s.store.Get().Len()}
	for _, err := range errs {
		response.Dropped = append(response.Dropped, err.Error())
	}
	s.writeJSON(w, &response)
}

func (s *Server) writeJSON(w http.ResponseWriter, obj interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(obj); err != nil {
		s.logger.Errorf("Cannot encode response: %v.", err)
	}
}

// NewServer returns a new management server for the given workload store.
func NewServer(store *workload.Store) *Server {
	s := &Server{
		Server: utilhttp.NewServer("admin-server", nil),
		store:  store,
		logger: logrus.WithField("component", "admin-server"),
	}

	router := s.Router()
	router.Get("/workloads", s.getWorkloads)
	router.Put("/workloads", s.putWorkloads)
	router.Get("/workloads/{uid}", s.getWorkload)
	router.Handle("/metrics", promhttp.Handler())

	return s
}
