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

package workload

import (
	"fmt"

	utilnet "k8s.io/utils/net"
)

// Snapshot is an immutable, validated view of a full workload set.
// Lookups are read-only and safe for unbounded concurrent use.
type Snapshot struct {
	byUID     map[string]*Workload
	byAddress map[string]*Workload
	byVIP     map[string]*Workload
}

// NewSnapshot builds a snapshot from a batch of records.
// Malformed records are dropped and reported as InvalidRecordError;
// the rest of the batch proceeds.
func NewSnapshot(records []Workload) (*Snapshot, []error) {
	snapshot := &Snapshot{
		byUID:     make(map[string]*Workload),
		byAddress: make(map[string]*Workload),
		byVIP:     make(map[string]*Workload),
	}

	var errs []error
	for i := range records {
		record := records[i]
		if err := validateRecord(&record); err != nil {
			errs = append(errs, err)
			continue
		}

		if _, ok := snapshot.byUID[record.UID]; ok {
			errs = append(errs, &InvalidRecordError{
				UID:    record.UID,
				Reason: "duplicate workload UID",
			})
			continue
		}

		snapshot.byUID[record.UID] = &record
		if record.Address != "" {
			if _, ok := snapshot.byAddress[record.Address]; ok {
				errs = append(errs, &InvalidRecordError{
					UID:    record.UID,
					Reason: fmt.Sprintf("address %s already assigned to another workload", record.Address),
				})
				delete(snapshot.byUID, record.UID)
				continue
			}
			snapshot.byAddress[record.Address] = &record
		}

		for vip := range record.VirtualIPs {
			// first registration of a virtual IP wins
			if _, ok := snapshot.byVIP[vip]; !ok {
				snapshot.byVIP[vip] = &record
			}
		}
	}

	return snapshot, errs
}

func validateRecord(w *Workload) error {
	if w.UID == "" {
		return &InvalidRecordError{UID: w.UID, Reason: "empty UID"}
	}

	if w.Address != "" && utilnet.ParseIPSloppy(w.Address) == nil {
		return &InvalidRecordError{
			UID:    w.UID,
			Reason: fmt.Sprintf("address '%s' is not an IP literal", w.Address),
		}
	}

	for vip := range w.VirtualIPs {
		if vip == "" {
			return &InvalidRecordError{UID: w.UID, Reason: "empty virtual IP key"}
		}
	}

	if err := w.Rbac.Validate(); err != nil {
		return &InvalidRecordError{UID: w.UID, Reason: err.Error()}
	}

	return nil
}

// Get returns the workload with the given UID.
func (s *Snapshot) Get(uid string) (*Workload, error) {
	if w, ok := s.byUID[uid]; ok {
		return w, nil
	}
	return nil, &NotFoundError{Identifier: uid}
}

// GetByAddress returns the workload owning the given IP address.
func (s *Snapshot) GetByAddress(address string) (*Workload, error) {
	if w, ok := s.byAddress[address]; ok {
		return w, nil
	}
	return nil, &NotFoundError{Identifier: address}
}

// GetByVIP returns the workload behind the given virtual IP.
func (s *Snapshot) GetByVIP(vip string) (*Workload, error) {
	if w, ok := s.byVIP[vip]; ok {
		return w, nil
	}
	return nil, &NotFoundError{Identifier: vip}
}

// Len returns the number of workloads in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.byUID)
}

// Workloads returns a copy of all workload records in the snapshot.
func (s *Snapshot) Workloads() []Workload {
	workloads := make([]Workload, 0, len(s.byUID))
	for _, w := range s.byUID {
		workloads = append(workloads, *w)
	}
	return workloads
}

// TranslateVIP returns the target port that the given service port on the
// given virtual IP maps to. Lookup is exact-match on the virtual IP,
// first-match on the service port.
func TranslateVIP(w *Workload, virtualIP string, servicePort uint32) (uint32, error) {
	ports, ok := w.VirtualIPs[virtualIP]
	if !ok {
		return 0, &NoPortMappingError{VirtualIP: virtualIP, ServicePort: servicePort}
	}

	for _, port := range ports {
		if port.ServicePort == servicePort {
			return port.TargetPort, nil
		}
	}
	return 0, &NoPortMappingError{VirtualIP: virtualIP, ServicePort: servicePort}
}
