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

import "fmt"

// NotFoundError is returned when a workload lookup misses.
type NotFoundError struct {
	// Identifier is the UID, address or virtual IP that was looked up.
	Identifier string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("workload '%s' not found", e.Identifier)
}

// InvalidRecordError reports a malformed workload record.
// Invalid records are dropped at ingestion; the rest of the batch proceeds.
type InvalidRecordError struct {
	// UID of the offending record.
	UID string
	// Reason the record was rejected.
	Reason string
}

func (e *InvalidRecordError) Error() string {
	return fmt.Sprintf("invalid workload record '%s': %s", e.UID, e.Reason)
}

// NoPortMappingError is returned when a virtual IP and service port pair
// maps to no target port.
type NoPortMappingError struct {
	VirtualIP   string
	ServicePort uint32
}

func (e *NoPortMappingError) Error() string {
	return fmt.Sprintf("no port mapping for virtual IP %s port %d", e.VirtualIP, e.ServicePort)
}
