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
	"sync"

	"github.com/sirupsen/logrus"
)

// Store holds the currently published workload snapshot.
//
// Snapshots are replaced by reference: an in-flight reader always observes
// either the fully-old or the fully-new snapshot, never a partial mix.
// The previous snapshot is discarded only after the new one is fully built
// and validated.
type Store struct {
	lock     sync.RWMutex
	snapshot *Snapshot

	logger *logrus.Entry
}

// Get returns the currently published snapshot.
func (s *Store) Get() *Snapshot {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.snapshot
}

// Replace validates a batch of records and publishes them as the new
// snapshot. Malformed records are dropped and reported; the rest of the
// batch is published.
func (s *Store) Replace(records []Workload) []error {
	snapshot, errs := NewSnapshot(records)
	for _, err := range errs {
		s.logger.Warnf("Dropping workload record: %v.", err)
	}

	s.lock.Lock()
	s.snapshot = snapshot
	s.lock.Unlock()

	s.logger.Infof("Published workload snapshot with %d workloads (%d records dropped).",
		snapshot.Len(), len(errs))
	return errs
}

// NewStore returns a store holding an empty workload snapshot.
func NewStore() *Store {
	snapshot, _ := NewSnapshot(nil)
	return &Store{
		snapshot: snapshot,
		logger:   logrus.WithField("component", "workload.store"),
	}
}
