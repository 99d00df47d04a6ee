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
	"encoding/json"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher watches a workloads file and re-publishes the workload snapshot
// whenever the file changes. The file holds a JSON array of workload records.
type Watcher struct {
	path  string
	store *Store

	stopCh chan struct{}

	logger *logrus.Entry
}

// Name of the watcher.
func (w *Watcher) Name() string {
	return "workloads-watcher"
}

// Load reads the workloads file and publishes its records to the store.
func (w *Watcher) Load() error {
	raw, err := os.ReadFile(w.path)
	if err != nil {
		return fmt.Errorf("unable to read workloads file '%s': %w", w.path, err)
	}

	var records []Workload
	if err := json.Unmarshal(raw, &records); err != nil {
		return fmt.Errorf("unable to decode workloads file '%s': %w", w.path, err)
	}

	w.store.Replace(records)
	return nil
}

// Start the watcher.
func (w *Watcher) Start() error {
	if err := w.Load(); err != nil {
		// a missing or malformed initial file is not fatal;
		// the previous (possibly empty) snapshot stays published
		w.logger.Warnf("Initial load failed: %v.", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("cannot initialize file watcher: %w", err)
	}

	defer func() {
		if err := watcher.Close(); err != nil {
			w.logger.Warnf("Cannot close watcher: %v.", err)
		}
	}()

	dir := path.Dir(w.path)
	w.logger.Infof("Watching: %s.", dir)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("cannot watch directory '%s': %w", dir, err)
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	modified := false
	for {
		select {
		case <-w.stopCh:
			return nil
		case event := <-watcher.Events:
			w.logger.Debugf("Event: %v.", event)
			modified = true
		case err := <-watcher.Errors:
			w.logger.Errorf("Error: %v.", err)
			return err
		case <-ticker.C:
			if !modified {
				continue
			}

			w.logger.Infof("Workloads file modified.")
			modified = false

			if err := w.Load(); err != nil {
				w.logger.Errorf("Error reloading workloads: %v.", err)
			}
		}
	}
}

// Stop the watcher.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	return nil
}

// GracefulStop does a graceful stop of the watcher.
func (w *Watcher) GracefulStop() error {
	return w.Stop()
}

// NewWatcher returns a new workloads file watcher publishing to the given store.
func NewWatcher(filePath string, store *Store) *Watcher {
	return &Watcher{
		path:   filePath,
		store:  store,
		stopCh: make(chan struct{}),
		logger: logrus.WithField("component", "workload.watcher"),
	}
}
