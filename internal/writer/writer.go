// Package writer materializes the canonical rule set into the combined
// rules file the conductor reads.
//
// Writes are atomic: the serialized form goes to a temp file in the target
// directory, is forced to durable storage, and is renamed over the target.
// A concurrent reader therefore sees either the previous complete snapshot
// or the new one, never a partial file.
package writer

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"sigs.k8s.io/yaml"

	"rulesync/internal/converter"
	"rulesync/pkg/logging"
)

const tmpPattern = ".inspection_rules_*.yaml.tmp"

// Writer publishes snapshots of the canonical rule set to a single path.
type Writer struct {
	path string

	mu     sync.Mutex
	last   []byte
	primed bool

	// marshal is replaceable in tests to force serialization failures.
	marshal func(interface{}) ([]byte, error)
}

// New creates a writer for the given target path.
func New(path string) *Writer {
	return &Writer{
		path:    path,
		marshal: yaml.Marshal,
	}
}

// Path returns the target path.
func (w *Writer) Path() string {
	return w.path
}

// Write serializes rules, sorted by descending priority with ties broken by
// ascending uuid, and atomically publishes the result. It reports whether a
// file write actually happened: serializations identical to the last
// published snapshot are skipped.
//
// On any failure the previously published file is left untouched.
func (w *Writer) Write(rules []converter.CanonicalRule) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ordered := make([]converter.CanonicalRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		return ordered[i].UUID < ordered[j].UUID
	})

	data, err := w.marshal(ordered)
	if err != nil {
		return false, fmt.Errorf("failed to serialize rules: %w", err)
	}

	// On the first write compare against whatever is already on disk, so a
	// restart over an up-to-date file does not rewrite it.
	if !w.primed {
		if existing, err := os.ReadFile(w.path); err == nil {
			w.last = existing
		}
		w.primed = true
	}

	if bytes.Equal(data, w.last) {
		logging.Debug("ArtifactWriter", "Rules unchanged, skipping write to %s", w.path)
		return false, nil
	}

	if err := w.publish(data); err != nil {
		return false, err
	}

	w.last = data
	logging.Info("ArtifactWriter", "Wrote %d rules to %s", len(ordered), w.path)
	return true, nil
}

// publish writes data to a temp file in the target directory, syncs it, and
// renames it over the target path.
func (w *Writer) publish(data []byte) error {
	dir := filepath.Dir(w.path)

	tmp, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write temp file %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync temp file %s: %w", tmpPath, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		cleanup()
		return fmt.Errorf("failed to chmod temp file %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, w.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename %s to %s: %w", tmpPath, w.path, err)
	}

	// Force the rename itself to durable storage. Not all filesystems
	// support syncing a directory; failure here is not fatal.
	if d, err := os.Open(dir); err == nil {
		d.Sync()
		d.Close()
	}

	return nil
}
