// SPDX-License-Identifier: MIT
package state

import (
	"fmt"
	"os"
	"path/filepath"
)

// Save writes s to path, replacing the file atomically.
func Save(path string, s PluginState) error {
	data, err := s.Serialize()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("saving state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}

	logger.Debugf("saved state to %s", path)
	return nil
}

// Load reads the state at path. On any error it returns the defaults
// alongside the error, so callers can always continue.
func Load(path string) (PluginState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Default(), fmt.Errorf("loading state: %w", err)
	}
	st, err := Deserialize(data)
	if err != nil {
		return Default(), fmt.Errorf("loading %s: %w", path, err)
	}
	return st, nil
}
