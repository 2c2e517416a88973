// Package settings handles the flat key-value settings files kept per case
// and per application, plus the global preferences resolved through viper.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sleuthgo/galleryd/internal/datamodel"
)

// ENABLED is the per-case setting key that overrides the global
// enabled-by-default preference for a module namespace.
const ENABLED = "ENABLED"

// PropertyStore reads and writes <namespace>.properties files under a single
// directory. Files hold one key=value pair per line. Missing files and
// missing keys both read as blank.
type PropertyStore struct {
	dir string
}

// NewPropertyStore creates a store rooted at dir. The directory is created
// on first write, not here.
func NewPropertyStore(dir string) *PropertyStore {
	return &PropertyStore{dir: dir}
}

// NewCaseProperties creates a store over a case's config directory.
func NewCaseProperties(c *datamodel.Case) *PropertyStore {
	return &PropertyStore{dir: c.ConfigDirectory()}
}

func (ps *PropertyStore) path(namespace string) string {
	return filepath.Join(ps.dir, namespace+".properties")
}

// GetConfigSetting returns the value stored for key in the namespace file,
// or "" if the file or key does not exist.
func (ps *PropertyStore) GetConfigSetting(namespace, key string) string {
	props, err := ps.load(namespace)
	if err != nil {
		return ""
	}
	return props[key]
}

// SetConfigSetting stores key=value in the namespace file, creating the file
// and its directory as needed.
func (ps *PropertyStore) SetConfigSetting(namespace, key, value string) error {
	props, err := ps.load(namespace)
	if err != nil {
		return err
	}
	if props == nil {
		props = make(map[string]string)
	}
	props[key] = value
	return ps.save(namespace, props)
}

func (ps *PropertyStore) load(namespace string) (map[string]string, error) {
	data, err := os.ReadFile(ps.path(namespace))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read settings file %s: %w", ps.path(namespace), err)
	}

	props := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx < 0 {
			continue
		}
		props[line[:idx]] = line[idx+1:]
	}
	return props, nil
}

func (ps *PropertyStore) save(namespace string, props map[string]string) error {
	if err := os.MkdirAll(ps.dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory %s: %w", ps.dir, err)
	}

	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, props[k])
	}

	if err := os.WriteFile(ps.path(namespace), []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write settings file %s: %w", ps.path(namespace), err)
	}
	return nil
}
