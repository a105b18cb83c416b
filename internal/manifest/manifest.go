// Package manifest maps source files to object packages via path glob
// rules.
package manifest

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
	"lukechampine.com/blake3"
)

// Filename is the manifest a source tree may carry at its root.
const Filename = "sodg.yaml"

// Rule assigns sources matching any of its path patterns to one
// package.
type Rule struct {
	Package string   `yaml:"package"`
	Paths   []string `yaml:"paths"`
}

// Manifest describes how a source tree folds into packages. Sources
// not covered by any rule fall back to their directory path, with
// separators turned into dots.
type Manifest struct {
	Rules []Rule `yaml:"packages"`

	// Digest identifies the manifest content; it participates in
	// staleness checks, so a rule change retriggers compilation.
	Digest string `yaml:"-"`
}

// Load reads a manifest file.
func Load(file string) (*Manifest, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", file, err)
	}
	sum := blake3.Sum256(data)
	m.Digest = hex.EncodeToString(sum[:])
	return &m, nil
}

// LoadDir reads the manifest of a source tree. A tree without one
// gets an empty manifest, so every source falls back to its
// directory-derived package.
func LoadDir(dir string) (*Manifest, error) {
	m, err := Load(filepath.Join(dir, Filename))
	if errors.Is(err, os.ErrNotExist) {
		return &Manifest{}, nil
	}
	return m, err
}

// Package returns the package of a source file, given slash-separated
// path relative to the tree root. The first matching rule wins.
func (m *Manifest) Package(rel string) string {
	rel = filepath.ToSlash(rel)
	for _, rule := range m.Rules {
		for _, pattern := range rule.Paths {
			match, err := doublestar.Match(pattern, rel)
			if err != nil {
				continue
			}
			if match {
				return rule.Package
			}
		}
	}
	dir := path.Dir(rel)
	if dir == "." {
		return ""
	}
	return strings.ReplaceAll(dir, "/", ".")
}
