// Package topofile loads the YAML topology document and watches it for
// on-disk changes.
package topofile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"unoc/core-go/internal/topology"
)

// Load reads and validates a topology document. The version gate and
// the referential checks reject the whole file; there is no partial
// load.
func Load(path string) (topology.Topology, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return topology.Topology{}, fmt.Errorf("read topology file: %w", err)
	}
	return Parse(raw)
}

// Parse validates a topology document from its YAML bytes.
func Parse(raw []byte) (topology.Topology, error) {
	var t topology.Topology
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return topology.Topology{}, fmt.Errorf("parse topology file: %w", err)
	}
	if t.Version != topology.SupportedVersion {
		return topology.Topology{}, fmt.Errorf("unsupported topology version %q, requires %q", t.Version, topology.SupportedVersion)
	}

	// Run the same validation the store applies, so a bad file fails at
	// load time instead of at install time.
	probe := topology.NewStore()
	if _, _, err := probe.ReplaceAll(t.Devices, t.Links, t.Rings); err != nil {
		return topology.Topology{}, fmt.Errorf("invalid topology file: %w", err)
	}
	return t, nil
}
