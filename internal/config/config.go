// Package config implements the immutable, typed view of the TransFS
// configuration document that every other component consumes.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ZipMode governs how a SoftwareArchives entry presents ZIP archives in a
// virtual-folder listing.
type ZipMode string

const (
	// ZipModeHierarchical presents archives as traversable directories.
	// This is the default per the fixed Open Question decision.
	ZipModeHierarchical ZipMode = "hierarchical"

	// ZipModeFile presents archives as opaque files.
	ZipModeFile ZipMode = "file"

	// ZipModeFlatten merges archive contents into the virtual-folder root
	// (legacy behavior).
	ZipModeFlatten ZipMode = "flatten"
)

// WebAPI is consumed only by the external control service; the core never
// reads it, but it is part of the recognized configuration document.
type WebAPI struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Config is the immutable, process-lifetime configuration.
type Config struct {
	Mountpoint string   `yaml:"mountpoint"`
	Filestore  string   `yaml:"filestore"`
	Clients    []Client `yaml:"clients"`

	// SSLIgnoreHosts, WebAPI and ArchiveSources are consumed only by the
	// external control/HTTP service; the core ignores them entirely.
	SSLIgnoreHosts []string       `yaml:"ssl_ignore_hosts"`
	WebAPI         WebAPI         `yaml:"web_api"`
	ArchiveSources map[string]any `yaml:"archive_sources"`
}

// Client is one consumer of the filesystem, owning its own top-level
// virtual directory, systems, and maps.
type Client struct {
	Name string `yaml:"name"`

	// DefaultTargetPath is a template with "{system_name}" and "{maps}"
	// placeholders; the core does not expand it (it is informational for
	// the control service), but it is parsed to keep Config round-trippable.
	DefaultTargetPath string   `yaml:"default_target_path"`
	Systems           []System `yaml:"systems"`
}

// System is one machine/platform under a Client.
type System struct {
	Name         string `yaml:"name"`
	Manufacturer string `yaml:"manufacturer"`

	// CanonicalName is spelled "cananonical_system_name" on disk for
	// compatibility with the original configuration documents (§6.1).
	CanonicalName string `yaml:"cananonical_system_name"`

	LocalBasePath string     `yaml:"local_base_path"`
	Maps          []MapEntry `yaml:"maps"`
}

// Load reads and decodes a Config from a single YAML document at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return &cfg, nil
}

// FindClient returns the Client named name, or nil if none matches.
func (c *Config) FindClient(name string) *Client {
	for i := range c.Clients {
		if c.Clients[i].Name == name {
			return &c.Clients[i]
		}
	}

	return nil
}

// FindSystem returns the System named name under the Client, or nil.
func (c *Client) FindSystem(name string) *System {
	for i := range c.Systems {
		if c.Systems[i].Name == name {
			return &c.Systems[i]
		}
	}

	return nil
}

// SoftwareArchivesKey is the literal map key identifying a SoftwareArchives
// entry, matched verbatim against the teacher document's convention.
const SoftwareArchivesKey = "...SoftwareArchives..."

// FindSoftwareArchives returns the system's SoftwareArchives map entry, if any.
func (s *System) FindSoftwareArchives() (*MapEntry, *SoftwareArchives) {
	for i := range s.Maps {
		if sa, ok := s.Maps[i].Value.(*SoftwareArchives); ok {
			return &s.Maps[i], sa
		}
	}

	return nil, nil
}
