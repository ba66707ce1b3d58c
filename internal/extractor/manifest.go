package extractor

import (
	"bytes"
	"fmt"

	"github.com/ralt/pkgfeed/internal/models"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the manifest entry of a feed package
const ManifestFile = "package.yaml"

// Default sub-resource entries of a feed package
const (
	DefaultReadme = "README.md"
	DefaultIcon   = "icon.png"
)

// Manifest is the package.yaml document of a feed package
type Manifest struct {
	ID           string   `yaml:"id"`
	Version      string   `yaml:"version"`
	Title        string   `yaml:"title,omitempty"`
	Description  string   `yaml:"description,omitempty"`
	Authors      []string `yaml:"authors,omitempty"`
	Homepage     string   `yaml:"homepage,omitempty"`
	License      string   `yaml:"license,omitempty"`
	Tags         []string `yaml:"tags,omitempty"`
	Dependencies []string `yaml:"dependencies,omitempty"`
	Readme       string   `yaml:"readme,omitempty"`
	Icon         string   `yaml:"icon,omitempty"`

	Metadata map[string]string `yaml:"metadata,omitempty"`
}

// ParseManifest decodes a package.yaml document
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ManifestFile, err)
	}
	return &m, nil
}

// descriptor converts the manifest into a package descriptor
func (m *Manifest) descriptor() (*models.PackageDescriptor, error) {
	version, err := parseVersion(m.Version)
	if err != nil {
		return nil, err
	}

	metadata := make(map[string]string, len(m.Metadata))
	for k, v := range m.Metadata {
		metadata[k] = v
	}

	return &models.PackageDescriptor{
		ID:           m.ID,
		Version:      version,
		Title:        m.Title,
		Description:  m.Description,
		Authors:      m.Authors,
		Homepage:     m.Homepage,
		License:      m.License,
		Tags:         m.Tags,
		Dependencies: m.Dependencies,
		Metadata:     metadata,
	}, nil
}

// manifestFromDescriptor renders a descriptor as package.yaml, used for
// formats that carry no YAML manifest of their own
func manifestFromDescriptor(pkg *models.PackageDescriptor) ([]byte, error) {
	m := Manifest{
		ID:           pkg.ID,
		Version:      pkg.NormalizedVersion(),
		Title:        pkg.Title,
		Description:  pkg.Description,
		Authors:      pkg.Authors,
		Homepage:     pkg.Homepage,
		License:      pkg.License,
		Tags:         pkg.Tags,
		Dependencies: pkg.Dependencies,
		Metadata:     pkg.Metadata,
	}
	return yaml.Marshal(&m)
}
