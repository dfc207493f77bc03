package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/G9000/tauri-update-server/pkg/update"
	"gopkg.in/yaml.v3"
)

// PlatformGroup maps every release asset whose name ends with Suffix to all of Platforms.
type PlatformGroup struct {
	Platforms []string `yaml:"platforms"`
	Suffix    string   `yaml:"suffix"`
}

// SignatureSuffix is the name suffix of the companion signature asset.
func (g PlatformGroup) SignatureSuffix() string {
	return g.Suffix + ".sig"
}

type PlatformMapping []PlatformGroup

var DefaultPlatformMapping = PlatformMapping{
	{
		Platforms: []string{update.PlatformLinuxX86_64},
		Suffix:    "amd64.AppImage.tar.gz",
	},
	{
		// intel and apple silicon share the universal bundle
		Platforms: []string{update.PlatformDarwinX86_64, update.PlatformDarwinAarch64},
		Suffix:    "app.tar.gz",
	},
	{
		Platforms: []string{update.PlatformWindowsX86_64},
		Suffix:    "x64_en-US.msi.zip",
	},
}

func (m PlatformMapping) Validate() error {
	if len(m) == 0 {
		return fmt.Errorf("platform mapping is empty")
	}
	for i, g := range m {
		if strings.TrimSpace(g.Suffix) == "" {
			return fmt.Errorf("platform group %d has an empty suffix", i)
		}
		if len(g.Platforms) == 0 {
			return fmt.Errorf("platform group %q has no platforms", g.Suffix)
		}
		for _, p := range g.Platforms {
			if !update.IsKnownPlatform(p) {
				return fmt.Errorf("platform group %q: unknown platform %q", g.Suffix, p)
			}
		}
	}
	return nil
}

// LoadPlatformMapping returns the built-in mapping when path is empty,
// otherwise the mapping read from the YAML file at path.
func LoadPlatformMapping(path string) (PlatformMapping, error) {
	if path == "" {
		return DefaultPlatformMapping, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read platform mapping: %w", err)
	}
	var m PlatformMapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("could not parse platform mapping %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
