package update

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlatforms(t *testing.T) {
	require.Equal(t, []string{"linux-x86_64", "darwin-x86_64", "darwin-aarch64", "windows-x86_64"}, Platforms())

	p := Platforms()
	p[0] = "changed"
	require.Equal(t, PlatformLinuxX86_64, Platforms()[0])

	require.True(t, IsKnownPlatform("darwin-aarch64"))
	require.False(t, IsKnownPlatform("linux-aarch64"))
	require.False(t, IsKnownPlatform(""))
}

func TestReleaseArtifact(t *testing.T) {
	var nilRelease *Release
	_, ok := nilRelease.Artifact(PlatformLinuxX86_64)
	require.False(t, ok)

	r := &Release{Platforms: map[string]PlatformArtifact{PlatformLinuxX86_64: {URL: "https://download.example/linux"}}}
	a, ok := r.Artifact(PlatformLinuxX86_64)
	require.True(t, ok)
	require.Equal(t, "https://download.example/linux", a.URL)
	_, ok = r.Artifact(PlatformWindowsX86_64)
	require.False(t, ok)
}
