package update

// Platform keys understood by the updating client.
const (
	PlatformLinuxX86_64   = "linux-x86_64"
	PlatformDarwinX86_64  = "darwin-x86_64"
	PlatformDarwinAarch64 = "darwin-aarch64"
	PlatformWindowsX86_64 = "windows-x86_64"
)

var platforms = []string{
	PlatformLinuxX86_64,
	PlatformDarwinX86_64,
	PlatformDarwinAarch64,
	PlatformWindowsX86_64,
}

// Platforms returns the closed set of platform keys.
func Platforms() []string {
	ret := make([]string, len(platforms))
	copy(ret, platforms)
	return ret
}

func IsKnownPlatform(p string) bool {
	for _, k := range platforms {
		if k == p {
			return true
		}
	}
	return false
}

// Release is the update descriptor returned to a client that is not up to date.
type Release struct {
	Version   string                      `json:"version"`
	Notes     string                      `json:"notes"`
	PubDate   string                      `json:"pub_date"`
	Platforms map[string]PlatformArtifact `json:"platforms"`
}

type PlatformArtifact struct {
	URL       string `json:"url"`
	Signature string `json:"signature,omitempty"`
}

// Artifact returns the artifact for platform p, if the release carries one.
func (r *Release) Artifact(p string) (PlatformArtifact, bool) {
	if r == nil {
		return PlatformArtifact{}, false
	}
	a, ok := r.Platforms[p]
	return a, ok
}
