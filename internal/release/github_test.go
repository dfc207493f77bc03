package release

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/G9000/tauri-update-server/internal/config"
	"github.com/G9000/tauri-update-server/pkg/update"
	"github.com/google/go-github/v59/github"
	"github.com/migueleliasweb/go-github-mock/src/mock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var testPublishedAt = &github.Timestamp{Time: time.Date(2020, 6, 22, 19, 25, 57, 0, time.UTC)}

func newTestResolver(ghClient *github.Client) *Resolver {
	log := logrus.New()
	log.Out = io.Discard
	return NewResolver(log, ghClient, &config.ServerConfig{
		Repository:                "owner/repo",
		UpstreamTimeout:           time.Second,
		SignatureTimeout:          time.Second,
		SignatureFetchConcurrency: 2,
	}, config.DefaultPlatformMapping)
}

func newLatestReleaseClient(releases ...*github.RepositoryRelease) *github.Client {
	responses := make([]interface{}, len(releases))
	for i, r := range releases {
		responses[i] = r
	}
	return github.NewClient(mock.NewMockedHTTPClient(
		mock.WithRequestMatch(mock.GetReposReleasesLatestByOwnerByRepo, responses...),
	))
}

// getAssetServer serves signature files keyed by path; unknown paths fail.
func getAssetServer(files map[string]string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content, ok := files[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, content)
	}))
}

func asset(name, url string) *github.ReleaseAsset {
	return &github.ReleaseAsset{Name: github.String(name), BrowserDownloadURL: github.String(url)}
}

func TestGetOwnerRepo(t *testing.T) {
	r := newTestResolver(github.NewClient(nil))
	require.Equal(t, "owner", r.owner)
	require.Equal(t, "repo", r.repo)
	require.Equal(t, "owner/repo", r.Repository())
}

func TestCleanNotes(t *testing.T) {
	require.Equal(t, "Bug fixes.", cleanNotes("Bug fixes.\n\nSee the assets to download this version and install.\n"))
	require.Equal(t, "", cleanNotes("See the assets to download this version and install."))
	require.Equal(t, "a See the assets to download this version and install.",
		cleanNotes("See the assets to download this version and install. a See the assets to download this version and install."))
	require.Equal(t, "plain", cleanNotes("  plain  "))
}

func TestResolveLinuxOnly(t *testing.T) {
	as := getAssetServer(map[string]string{"/app-amd64.AppImage.tar.gz.sig": "linux-signature"})
	defer as.Close()

	r := newTestResolver(newLatestReleaseClient(&github.RepositoryRelease{
		TagName:     github.String("v1.0.0"),
		Body:        github.String("Fixes.\nSee the assets to download this version and install."),
		PublishedAt: testPublishedAt,
		Assets: []*github.ReleaseAsset{
			asset("app-amd64.AppImage.tar.gz", "https://download.example/app-amd64.AppImage.tar.gz"),
			asset("app-amd64.AppImage.tar.gz.sig", as.URL+"/app-amd64.AppImage.tar.gz.sig"),
		},
	}))
	rel, err := r.ResolveLatest(context.Background())
	require.NoError(t, err)
	require.Equal(t, "v1.0.0", rel.Version)
	require.Equal(t, "Fixes.", rel.Notes)
	require.Equal(t, "2020-06-22T19:25:57Z", rel.PubDate)
	require.Len(t, rel.Platforms, 1)
	require.Equal(t, update.PlatformArtifact{
		URL:       "https://download.example/app-amd64.AppImage.tar.gz",
		Signature: "linux-signature",
	}, rel.Platforms[update.PlatformLinuxX86_64])
	_, ok := rel.Artifact(update.PlatformDarwinAarch64)
	require.False(t, ok)
	_, ok = rel.Artifact(update.PlatformWindowsX86_64)
	require.False(t, ok)
}

func TestResolveWithoutMatchingAssets(t *testing.T) {
	r := newTestResolver(newLatestReleaseClient(&github.RepositoryRelease{
		TagName:     github.String("v2.0.0"),
		Body:        github.String("Docs only"),
		PublishedAt: testPublishedAt,
		Assets:      []*github.ReleaseAsset{asset("README.md", "https://download.example/README.md")},
	}))
	rel, err := r.ResolveLatest(context.Background())
	require.NoError(t, err)
	require.Equal(t, "v2.0.0", rel.Version)
	require.Equal(t, "Docs only", rel.Notes)
	require.NotEmpty(t, rel.PubDate)
	require.NotNil(t, rel.Platforms)
	require.Empty(t, rel.Platforms)

	data, err := json.Marshal(rel)
	require.NoError(t, err)
	require.Contains(t, string(data), `"platforms":{}`)
}

func TestResolveAllPlatformsWithFailingSignature(t *testing.T) {
	as := getAssetServer(map[string]string{
		"/app-amd64.AppImage.tar.gz.sig": "linux-signature",
		"/app.app.tar.gz.sig":            "darwin-signature",
	})
	defer as.Close()

	r := newTestResolver(newLatestReleaseClient(&github.RepositoryRelease{
		TagName: github.String("v1.1.0"),
		Assets: []*github.ReleaseAsset{
			asset("app-amd64.AppImage.tar.gz", "https://download.example/linux"),
			asset("app-amd64.AppImage.tar.gz.sig", as.URL+"/app-amd64.AppImage.tar.gz.sig"),
			asset("app.app.tar.gz", "https://download.example/darwin"),
			asset("app.app.tar.gz.sig", as.URL+"/app.app.tar.gz.sig"),
			asset("app_x64_en-US.msi.zip", "https://download.example/windows"),
			// the signature server does not know this file
			asset("app_x64_en-US.msi.zip.sig", as.URL+"/missing.sig"),
		},
	}))
	rel, err := r.ResolveLatest(context.Background())
	require.NoError(t, err)
	require.Len(t, rel.Platforms, 4)
	require.Equal(t, "linux-signature", rel.Platforms[update.PlatformLinuxX86_64].Signature)
	require.Equal(t, rel.Platforms[update.PlatformDarwinX86_64], rel.Platforms[update.PlatformDarwinAarch64])
	require.Equal(t, update.PlatformArtifact{URL: "https://download.example/darwin", Signature: "darwin-signature"},
		rel.Platforms[update.PlatformDarwinAarch64])
	require.Equal(t, update.PlatformArtifact{URL: "https://download.example/windows"}, rel.Platforms[update.PlatformWindowsX86_64])
	require.Equal(t, "", rel.PubDate)
}

func TestResolveSignatureWithoutArtifact(t *testing.T) {
	as := getAssetServer(map[string]string{"/app_x64_en-US.msi.zip.sig": "windows-signature"})
	defer as.Close()

	r := newTestResolver(newLatestReleaseClient(&github.RepositoryRelease{
		TagName: github.String("v1.1.0"),
		Assets: []*github.ReleaseAsset{
			asset("app_x64_en-US.msi.zip.sig", as.URL+"/app_x64_en-US.msi.zip.sig"),
		},
	}))
	rel, err := r.ResolveLatest(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]update.PlatformArtifact{
		update.PlatformWindowsX86_64: {Signature: "windows-signature"},
	}, rel.Platforms)
}

func TestResolveLastMatchWins(t *testing.T) {
	r := newTestResolver(newLatestReleaseClient(&github.RepositoryRelease{
		TagName: github.String("v1.1.0"),
		Assets: []*github.ReleaseAsset{
			asset("first-amd64.AppImage.tar.gz", "https://download.example/first"),
			asset("second-amd64.AppImage.tar.gz", "https://download.example/second"),
			{Name: github.String("third-amd64.AppImage.tar.gz")},
		},
	}))
	rel, err := r.ResolveLatest(context.Background())
	require.NoError(t, err)
	require.Equal(t, "https://download.example/second", rel.Platforms[update.PlatformLinuxX86_64].URL)
}

func TestResolveIsIdempotent(t *testing.T) {
	as := getAssetServer(map[string]string{"/app.app.tar.gz.sig": "darwin-signature"})
	defer as.Close()

	ghRelease := &github.RepositoryRelease{
		TagName:     github.String("v1.2.0"),
		Body:        github.String("Notes"),
		PublishedAt: testPublishedAt,
		Assets: []*github.ReleaseAsset{
			asset("app-amd64.AppImage.tar.gz", "https://download.example/linux"),
			asset("app.app.tar.gz", "https://download.example/darwin"),
			asset("app.app.tar.gz.sig", as.URL+"/app.app.tar.gz.sig"),
		},
	}
	r := newTestResolver(newLatestReleaseClient(ghRelease, ghRelease))

	first, err := r.ResolveLatest(context.Background())
	require.NoError(t, err)
	second, err := r.ResolveLatest(context.Background())
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	require.Equal(t, firstJSON, secondJSON)
}

func TestResolveUpstreamUnavailable(t *testing.T) {
	testCases := map[string]http.HandlerFunc{
		"not found": func(w http.ResponseWriter, _ *http.Request) {
			mock.WriteError(w, http.StatusNotFound, "Not Found")
		},
		"server error": func(w http.ResponseWriter, _ *http.Request) {
			mock.WriteError(w, http.StatusInternalServerError, "boom")
		},
		"invalid json": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "<html>not json</html>")
		},
	}
	for name, handler := range testCases {
		t.Run(name, func(t *testing.T) {
			r := newTestResolver(github.NewClient(mock.NewMockedHTTPClient(
				mock.WithRequestMatchHandler(mock.GetReposReleasesLatestByOwnerByRepo, handler),
			)))
			rel, err := r.ResolveLatest(context.Background())
			require.Nil(t, rel)
			require.ErrorIs(t, err, ErrUpstreamUnavailable)
			var upstreamErr *UpstreamError
			require.True(t, errors.As(err, &upstreamErr))
			require.Equal(t, "owner/repo", upstreamErr.Repository)
		})
	}
}

func TestResolveUpstreamTimeout(t *testing.T) {
	r := newTestResolver(github.NewClient(mock.NewMockedHTTPClient(
		mock.WithRequestMatchHandler(mock.GetReposReleasesLatestByOwnerByRepo, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})),
	)))
	r.upstreamTimeout = 50 * time.Millisecond
	_, err := r.ResolveLatest(context.Background())
	require.ErrorIs(t, err, ErrUpstreamUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
