package release

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/G9000/tauri-update-server/internal/config"
	"github.com/G9000/tauri-update-server/internal/metrics"
	"github.com/G9000/tauri-update-server/pkg/update"
	"github.com/google/go-github/v59/github"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/stats"
	"golang.org/x/sync/errgroup"
)

// ErrUpstreamUnavailable matches every error caused by the latest release
// metadata being unavailable.
var ErrUpstreamUnavailable = errors.New("latest release unavailable")

type UpstreamError struct {
	Repository string
	Err        error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("could not get latest release of %s: %v", e.Repository, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

const notesBoilerplate = "See the assets to download this version and install."

// Resolver builds the update descriptor from the latest GitHub release of a single repository.
// It holds no state between calls.
type Resolver struct {
	log                  logrus.FieldLogger
	ghClient             *github.Client
	owner                string
	repo                 string
	mapping              config.PlatformMapping
	upstreamTimeout      time.Duration
	signatureConcurrency int
	signatures           *signatureFetcher
}

func NewResolver(log logrus.FieldLogger, ghClient *github.Client, cfg *config.ServerConfig, mapping config.PlatformMapping) *Resolver {
	owner, repo := cfg.GetOwnerRepo()
	concurrency := cfg.SignatureFetchConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Resolver{
		log:                  log,
		ghClient:             ghClient,
		owner:                owner,
		repo:                 repo,
		mapping:              mapping,
		upstreamTimeout:      cfg.UpstreamTimeout,
		signatureConcurrency: concurrency,
		signatures:           newSignatureFetcher(cfg.SignatureFetchRetries, cfg.SignatureTimeout),
	}
}

func (r *Resolver) Repository() string {
	return r.owner + "/" + r.repo
}

func (r *Resolver) getLatestGitHubRelease(ctx context.Context) (*github.RepositoryRelease, error) {
	if r.upstreamTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.upstreamTimeout)
		defer cancel()
	}
	release, _, err := r.ghClient.Repositories.GetLatestRelease(ctx, r.owner, r.repo)
	if err != nil {
		return nil, &UpstreamError{Repository: r.Repository(), Err: err}
	}
	return release, nil
}

// ResolveLatest fetches the latest release and maps its assets to platform keys.
// Only a failure of the release metadata fetch is returned as an error; signature
// downloads that fail are logged and leave the affected platforms without a signature.
func (r *Resolver) ResolveLatest(ctx context.Context) (*update.Release, error) {
	ghRelease, err := r.getLatestGitHubRelease(ctx)
	if err != nil {
		return nil, err
	}

	matches := matchAssets(r.mapping, ghRelease.Assets)
	signatures := r.fetchSignatures(ctx, matches)
	platforms := buildPlatforms(r.mapping, matches, signatures)
	for p, a := range platforms {
		if a.URL == "" {
			r.log.WithField("platform", p).Warnf("release %s has a signature but no artifact", ghRelease.GetTagName())
		}
	}

	return &update.Release{
		Version:   ghRelease.GetTagName(),
		Notes:     cleanNotes(ghRelease.GetBody()),
		PubDate:   formatTimestamp(ghRelease.PublishedAt),
		Platforms: platforms,
	}, nil
}

func cleanNotes(body string) string {
	return strings.TrimSpace(strings.Replace(body, notesBoilerplate, "", 1))
}

func formatTimestamp(ts *github.Timestamp) string {
	if ts == nil || ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}

// assetMatch holds the assets found for one platform group.
// When several assets match, the last one in release order wins.
type assetMatch struct {
	url           string
	signatureName string
	signatureURL  string
}

func matchAssets(mapping config.PlatformMapping, assets []*github.ReleaseAsset) []assetMatch {
	ret := make([]assetMatch, len(mapping))
	for _, asset := range assets {
		name, url := asset.GetName(), asset.GetBrowserDownloadURL()
		if name == "" || url == "" {
			continue
		}
		for i, g := range mapping {
			switch {
			case strings.HasSuffix(name, g.Suffix):
				ret[i].url = url
			case strings.HasSuffix(name, g.SignatureSuffix()):
				ret[i].signatureName = name
				ret[i].signatureURL = url
			}
		}
	}
	return ret
}

func (r *Resolver) fetchSignatures(ctx context.Context, matches []assetMatch) []*string {
	signatures := make([]*string, len(matches))
	var g errgroup.Group
	g.SetLimit(r.signatureConcurrency)
	for i, m := range matches {
		if m.signatureURL == "" {
			continue
		}
		i, m := i, m
		g.Go(func() error {
			sig, err := r.signatures.fetch(ctx, m.signatureURL)
			if err != nil {
				stats.Record(ctx, metrics.CounterSignatureFailures.M(1))
				r.log.WithField("asset", m.signatureName).Warnf("could not fetch signature: %v", err)
				return nil
			}
			signatures[i] = &sig
			return nil
		})
	}
	_ = g.Wait()
	return signatures
}

// buildPlatforms folds the per-group matches into a fresh platform map.
// Groups sharing a platform key merge field by field, later groups winning.
func buildPlatforms(mapping config.PlatformMapping, matches []assetMatch, signatures []*string) map[string]update.PlatformArtifact {
	platforms := make(map[string]update.PlatformArtifact)
	for i, g := range mapping {
		url, sig := matches[i].url, signatures[i]
		if url == "" && sig == nil {
			continue
		}
		for _, p := range g.Platforms {
			artifact := platforms[p]
			if url != "" {
				artifact.URL = url
			}
			if sig != nil {
				artifact.Signature = *sig
			}
			platforms[p] = artifact
		}
	}
	return platforms
}
