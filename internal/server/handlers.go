package server

import (
	"context"
	"net/http"

	"github.com/G9000/tauri-update-server/internal/metrics"
	"github.com/G9000/tauri-update-server/internal/release"
	"github.com/G9000/tauri-update-server/pkg/update"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
)

// getRequestParam reads a path parameter, falling back to the query string.
// The second return value is false if the query carries the parameter more than once.
func getRequestParam(r *http.Request, name string) (string, bool) {
	if v := chi.URLParam(r, name); v != "" {
		return v, true
	}
	values := r.URL.Query()[name]
	switch len(values) {
	case 0:
		return "", true
	case 1:
		return values[0], true
	default:
		return "", false
	}
}

func platformTag(platform string) string {
	if update.IsKnownPlatform(platform) {
		return platform
	}
	return "unknown"
}

func (s *Server) getLatestRelease(ctx context.Context) (*update.Release, error) {
	if s.config.DisableRequestCache {
		return s.resolver.ResolveLatest(ctx)
	}
	return s.cache.getOrResolve(ctx, cacheKeyLatestRelease, s.resolver.ResolveLatest)
}

func (s *Server) recordUpdateCheck(ctx context.Context, platform, outcome string) {
	ctx, _ = tag.New(ctx,
		tag.Upsert(metrics.TagPlatform, platformTag(platform)),
		tag.Upsert(metrics.TagOutcome, outcome),
	)
	stats.Record(ctx, metrics.CounterUpdateChecks.M(1))
}

// checkForUpdate answers 204 whenever there is nothing to report and the full
// release otherwise. The platform is only logged, all platforms are returned.
func (s *Server) checkForUpdate(w http.ResponseWriter, r *http.Request) {
	platform, _ := getRequestParam(r, "platform")
	currentVersion, single := getRequestParam(r, "current_version")
	reqLogger := s.requestLogger(r).WithFields(logrus.Fields{
		"platform":       platform,
		"currentVersion": currentVersion,
	})

	if !single {
		reqLogger.Warn("current version given more than once")
		s.recordUpdateCheck(r.Context(), platform, metrics.OutcomeMalformed)
		s.writeNoContent(w)
		return
	}
	if currentVersion == "" {
		reqLogger.Debug("no current version given")
		s.recordUpdateCheck(r.Context(), platform, metrics.OutcomeBadRequest)
		s.writeNoContent(w)
		return
	}

	latest, err := s.getLatestRelease(r.Context())
	if err != nil {
		reqLogger.Warnf("no release available: %v", err)
		s.recordUpdateCheck(r.Context(), platform, metrics.OutcomeNoRelease)
		s.writeNoContent(w)
		return
	}
	if latest == nil || latest.Version == "" {
		reqLogger.Warn("latest release has no version")
		s.recordUpdateCheck(r.Context(), platform, metrics.OutcomeMalformed)
		s.writeNoContent(w)
		return
	}

	reqLogger = reqLogger.WithField("latestVersion", latest.Version)
	if release.IsSameVersion(currentVersion, latest.Version) {
		s.recordUpdateCheck(r.Context(), platform, metrics.OutcomeUpToDate)
		s.writeNoContent(w)
		return
	}

	if !release.IsWellFormedVersion(currentVersion) || !release.IsWellFormedVersion(latest.Version) {
		reqLogger.Warn("cannot compare versions, offering latest release")
	} else if c, err := release.CompareVersions(currentVersion, latest.Version); err == nil && c > 0 {
		reqLogger.Warn("client is ahead of the latest release")
	}
	s.recordUpdateCheck(r.Context(), platform, metrics.OutcomeUpdate)
	s.writeJSON(w, latest)
}
