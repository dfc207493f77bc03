package server

import (
	"fmt"
	"net/http"

	"github.com/G9000/tauri-update-server/internal/metrics"
	"github.com/G9000/tauri-update-server/pkg/update"
	"github.com/go-chi/chi/v5"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
)

func (s *Server) downloadLatestArtifact(w http.ResponseWriter, r *http.Request) {
	platform := chi.URLParam(r, "platform")
	if !update.IsKnownPlatform(platform) {
		s.writeJSONError(w, r, http.StatusBadRequest, fmt.Errorf("unknown platform %s", platform))
		return
	}

	latestRelease, err := s.getLatestRelease(r.Context())
	if err != nil {
		s.writeJSONError(w, r, http.StatusServiceUnavailable, err, "could not get latest release")
		return
	}

	artifact, ok := latestRelease.Artifact(platform)
	if !ok || artifact.URL == "" {
		s.writeJSONError(w, r, http.StatusNotFound, fmt.Errorf("could not find artifact for %s in %s", platform, latestRelease.Version))
		return
	}

	ctx, _ := tag.New(r.Context(), tag.Upsert(metrics.TagPlatform, platform))
	stats.Record(ctx, metrics.CounterDownloads.M(1))
	http.Redirect(w, r, artifact.URL, http.StatusFound)
}
