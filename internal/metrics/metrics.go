package metrics

import (
	"fmt"

	"contrib.go.opencensus.io/exporter/stackdriver"
	"github.com/G9000/tauri-update-server/internal/config"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	CounterUpdateChecks      = stats.Int64("update_checks", "Number of update checks", "1")
	CounterDownloads         = stats.Int64("downloads", "Number of download redirects", "1")
	CounterCacheHit          = stats.Int64("cache_hits", "Number of cache hits", "1")
	CounterCacheMiss         = stats.Int64("cache_misses", "Number of cache misses", "1")
	CounterSignatureFailures = stats.Int64("signature_failures", "Number of failed signature downloads", "1")

	TagOutcome  = tag.MustNewKey("outcome")
	TagPlatform = tag.MustNewKey("platform")
	TagCacheKey = tag.MustNewKey("cache_key")
)

// Outcomes of an update check.
const (
	OutcomeUpdate     = "update"
	OutcomeUpToDate   = "up_to_date"
	OutcomeNoRelease  = "no_release"
	OutcomeBadRequest = "bad_request"
	OutcomeMalformed  = "malformed_version"
)

var views = []*view.View{
	{
		Name:        "update_checks",
		Measure:     CounterUpdateChecks,
		Description: "Number of update checks",
		TagKeys:     []tag.Key{TagOutcome, TagPlatform},
		Aggregation: view.Count(),
	},
	{
		Name:        "downloads",
		Measure:     CounterDownloads,
		Description: "Number of download redirects",
		TagKeys:     []tag.Key{TagPlatform},
		Aggregation: view.Count(),
	},
	{
		Name:        "cache_hits",
		Measure:     CounterCacheHit,
		Description: "Number of cache hits",
		TagKeys:     []tag.Key{TagCacheKey},
		Aggregation: view.Count(),
	},
	{
		Name:        "cache_misses",
		Measure:     CounterCacheMiss,
		Description: "Number of cache misses",
		TagKeys:     []tag.Key{TagCacheKey},
		Aggregation: view.Count(),
	},
	{
		Name:        "signature_failures",
		Measure:     CounterSignatureFailures,
		Description: "Number of failed signature downloads",
		Aggregation: view.Count(),
	},
}

func RegisterViews() error {
	return view.Register(views...)
}

func NewExporter(cfg *config.ServerConfig) (*stackdriver.Exporter, error) {
	err := RegisterViews()
	if err != nil {
		return nil, err
	}
	exporter, err := stackdriver.NewExporter(stackdriver.Options{
		ProjectID:    cfg.ProjectID,
		MetricPrefix: fmt.Sprintf("tauri-update-server/%s", cfg.Stage),
	})
	if err != nil {
		return nil, err
	}
	err = exporter.StartMetricsExporter()
	if err != nil {
		return nil, err
	}
	return exporter, nil
}
