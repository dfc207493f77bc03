package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-github/v59/github"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

type ServerConfig struct {
	Stage                     string        `envconfig:"STAGE" default:"dev"`
	ProjectID                 string        `envconfig:"GOOGLE_CLOUD_PROJECT_ID"`
	Port                      string        `envconfig:"PORT" default:"8080"`
	BindAddress               string        `envconfig:"BIND_ADDRESS"`
	GitHubToken               string        `envconfig:"GITHUB_TOKEN"`
	Repository                string        `envconfig:"UPDATE_REPOSITORY" default:"G9000/tauri-test"`
	CacheTTL                  time.Duration `envconfig:"CACHE_TTL" default:"5m"`
	DisableRequestCache       bool          `envconfig:"DISABLE_REQUEST_CACHE"`
	UpstreamTimeout           time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"10s"`
	SignatureTimeout          time.Duration `envconfig:"SIGNATURE_TIMEOUT" default:"10s"`
	SignatureFetchRetries     int           `envconfig:"SIGNATURE_FETCH_RETRIES" default:"0"`
	SignatureFetchConcurrency int           `envconfig:"SIGNATURE_FETCH_CONCURRENCY" default:"3"`
	PlatformsFile             string        `envconfig:"PLATFORMS_FILE"`
	CORSAllowedOrigins        []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	LogLevel                  string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat                 string        `envconfig:"LOG_FORMAT" default:"text"`
	DisableMetrics            bool          `envconfig:"DISABLE_METRICS" default:"true"`
	Version                   string
}

func NewServerConfigFromEnv() (*ServerConfig, error) {
	var sCfg ServerConfig
	err := envconfig.Process("", &sCfg)
	if err != nil {
		return nil, err
	}
	if err := sCfg.Validate(); err != nil {
		return nil, err
	}
	return &sCfg, nil
}

func (s *ServerConfig) Validate() error {
	if owner, repo := s.GetOwnerRepo(); owner == "" || repo == "" {
		return fmt.Errorf("invalid repository %q: expected owner/repo", s.Repository)
	}
	if s.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}
	if s.SignatureFetchConcurrency < 1 {
		return fmt.Errorf("signature fetch concurrency must be at least 1")
	}
	if s.SignatureFetchRetries < 0 {
		return fmt.Errorf("signature fetch retries must not be negative")
	}
	if _, err := logrus.ParseLevel(s.LogLevel); err != nil {
		return err
	}
	return nil
}

func (s *ServerConfig) GetServerAddr() string {
	return s.BindAddress + ":" + s.Port
}

func (s *ServerConfig) GetOwnerRepo() (string, string) {
	owner, repo, found := strings.Cut(s.Repository, "/")
	if !found || strings.Contains(repo, "/") {
		return "", ""
	}
	return owner, repo
}

// CreateGitHubClient returns an authenticated client if a token is configured.
// Anonymous clients share the unauthenticated rate limit of the host.
func (s *ServerConfig) CreateGitHubClient() *github.Client {
	if s.GitHubToken == "" {
		return github.NewClient(nil)
	}
	oauthClient := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: s.GitHubToken}))
	return github.NewClient(oauthClient)
}

func (s *ServerConfig) CreateLogger() *logrus.Logger {
	log := logrus.New()
	if s.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	if lvl, err := logrus.ParseLevel(s.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	return log
}
