package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/G9000/tauri-update-server/internal/release"
	"github.com/G9000/tauri-update-server/pkg/client"
	"github.com/G9000/tauri-update-server/pkg/update"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var version = "dev"

const defaultServerURL = "http://127.0.0.1:8080"

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	cmd := &cobra.Command{
		Use:     "update-check",
		Short:   "Ask an update server whether a newer release is available",
		Version: version,
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if err := run(log, cmd, args); err != nil {
				log.Errorf("ERROR: %v", err)
				os.Exit(1)
			}
		},
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	serverURL := os.Getenv("UPDATE_SERVER_URL")
	if serverURL == "" {
		serverURL = defaultServerURL
	}
	cmd.PersistentFlags().StringP("server-url", "s", serverURL, "the update server URL")
	cmd.PersistentFlags().StringP("platform", "p", hostPlatform(), "the platform key, one of "+fmt.Sprint(update.Platforms()))
	cmd.PersistentFlags().StringP("current-version", "c", "", "the currently installed version")
	cmd.PersistentFlags().Bool("download", false, "print the download URL of the latest artifact instead")
	cmd.PersistentFlags().Bool("json", false, "print the full release as JSON")
	cmd.PersistentFlags().SortFlags = false

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func hostPlatform() string {
	arch := runtime.GOARCH
	switch arch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "aarch64"
	}
	return runtime.GOOS + "-" + arch
}

func run(log *logrus.Logger, cmd *cobra.Command, _ []string) error {
	serverURL := must(cmd.PersistentFlags().GetString("server-url"))
	platform := must(cmd.PersistentFlags().GetString("platform"))
	currentVersion := must(cmd.PersistentFlags().GetString("current-version"))
	if !update.IsKnownPlatform(platform) {
		return fmt.Errorf("unknown platform %q", platform)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	c := client.New(serverURL)

	if must(cmd.PersistentFlags().GetBool("download")) {
		dlURL, err := c.GetDownloadURL(ctx, platform)
		if err != nil {
			return err
		}
		fmt.Println(dlURL)
		return nil
	}

	if currentVersion == "" {
		return errors.New("no current version provided")
	}
	log.Infof("checking %s for updates (platform=%s, version=%s)", serverURL, platform, currentVersion)
	rel, err := c.CheckForUpdate(ctx, platform, currentVersion)
	if err != nil {
		return err
	}
	if rel == nil {
		log.Info("no update available")
		return nil
	}

	if cmp, err := release.CompareVersions(currentVersion, rel.Version); err == nil && cmp > 0 {
		log.Warnf("installed version %s is newer than the latest release %s", currentVersion, rel.Version)
	} else {
		log.Infof("update available: %s -> %s", currentVersion, rel.Version)
	}
	if artifact, ok := rel.Artifact(platform); ok {
		log.Infof("artifact: %s (signed=%t)", artifact.URL, artifact.Signature != "")
	} else {
		log.Warnf("latest release has no artifact for %s", platform)
	}

	if must(cmd.PersistentFlags().GetBool("json")) {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rel)
	}
	return nil
}
