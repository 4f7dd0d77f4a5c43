// Package binaries decides which browser binaries a test run exercises for each browser family.
package binaries

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/adblockplus/extension-contract-tests/browsers"
)

// Override values and prefixes of the <BROWSER>_BINARY variable.
const (
	OverrideInstalled      = "installed"
	OverridePathPrefix     = "path:"
	OverrideDownloadPrefix = "download:"
)

// Version labels of the specs produced for modules that manage downloads.
const (
	VersionOldest = "oldest"
	VersionLatest = "latest"
)

// Spec describes one browser binary to test.
type Spec struct {
	// Version is a label distinguishing several specs of the same browser. It is undefined when the
	// browser has only one spec.
	Version ldvalue.OptionalString

	// GetPath returns the path of the binary, downloading it first if necessary. An empty path
	// means the system-installed browser.
	GetPath func(ctx context.Context) (string, error)
}

// Resolve returns the binaries to test for a browser. override is the value of the browser's
// <BROWSER>_BINARY variable, or "" if unset.
//
// An empty result means the browser is skipped for this run.
func Resolve(module browsers.Module, browserName, override string, logger *zap.Logger) []Spec {
	if logger == nil {
		logger = zap.NewNop()
	}
	downloader, canDownload := module.(browsers.Downloader)

	switch {
	case override == OverrideInstalled:
		return []Spec{installed()}
	case strings.HasPrefix(override, OverridePathPrefix):
		path := strings.TrimPrefix(override, OverridePathPrefix)
		return []Spec{{GetPath: func(context.Context) (string, error) { return path, nil }}}
	case strings.HasPrefix(override, OverrideDownloadPrefix):
		if canDownload {
			version := strings.TrimPrefix(override, OverrideDownloadPrefix)
			return []Spec{{GetPath: func(ctx context.Context) (string, error) {
				return downloader.EnsureBrowser(ctx, version)
			}}}
		}
		logger.Warn("Downloading this browser is not supported, ignoring override",
			zap.String("browser", browserName), zap.String("override", override))
	}
	// Any other override value falls through to the default resolution.

	if !canDownload {
		if module.IsInstalled() {
			return []Spec{installed()}
		}
		return nil
	}

	return []Spec{
		{
			Version: ldvalue.NewOptionalString(VersionOldest),
			GetPath: func(ctx context.Context) (string, error) {
				return downloader.EnsureBrowser(ctx, downloader.OldestCompatibleVersion())
			},
		},
		{
			Version: ldvalue.NewOptionalString(VersionLatest),
			GetPath: func(ctx context.Context) (string, error) {
				version, err := downloader.LatestVersion(ctx)
				if err != nil {
					return "", err
				}
				return downloader.EnsureBrowser(ctx, version)
			},
		},
	}
}

func installed() Spec {
	return Spec{GetPath: func(context.Context) (string, error) { return "", nil }}
}

// Description is the name of the test group for spec: the capitalized browser name, followed by
// the version label in parentheses if there is one.
func Description(browserName string, spec Spec) string {
	description := browserName
	if description != "" {
		description = strings.ToUpper(description[:1]) + description[1:]
	}
	if spec.Version.IsDefined() {
		description += " (" + spec.Version.StringValue() + ")"
	}
	return description
}
