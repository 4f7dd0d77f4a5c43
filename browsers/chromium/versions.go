package chromium

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"

	"github.com/adblockplus/extension-contract-tests/browsers/download"
)

// Endpoints of the Chrome for Testing availability dashboard.
const (
	DefaultLastKnownGoodURL = "https://googlechromelabs.github.io/chrome-for-testing/last-known-good-versions.json"
	DefaultKnownGoodURL     = "https://googlechromelabs.github.io/chrome-for-testing/known-good-versions-with-downloads.json"
)

type lastKnownGood struct {
	Channels map[string]struct {
		Version string `json:"version"`
	} `json:"channels"`
}

type knownGood struct {
	Versions []release `json:"versions"`
}

type release struct {
	Version   string `json:"version"`
	Downloads struct {
		Chrome       []artifact `json:"chrome"`
		Chromedriver []artifact `json:"chromedriver"`
	} `json:"downloads"`
}

type artifact struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
}

func urlFor(artifacts []artifact, platform string) string {
	for _, a := range artifacts {
		if a.Platform == platform {
			return a.URL
		}
	}
	return ""
}

// findRelease picks the newest listed release matching the version prefix that has both a browser
// and a driver download for the platform. Releases are listed oldest first.
func findRelease(releases []release, version, platform string) (release, error) {
	for i := len(releases) - 1; i >= 0; i-- {
		r := releases[i]
		if !download.MatchesPrefix(r.Version, version) {
			continue
		}
		if urlFor(r.Downloads.Chrome, platform) != "" && urlFor(r.Downloads.Chromedriver, platform) != "" {
			return r, nil
		}
	}
	return release{}, fmt.Errorf("no Chromium download matching version %q for %s", version, platform)
}

func getJSON(ctx context.Context, client *http.Client, url string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected response status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// hostPlatform is the Chrome for Testing platform name of this machine.
func hostPlatform() string {
	switch runtime.GOOS {
	case "darwin":
		if runtime.GOARCH == "arm64" {
			return "mac-arm64"
		}
		return "mac-x64"
	case "windows":
		if runtime.GOARCH == "386" {
			return "win32"
		}
		return "win64"
	default:
		return "linux64"
	}
}

// binaryPath is the location of the browser executable inside an extracted archive.
func binaryPath(platform string) string {
	switch platform {
	case "mac-x64", "mac-arm64":
		return "chrome-" + platform + "/Google Chrome for Testing.app/Contents/MacOS/Google Chrome for Testing"
	case "win32", "win64":
		return "chrome-" + platform + "/chrome.exe"
	default:
		return "chrome-" + platform + "/chrome"
	}
}

func driverPath(platform string) string {
	if platform == "win32" || platform == "win64" {
		return "chromedriver-" + platform + "/chromedriver.exe"
	}
	return "chromedriver-" + platform + "/chromedriver"
}
