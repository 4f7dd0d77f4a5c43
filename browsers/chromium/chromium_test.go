package chromium

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"

	"github.com/adblockplus/extension-contract-tests/browsers"
)

func zipWith(t *testing.T, name string) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(name)
	require.NoError(t, err)
	_, err = w.Write([]byte("binary"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func knownGoodJSON(base string) string {
	entry := func(v string) string {
		return fmt.Sprintf(`{"version":%q,"downloads":{
			"chrome":[{"platform":"linux64","url":"%s/chrome-%s.zip"}],
			"chromedriver":[{"platform":"linux64","url":"%s/chromedriver-%s.zip"}]}}`, v, base, v, base, v)
	}
	return `{"versions":[` + entry("113.0.5672.0") + "," + entry("113.0.5672.63") + "," +
		`{"version":"114.0.5735.90","downloads":{"chrome":[{"platform":"mac-x64","url":"x"}]}},` +
		entry("120.0.6099.109") + `]}`
}

func testModule(t *testing.T, server *httptest.Server) *Module {
	m := NewModule(browsers.Env{CacheDir: t.TempDir()})
	m.LastKnownGoodURL = server.URL + "/last-known-good.json"
	m.KnownGoodURL = server.URL + "/known-good.json"
	m.HostPlatform = "linux64"
	return m
}

func catalogServer(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/last-known-good.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"channels":{"Stable":{"channel":"Stable","version":"120.0.6099.109"}}}`))
	})
	mux.HandleFunc("/known-good.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(knownGoodJSON("http://" + r.Host)))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch filepath.Base(r.URL.Path) {
		case "chrome-113.0.5672.63.zip", "chrome-120.0.6099.109.zip":
			_, _ = w.Write(zipWith(t, "chrome-linux64/chrome"))
		case "chromedriver-113.0.5672.63.zip", "chromedriver-120.0.6099.109.zip":
			_, _ = w.Write(zipWith(t, "chromedriver-linux64/chromedriver"))
		default:
			http.NotFound(w, r)
		}
	})
	return mux
}

func TestLatestVersion(t *testing.T) {
	httphelpers.WithServer(catalogServer(t), func(server *httptest.Server) {
		v, err := testModule(t, server).LatestVersion(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "120.0.6099.109", v)
	})
}

func TestLatestVersionWithoutStableChannel(t *testing.T) {
	handler := httphelpers.HandlerWithResponse(200, nil, []byte(`{"channels":{}}`))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		_, err := testModule(t, server).LatestVersion(context.Background())
		assert.Error(t, err)
	})
}

func TestEnsureBrowserPicksNewestMatchingRelease(t *testing.T) {
	httphelpers.WithServer(catalogServer(t), func(server *httptest.Server) {
		m := testModule(t, server)
		binary, err := m.EnsureBrowser(context.Background(), m.OldestCompatibleVersion())
		require.NoError(t, err)
		assert.FileExists(t, binary)
		assert.Contains(t, binary, "chromium-113.0.5672.63-linux64")

		driver, err := m.driverFor(binary)
		require.NoError(t, err)
		assert.FileExists(t, driver)
		assert.Equal(t, "chromedriver", filepath.Base(driver))
	})
}

func TestEnsureBrowserUnknownVersion(t *testing.T) {
	httphelpers.WithServer(catalogServer(t), func(server *httptest.Server) {
		_, err := testModule(t, server).EnsureBrowser(context.Background(), "114")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no Chromium download")
	})
}

func TestDriverFallsBackToPath(t *testing.T) {
	m := NewModule(browsers.Env{})
	m.LookPath = func(name string) (string, error) {
		if name == "chromedriver" {
			return "/usr/bin/chromedriver", nil
		}
		return "", exec.ErrNotFound
	}
	driver, err := m.driverFor("")
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/chromedriver", driver)
	assert.False(t, m.IsInstalled())
}

func TestIsInstalled(t *testing.T) {
	m := NewModule(browsers.Env{})
	m.LookPath = func(name string) (string, error) {
		if name == "google-chrome" {
			return "/usr/bin/google-chrome", nil
		}
		return "", exec.ErrNotFound
	}
	assert.True(t, m.IsInstalled())
	assert.Equal(t, "chrome", m.Platform())
}

func TestCapabilities(t *testing.T) {
	caps := Capabilities("/opt/chrome", "/work/devenv.chrome", true)
	assert.Equal(t, "chrome", caps["browserName"])
	assert.Equal(t, true, caps["acceptInsecureCerts"])

	ch := caps[chrome.CapabilitiesKey].(chrome.Capabilities)
	assert.Equal(t, "/opt/chrome", ch.Path)
	assert.Contains(t, ch.Args, "--load-extension=/work/devenv.chrome")
	assert.True(t, ch.W3C)

	_, ok := Capabilities("", "/x", false)["acceptInsecureCerts"]
	assert.False(t, ok)
}

func TestNewSessionReportsDriverStartFailure(t *testing.T) {
	m := NewModule(browsers.Env{})
	m.LookPath = func(string) (string, error) { return "/usr/bin/chromedriver", nil }
	m.Launch = func(string, int, ...selenium.ServiceOption) (*selenium.Service, error) {
		return nil, errors.New("exec format error")
	}
	session, err := m.NewSession(context.Background(), "", "/work/devenv.chrome", false)
	require.Error(t, err)
	assert.Nil(t, session)
	assert.Contains(t, err.Error(), "exec format error")
}
