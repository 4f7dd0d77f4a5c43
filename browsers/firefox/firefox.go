// Package firefox provides the Firefox browser module. Sessions are driven through geckodriver,
// which also installs the extension as a temporary add-on. Release builds are downloaded from the
// Mozilla archive.
package firefox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/blang/semver"
	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/firefox"
	"go.uber.org/zap"

	"github.com/adblockplus/extension-contract-tests/browsers"
	"github.com/adblockplus/extension-contract-tests/browsers/download"
	"github.com/adblockplus/extension-contract-tests/browsers/webdriver"
)

const (
	// OldestCompatibleVersion is the oldest Firefox release the extension supports.
	OldestCompatibleVersion = "115.0"

	DefaultArchiveURL        = "https://archive.mozilla.org/pub/firefox/releases"
	DefaultProductDetailsURL = "https://product-details.mozilla.org/1.0/firefox_versions.json"
)

// Releases from this version on are packaged as .tar.xz instead of .tar.bz2.
var xzSince = semver.MustParse("135.0.0")

// ErrUnsupportedPlatform is returned when no release archive exists for the host.
var ErrUnsupportedPlatform = errors.New("Firefox downloads are only supported on Linux")

// Module is the Firefox browser module.
type Module struct {
	ArchiveURL        string
	ProductDetailsURL string
	// ArchivePlatform is the Mozilla archive platform directory, e.g. "linux-x86_64". Empty if the
	// host has no tarball releases.
	ArchivePlatform string
	Launch          webdriver.Launcher
	LookPath        func(string) (string, error)

	client *http.Client
	cache  *download.Cache
	logger *zap.Logger
}

var (
	_ browsers.Module     = (*Module)(nil)
	_ browsers.Downloader = (*Module)(nil)
)

// New is the browsers.Factory of the module.
func New(env browsers.Env) (browsers.Module, error) {
	return NewModule(env), nil
}

func NewModule(env browsers.Env) *Module {
	client := env.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	logger := env.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Module{
		ArchiveURL:        DefaultArchiveURL,
		ProductDetailsURL: DefaultProductDetailsURL,
		ArchivePlatform:   hostPlatform(),
		Launch:            selenium.NewGeckoDriverService,
		LookPath:          exec.LookPath,
		client:            client,
		cache:             &download.Cache{Dir: env.CacheDir, Client: client, Logger: logger},
		logger:            logger,
	}
}

func hostPlatform() string {
	if runtime.GOOS != "linux" {
		return ""
	}
	switch runtime.GOARCH {
	case "386":
		return "linux-i686"
	case "arm64":
		return "linux-aarch64"
	default:
		return "linux-x86_64"
	}
}

func (m *Module) Platform() string { return "gecko" }

func (m *Module) IsInstalled() bool {
	_, err := m.LookPath("firefox")
	return err == nil
}

func (m *Module) OldestCompatibleVersion() string { return OldestCompatibleVersion }

// LatestVersion returns the current release version.
func (m *Module) LatestVersion(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.ProductDetailsURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("looking up latest Firefox version: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("looking up latest Firefox version: unexpected response status %d", resp.StatusCode)
	}
	var details struct {
		LatestVersion string `json:"LATEST_FIREFOX_VERSION"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return "", fmt.Errorf("looking up latest Firefox version: %w", err)
	}
	version := details.LatestVersion
	if version == "" {
		return "", errors.New("looking up latest Firefox version: LATEST_FIREFOX_VERSION missing")
	}
	return version, nil
}

// ArchiveName returns the file name of a release tarball, which depends on the version.
func ArchiveName(version string) string {
	ext := ".tar.bz2"
	if v, err := download.ParseVersion(version); err == nil && v.GTE(xzSince) {
		ext = ".tar.xz"
	}
	return "firefox-" + version + ext
}

// ArchiveURLFor returns the download URL of a release tarball.
func (m *Module) ArchiveURLFor(version string) string {
	return strings.Join([]string{m.ArchiveURL, version, m.ArchivePlatform, "en-US", ArchiveName(version)}, "/")
}

func (m *Module) EnsureBrowser(ctx context.Context, version string) (string, error) {
	if m.ArchivePlatform == "" {
		return "", ErrUnsupportedPlatform
	}
	if !download.AtLeast(version, OldestCompatibleVersion) {
		m.logger.Warn("Firefox version is older than supported", zap.String("version", version))
	}
	dir, err := m.cache.Ensure(ctx, "firefox-"+version+"-"+m.ArchivePlatform, m.ArchiveURLFor(version))
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "firefox", "firefox"), nil
}

// Capabilities returns the session capabilities for the given binary.
func Capabilities(binaryPath string, insecure bool) selenium.Capabilities {
	caps := selenium.Capabilities{"browserName": "firefox"}
	caps.AddFirefox(firefox.Capabilities{Binary: binaryPath})
	if insecure {
		caps["acceptInsecureCerts"] = true
	}
	return caps
}

// NewSession starts geckodriver and installs the extension at devenvPath as a temporary add-on.
func (m *Module) NewSession(ctx context.Context, binaryPath, devenvPath string, insecure bool) (browsers.Session, error) {
	driver, err := m.LookPath("geckodriver")
	if err != nil {
		return nil, fmt.Errorf("geckodriver not found: %w", err)
	}
	m.logger.Debug("Starting geckodriver", zap.String("driver", driver), zap.String("binary", binaryPath))
	session, err := webdriver.Start(ctx, webdriver.Options{
		Launch:       m.Launch,
		DriverPath:   driver,
		Capabilities: Capabilities(binaryPath, insecure),
	})
	if err != nil {
		return nil, err
	}
	if err := InstallAddon(ctx, session, devenvPath); err != nil {
		_ = session.Quit(ctx)
		return nil, err
	}
	return session, nil
}

// InstallAddon installs an unpacked extension directory for the lifetime of the session.
func InstallAddon(ctx context.Context, session *webdriver.Session, dir string) error {
	var id string
	params := map[string]interface{}{"path": dir, "temporary": true}
	if err := session.Command(ctx, "moz/addon/install", params, &id); err != nil {
		return fmt.Errorf("installing extension from %s: %w", dir, err)
	}
	return nil
}
