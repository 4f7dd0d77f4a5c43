// Package chromium provides the Chromium browser module. Sessions are driven through chromedriver,
// and specific versions are downloaded from Chrome for Testing.
package chromium

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
	"go.uber.org/zap"

	"github.com/adblockplus/extension-contract-tests/browsers"
	"github.com/adblockplus/extension-contract-tests/browsers/download"
	"github.com/adblockplus/extension-contract-tests/browsers/webdriver"
)

// OldestCompatibleVersion is the oldest Chromium major version the extension supports.
const OldestCompatibleVersion = "113"

var installedNames = []string{"chromium", "chromium-browser", "google-chrome", "google-chrome-stable"}

// Module is the Chromium browser module.
type Module struct {
	LastKnownGoodURL string
	KnownGoodURL     string
	HostPlatform     string
	Launch           webdriver.Launcher
	LookPath         func(string) (string, error)

	client *http.Client
	cache  *download.Cache
	logger *zap.Logger

	lock    sync.Mutex
	drivers map[string]string
}

var (
	_ browsers.Module     = (*Module)(nil)
	_ browsers.Downloader = (*Module)(nil)
)

// New is the browsers.Factory of the module.
func New(env browsers.Env) (browsers.Module, error) {
	return NewModule(env), nil
}

// NewModule creates the module with default endpoints.
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
		LastKnownGoodURL: DefaultLastKnownGoodURL,
		KnownGoodURL:     DefaultKnownGoodURL,
		HostPlatform:     hostPlatform(),
		Launch:           selenium.NewChromeDriverService,
		LookPath:         exec.LookPath,
		client:           client,
		cache:            &download.Cache{Dir: env.CacheDir, Client: client, Logger: logger},
		logger:           logger,
		drivers:          make(map[string]string),
	}
}

func (m *Module) Platform() string { return "chrome" }

func (m *Module) IsInstalled() bool {
	for _, name := range installedNames {
		if _, err := m.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

func (m *Module) OldestCompatibleVersion() string { return OldestCompatibleVersion }

// LatestVersion returns the current stable version.
func (m *Module) LatestVersion(ctx context.Context) (string, error) {
	var lkg lastKnownGood
	if err := getJSON(ctx, m.client, m.LastKnownGoodURL, &lkg); err != nil {
		return "", fmt.Errorf("looking up latest Chromium version: %w", err)
	}
	stable, ok := lkg.Channels["Stable"]
	if !ok || stable.Version == "" {
		return "", errors.New("looking up latest Chromium version: no stable channel listed")
	}
	return stable.Version, nil
}

// EnsureBrowser downloads the newest release matching the version prefix together with its
// chromedriver, and returns the browser binary.
func (m *Module) EnsureBrowser(ctx context.Context, version string) (string, error) {
	var kg knownGood
	if err := getJSON(ctx, m.client, m.KnownGoodURL, &kg); err != nil {
		return "", fmt.Errorf("listing Chromium versions: %w", err)
	}
	r, err := findRelease(kg.Versions, version, m.HostPlatform)
	if err != nil {
		return "", err
	}
	if !download.AtLeast(r.Version, OldestCompatibleVersion) {
		m.logger.Warn("Chromium version is older than supported", zap.String("version", r.Version))
	}

	browserDir, err := m.cache.Ensure(ctx, "chromium-"+r.Version+"-"+m.HostPlatform, urlFor(r.Downloads.Chrome, m.HostPlatform))
	if err != nil {
		return "", err
	}
	driverDir, err := m.cache.Ensure(ctx, "chromedriver-"+r.Version+"-"+m.HostPlatform, urlFor(r.Downloads.Chromedriver, m.HostPlatform))
	if err != nil {
		return "", err
	}

	binary := filepath.Join(browserDir, filepath.FromSlash(binaryPath(m.HostPlatform)))
	m.lock.Lock()
	m.drivers[binary] = filepath.Join(driverDir, filepath.FromSlash(driverPath(m.HostPlatform)))
	m.lock.Unlock()
	return binary, nil
}

// driverFor returns the chromedriver downloaded with binaryPath, or the one on PATH.
func (m *Module) driverFor(binaryPath string) (string, error) {
	m.lock.Lock()
	driver, ok := m.drivers[binaryPath]
	m.lock.Unlock()
	if ok {
		return driver, nil
	}
	driver, err := m.LookPath("chromedriver")
	if err != nil {
		return "", fmt.Errorf("chromedriver not found: %w", err)
	}
	return driver, nil
}

// Capabilities returns the session capabilities that load the extension at devenvPath.
func Capabilities(binaryPath, devenvPath string, insecure bool) selenium.Capabilities {
	caps := selenium.Capabilities{"browserName": "chrome"}
	caps.AddChrome(chrome.Capabilities{
		Path: binaryPath,
		Args: []string{
			"--load-extension=" + devenvPath,
			"--no-first-run",
			"--no-default-browser-check",
		},
		W3C: true,
	})
	if insecure {
		caps["acceptInsecureCerts"] = true
	}
	return caps
}

func (m *Module) NewSession(ctx context.Context, binaryPath, devenvPath string, insecure bool) (browsers.Session, error) {
	driver, err := m.driverFor(binaryPath)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("Starting chromedriver", zap.String("driver", driver), zap.String("binary", binaryPath))
	session, err := webdriver.Start(ctx, webdriver.Options{
		Launch:       m.Launch,
		DriverPath:   driver,
		Capabilities: Capabilities(binaryPath, devenvPath, insecure),
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}
