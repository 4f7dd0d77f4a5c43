// Package webdriver implements browsers.Session on top of a WebDriver server such as chromedriver
// or geckodriver.
package webdriver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/tebeka/selenium"

	"github.com/adblockplus/extension-contract-tests/browsers"
)

// Error codes defined by the WebDriver specification for vanished windows.
var windowGoneErrors = map[string]bool{
	"no such window": true,
	"no such frame":  true,
}

// Session is a browsers.Session backed by a WebDriver session and the driver process serving it.
type Session struct {
	wd      selenium.WebDriver
	service *selenium.Service
	baseURL string
	cleanup func()
}

// Launcher starts a driver service. It matches selenium.NewChromeDriverService and
// selenium.NewGeckoDriverService.
type Launcher func(driverPath string, port int, opts ...selenium.ServiceOption) (*selenium.Service, error)

// Options describe how to start a WebDriver session.
type Options struct {
	Launch       Launcher
	DriverPath   string
	Capabilities selenium.Capabilities
	// PathPrefix is appended to the driver's base URL, e.g. "/wd/hub". Usually empty.
	PathPrefix string
	// Cleanup is called after the session has quit, e.g. to remove a temporary profile.
	Cleanup func()
}

// Start launches the driver on a free local port and opens a session with it.
func Start(ctx context.Context, opts Options) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	port, err := freePort()
	if err != nil {
		return nil, err
	}
	service, err := opts.Launch(opts.DriverPath, port)
	if err != nil {
		return nil, fmt.Errorf("starting %s: %w", opts.DriverPath, err)
	}
	baseURL := "http://localhost:" + strconv.Itoa(port) + opts.PathPrefix
	wd, err := selenium.NewRemote(opts.Capabilities, baseURL)
	if err != nil {
		_ = service.Stop()
		return nil, fmt.Errorf("creating WebDriver session: %w", err)
	}
	return &Session{wd: wd, service: service, baseURL: baseURL, cleanup: opts.Cleanup}, nil
}

// NewSession wraps an existing WebDriver session. The session does not own a driver process.
func NewSession(wd selenium.WebDriver, baseURL string) *Session {
	return &Session{wd: wd, baseURL: baseURL}
}

// WebDriver returns the underlying session for browser-specific commands.
func (s *Session) WebDriver() selenium.WebDriver { return s.wd }

func (s *Session) WindowHandles(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.wd.WindowHandles()
}

func (s *Session) SwitchWindow(ctx context.Context, handle string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return classify(s.wd.SwitchWindow(handle))
}

func (s *Session) ExecuteScript(ctx context.Context, script string, args ...interface{}) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if args == nil {
		args = []interface{}{}
	}
	result, err := s.wd.ExecuteScript(script, args)
	return result, classify(err)
}

func (s *Session) ExecuteAsyncScript(ctx context.Context, script string, args ...interface{}) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if args == nil {
		args = []interface{}{}
	}
	result, err := s.wd.ExecuteScriptAsync(script, args)
	return result, classify(err)
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return classify(s.wd.Get(url))
}

func (s *Session) CloseWindow(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return classify(s.wd.Close())
}

func (s *Session) BrowserInfo(ctx context.Context) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	caps, err := s.wd.Capabilities()
	if err != nil {
		return "", "", err
	}
	name, version := BrowserInfoFromCapabilities(caps)
	return name, version, nil
}

// BrowserInfoFromCapabilities reads the browser name and version from returned capabilities,
// accepting both W3C and legacy keys.
func BrowserInfoFromCapabilities(caps selenium.Capabilities) (name, version string) {
	name, _ = caps["browserName"].(string)
	version, _ = caps["browserVersion"].(string)
	if version == "" {
		version, _ = caps["version"].(string)
	}
	return name, version
}

func (s *Session) Quit(ctx context.Context) error {
	err := s.wd.Quit()
	if s.service != nil {
		if stopErr := s.service.Stop(); err == nil {
			err = stopErr
		}
	}
	if s.cleanup != nil {
		s.cleanup()
	}
	return err
}

// Command sends a vendor-specific command for the current session, such as geckodriver's
// moz/addon/install, and decodes the "value" of the response into result if it is not nil.
func (s *Session) Command(ctx context.Context, path string, params, result interface{}) error {
	body, err := json.Marshal(params)
	if err != nil {
		return err
	}
	url := s.baseURL + "/session/" + s.wd.SessionID() + "/" + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var reply struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return fmt.Errorf("decoding response of %s: %w", path, err)
	}
	if resp.StatusCode >= 300 {
		var werr struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(reply.Value, &werr)
		return fmt.Errorf("%s returned HTTP %d: %s %s", path, resp.StatusCode, werr.Error, werr.Message)
	}
	if result != nil {
		return json.Unmarshal(reply.Value, result)
	}
	return nil
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var serr *selenium.Error
	if errors.As(err, &serr) && windowGoneErrors[serr.Err] {
		return fmt.Errorf("%w: %v", browsers.ErrWindowGone, err)
	}
	return err
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
