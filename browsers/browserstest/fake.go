// Package browserstest provides in-memory fakes of browsers.Module and browsers.Session for tests.
package browserstest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/adblockplus/extension-contract-tests/browsers"
)

// Window is a simulated browser window.
type Window struct {
	Handle string
	Origin string
	URL    string
}

// Session is a fake browsers.Session over a fixed list of windows.
type Session struct {
	Name    string
	Version string

	// LastError is returned by any asynchronous script, simulating the extension's error report.
	LastError interface{}

	// CloseErrors makes CloseWindow fail for the given handles.
	CloseErrors map[string]error

	// OnWindowHandles, if set, is called before every WindowHandles call with the number of
	// previous calls. It can change the windows to simulate pages that open late.
	OnWindowHandles func(s *Session, calls int)

	windows   []Window
	current   string
	navigated []string
	closed    []string
	quits     int
	calls     int
	lock      sync.Mutex
}

func NewSession(windows ...Window) *Session {
	s := &Session{Name: "fakebrowser", Version: "1.0"}
	s.SetWindows(windows...)
	return s
}

// SetWindows replaces the window list. The first window becomes current.
func (s *Session) SetWindows(windows ...Window) {
	s.windows = append([]Window(nil), windows...)
	if len(windows) > 0 {
		s.current = windows[0].Handle
	}
}

func (s *Session) WindowHandles(ctx context.Context) ([]string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.OnWindowHandles != nil {
		s.OnWindowHandles(s, s.calls)
	}
	s.calls++
	handles := make([]string, 0, len(s.windows))
	for _, w := range s.windows {
		handles = append(handles, w.Handle)
	}
	return handles, nil
}

func (s *Session) SwitchWindow(ctx context.Context, handle string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.find(handle) < 0 {
		return fmt.Errorf("switching to %s: %w", handle, browsers.ErrWindowGone)
	}
	s.current = handle
	return nil
}

func (s *Session) ExecuteScript(ctx context.Context, script string, args ...interface{}) (interface{}, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	i := s.find(s.current)
	if i < 0 {
		return nil, browsers.ErrWindowGone
	}
	w := s.windows[i]
	switch {
	case strings.Contains(script, "location.origin"):
		return []interface{}{w.Origin, w.URL}, nil
	case strings.Contains(script, "document.readyState"):
		return "complete", nil
	}
	return nil, nil
}

func (s *Session) ExecuteAsyncScript(ctx context.Context, script string, args ...interface{}) (interface{}, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.LastError, nil
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	i := s.find(s.current)
	if i < 0 {
		return browsers.ErrWindowGone
	}
	s.windows[i].URL = url
	s.navigated = append(s.navigated, s.current+" "+url)
	return nil
}

func (s *Session) CloseWindow(ctx context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.CloseErrors[s.current]; err != nil {
		return err
	}
	i := s.find(s.current)
	if i < 0 {
		return browsers.ErrWindowGone
	}
	s.closed = append(s.closed, s.current)
	s.windows = append(s.windows[:i], s.windows[i+1:]...)
	return nil
}

func (s *Session) BrowserInfo(ctx context.Context) (string, string, error) {
	return s.Name, s.Version, nil
}

func (s *Session) Quit(ctx context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.quits++
	return nil
}

// Current returns the handle of the current window.
func (s *Session) Current() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.current
}

// Navigated returns "handle url" entries for every Navigate call.
func (s *Session) Navigated() []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]string(nil), s.navigated...)
}

// Closed returns the handles of the windows closed so far.
func (s *Session) Closed() []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]string(nil), s.closed...)
}

// Quits returns how many times Quit was called.
func (s *Session) Quits() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.quits
}

func (s *Session) find(handle string) int {
	for i, w := range s.windows {
		if w.Handle == handle {
			return i
		}
	}
	return -1
}

// Module is a fake browsers.Module without the download capability.
type Module struct {
	PlatformName string
	Installed    bool
	Session      *Session
	SessionErr   error

	// Requests records the binary and devenv path of every NewSession call.
	Requests []SessionRequest

	shutdowns int
	lock      sync.Mutex
}

// SessionRequest is the arguments of one NewSession call.
type SessionRequest struct {
	BinaryPath string
	DevenvPath string
	Insecure   bool
}

func (m *Module) Platform() string { return m.PlatformName }

func (m *Module) IsInstalled() bool { return m.Installed }

func (m *Module) NewSession(ctx context.Context, binaryPath, devenvPath string, insecure bool) (browsers.Session, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.Requests = append(m.Requests, SessionRequest{binaryPath, devenvPath, insecure})
	if m.SessionErr != nil {
		return nil, m.SessionErr
	}
	if m.Session == nil {
		return nil, errors.New("no fake session configured")
	}
	return m.Session, nil
}

func (m *Module) Shutdown() {
	m.lock.Lock()
	m.shutdowns++
	m.lock.Unlock()
}

// Shutdowns returns how many times Shutdown was called.
func (m *Module) Shutdowns() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.shutdowns
}

// DownloadingModule is a fake module with the download capability.
type DownloadingModule struct {
	Module
	Oldest string
	Latest string

	// Ensured records every version passed to EnsureBrowser.
	Ensured []string
}

func (m *DownloadingModule) OldestCompatibleVersion() string { return m.Oldest }

func (m *DownloadingModule) LatestVersion(ctx context.Context) (string, error) {
	return m.Latest, nil
}

func (m *DownloadingModule) EnsureBrowser(ctx context.Context, version string) (string, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.Ensured = append(m.Ensured, version)
	return "/cache/" + m.PlatformName + "-" + version + "/bin", nil
}
