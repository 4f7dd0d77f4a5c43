// Package edge provides the Microsoft Edge browser module. Edge is driven directly over the
// DevTools protocol and always uses the system installation.
package edge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"go.uber.org/zap"

	"github.com/adblockplus/extension-contract-tests/browsers"
	"github.com/adblockplus/extension-contract-tests/browsers/cdp"
)

var executableNames = []string{"microsoft-edge", "microsoft-edge-stable", "msedge"}

// ErrNotInstalled is returned when a session is requested without a binary and no system
// installation exists.
var ErrNotInstalled = errors.New("Microsoft Edge is not installed")

// Module is the Edge browser module. Each session gets a fresh profile directory, which is removed
// when the session quits or at the latest on Shutdown.
type Module struct {
	LookPath func(string) (string, error)
	Start    func(ctx context.Context, opts cdp.Options) (*cdp.Session, error)

	logger *zap.Logger

	lock     sync.Mutex
	profiles map[string]bool
}

var (
	_ browsers.Module     = (*Module)(nil)
	_ browsers.Shutdowner = (*Module)(nil)
)

// New is the browsers.Factory of the module.
func New(env browsers.Env) (browsers.Module, error) {
	return NewModule(env), nil
}

func NewModule(env browsers.Env) *Module {
	logger := env.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Module{
		LookPath: exec.LookPath,
		Start:    cdp.Start,
		logger:   logger,
		profiles: make(map[string]bool),
	}
}

func (m *Module) Platform() string { return "chrome" }

func (m *Module) IsInstalled() bool {
	_, err := m.executable()
	return err == nil
}

func (m *Module) executable() (string, error) {
	for _, name := range executableNames {
		if path, err := m.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", ErrNotInstalled
}

func (m *Module) NewSession(ctx context.Context, binaryPath, devenvPath string, insecure bool) (browsers.Session, error) {
	if binaryPath == "" {
		path, err := m.executable()
		if err != nil {
			return nil, err
		}
		binaryPath = path
	}
	profile, err := os.MkdirTemp("", "edge-profile-")
	if err != nil {
		return nil, fmt.Errorf("creating profile directory: %w", err)
	}
	m.lock.Lock()
	m.profiles[profile] = true
	m.lock.Unlock()

	m.logger.Debug("Starting Edge", zap.String("binary", binaryPath), zap.String("profile", profile))
	session, err := m.Start(ctx, cdp.Options{
		ExecPath:     binaryPath,
		ExtensionDir: devenvPath,
		UserDataDir:  profile,
		Insecure:     insecure,
		Cleanup:      func() { m.removeProfile(profile) },
	})
	if err != nil {
		m.removeProfile(profile)
		return nil, err
	}
	return session, nil
}

func (m *Module) removeProfile(dir string) {
	m.lock.Lock()
	delete(m.profiles, dir)
	m.lock.Unlock()
	if err := os.RemoveAll(dir); err != nil {
		m.logger.Warn("Could not remove profile directory", zap.String("dir", dir), zap.Error(err))
	}
}

// Shutdown removes profile directories left behind by sessions that were never quit.
func (m *Module) Shutdown() {
	m.lock.Lock()
	dirs := make([]string, 0, len(m.profiles))
	for dir := range m.profiles {
		dirs = append(dirs, dir)
	}
	m.lock.Unlock()
	for _, dir := range dirs {
		m.removeProfile(dir)
	}
}
