// Package browsers defines what the test orchestrator needs from a browser family and from a live
// automation session, independently of the automation protocol behind it.
//
// Every browser family implements Module. Families that can fetch specific browser versions on their
// own also implement Downloader, and families that hold resources beyond a single session implement
// Shutdowner. Callers detect these capabilities with a type assertion.
package browsers

import (
	"context"
	"errors"
)

// Module is the capability set of one browser family.
type Module interface {
	// Platform identifies the extension build target for this browser, e.g. "chrome" or "gecko".
	Platform() string

	// IsInstalled reports whether a system-wide installation of the browser was found.
	IsInstalled() bool

	// NewSession launches the browser with the extension bundle at devenvPath loaded. An empty
	// binaryPath means the system-installed browser. If insecure is true, the browser accepts
	// invalid TLS certificates.
	NewSession(ctx context.Context, binaryPath, devenvPath string, insecure bool) (Session, error)
}

// Downloader is implemented by modules that manage their own browser downloads.
type Downloader interface {
	// OldestCompatibleVersion is the oldest browser version the extension supports.
	OldestCompatibleVersion() string

	// LatestVersion looks up the most recent released version.
	LatestVersion(ctx context.Context) (string, error)

	// EnsureBrowser makes the given version available locally and returns the path of its binary.
	EnsureBrowser(ctx context.Context, version string) (string, error)
}

// Shutdowner is implemented by modules that need to release resources after a test group.
type Shutdowner interface {
	Shutdown()
}

// Session is a live automation connection to one browser process.
//
// Window handles are opaque strings. Commands apply to the current window, which is changed with
// SwitchWindow.
type Session interface {
	WindowHandles(ctx context.Context) ([]string, error)
	SwitchWindow(ctx context.Context, handle string) error

	// ExecuteScript runs the body of a JavaScript function in the current window and returns its
	// result decoded from JSON. Arguments are available as the arguments object.
	ExecuteScript(ctx context.Context, script string, args ...interface{}) (interface{}, error)

	// ExecuteAsyncScript is like ExecuteScript, but the script receives a callback as its last
	// argument and the result is the value passed to that callback.
	ExecuteAsyncScript(ctx context.Context, script string, args ...interface{}) (interface{}, error)

	Navigate(ctx context.Context, url string) error

	// CloseWindow closes the current window. If the window no longer exists, the error matches
	// ErrWindowGone.
	CloseWindow(ctx context.Context) error

	// BrowserInfo returns the browser name and version as reported by the browser itself.
	BrowserInfo(ctx context.Context) (name, version string, err error)

	// Quit ends the session and stops the browser.
	Quit(ctx context.Context) error
}

// ErrWindowGone means that a window disappeared before a command on it completed. Callers cleaning
// up windows can safely ignore it.
var ErrWindowGone = errors.New("window no longer exists")

// IsWindowGone reports whether err matches ErrWindowGone.
func IsWindowGone(err error) bool {
	return errors.Is(err, ErrWindowGone)
}
