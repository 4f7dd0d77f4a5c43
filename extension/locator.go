// Package extension finds the extension under test inside a running browser and talks to it.
package extension

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v5"

	"github.com/adblockplus/extension-contract-tests/browsers"
)

const (
	// BootstrapPage is the page the extension opens when it is first installed.
	BootstrapPage = "first-run.html"

	DefaultTimeout      = 5 * time.Second
	DefaultPollInterval = 100 * time.Millisecond

	// opaqueOrigin is what location.origin reports for sandboxed documents.
	opaqueOrigin = "null"

	locationScript = "return [location.origin, location.href];"
)

var (
	// ErrDiscoveryTimeout means that no window showed the bootstrap page before the deadline.
	ErrDiscoveryTimeout = errors.New("unknown extension page origin")

	// ErrUnexpectedWindowLayout means the bootstrap page was found but the browser does not have
	// the default window followed by the extension's window.
	ErrUnexpectedWindowLayout = errors.New("unexpected window layout")

	errNotFound = errors.New("bootstrap page not open yet")
)

// Location identifies the extension's own window.
type Location struct {
	WindowHandle string
	Origin       string
}

// Locator finds the window of the extension's bootstrap page.
type Locator struct {
	// Page is the file name the bootstrap page URL ends with. Defaults to BootstrapPage.
	Page string
	// Timeout bounds the whole search. Defaults to DefaultTimeout.
	Timeout time.Duration
	// PollInterval is the pause between scans of the window set. Defaults to DefaultPollInterval.
	PollInterval time.Duration
}

type match struct {
	handles []string
	origin  string
	url     string
}

// Locate scans the session's windows until one shows the bootstrap page with a real origin.
//
// The browser is assumed to open a default tab first and the bootstrap page second, so the
// returned handle is the second one of the scan that found the page. That window is navigated to
// the page URL again before returning, and stays the current window. Only the search is bounded
// by Timeout; the final switch and navigation use ctx.
func (l Locator) Locate(ctx context.Context, session browsers.Session) (Location, error) {
	l = l.withDefaults()
	scanCtx, cancel := context.WithTimeout(ctx, l.Timeout)
	defer cancel()

	var found match
	err := retry.New(
		retry.Attempts(uint(l.Timeout/l.PollInterval)+1),
		retry.Delay(l.PollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(scanCtx),
	).Do(func() error {
		m, err := l.scan(scanCtx, session)
		if err != nil {
			return err
		}
		found = m
		return nil
	})
	if err != nil {
		return Location{}, fmt.Errorf("%w (after %s: %v)", ErrDiscoveryTimeout, l.Timeout, err)
	}

	if len(found.handles) < 2 {
		return Location{}, fmt.Errorf("%w: bootstrap page found with %d window(s) open", ErrUnexpectedWindowLayout,
			len(found.handles))
	}
	loc := Location{WindowHandle: found.handles[1], Origin: found.origin}
	if err := session.SwitchWindow(ctx, loc.WindowHandle); err != nil {
		return Location{}, err
	}
	if err := session.Navigate(ctx, found.url); err != nil {
		return Location{}, err
	}
	return loc, nil
}

func (l Locator) scan(ctx context.Context, session browsers.Session) (match, error) {
	handles, err := session.WindowHandles(ctx)
	if err != nil {
		return match{}, err
	}
	for _, handle := range handles {
		if err := session.SwitchWindow(ctx, handle); err != nil {
			return match{}, err
		}
		origin, url, err := currentLocation(ctx, session)
		if err != nil {
			return match{}, err
		}
		if origin != opaqueOrigin && strings.HasSuffix(url, l.Page) {
			return match{handles: handles, origin: origin, url: url}, nil
		}
	}
	return match{}, errNotFound
}

func currentLocation(ctx context.Context, session browsers.Session) (origin, url string, err error) {
	result, err := session.ExecuteScript(ctx, locationScript)
	if err != nil {
		return "", "", err
	}
	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return "", "", fmt.Errorf("unexpected location result %#v", result)
	}
	origin, _ = values[0].(string)
	url, _ = values[1].(string)
	return origin, url, nil
}

func (l Locator) withDefaults() Locator {
	if l.Page == "" {
		l.Page = BootstrapPage
	}
	if l.Timeout <= 0 {
		l.Timeout = DefaultTimeout
	}
	if l.PollInterval <= 0 {
		l.PollInterval = DefaultPollInterval
	}
	return l
}
