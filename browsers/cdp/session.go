// Package cdp implements browsers.Session over the Chrome DevTools Protocol, for Chromium-based
// browsers that are driven without a WebDriver server.
package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/adblockplus/extension-contract-tests/browsers"
)

// Options describe how to launch the browser.
type Options struct {
	ExecPath     string
	ExtensionDir string
	UserDataDir  string
	Insecure     bool
	// Cleanup is called after the browser has quit.
	Cleanup func()
}

type tab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Session drives one browser process. Window handles are DevTools target IDs of page targets,
// listed in the order they were first seen.
type Session struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	cleanup       func()

	lock    sync.Mutex
	order   []target.ID
	tabs    map[target.ID]tab
	current target.ID
}

// AllocatorOptions returns the command-line options used to launch the browser with the extension
// loaded.
func AllocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", false),
		chromedp.Flag("disable-extensions", false),
		chromedp.Flag("load-extension", opts.ExtensionDir),
		chromedp.Flag("disable-extensions-except", opts.ExtensionDir),
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
	}
	if opts.Insecure {
		allocOpts = append(allocOpts, chromedp.Flag("ignore-certificate-errors", true))
	}
	return allocOpts
}

// Start launches the browser and attaches to its initial window.
func Start(ctx context.Context, opts Options) (*Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), AllocatorOptions(opts)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	started := make(chan error, 1)
	go func() { started <- chromedp.Run(browserCtx) }()
	select {
	case err := <-started:
		if err != nil {
			browserCancel()
			allocCancel()
			return nil, fmt.Errorf("launching browser: %w", err)
		}
	case <-ctx.Done():
		browserCancel()
		allocCancel()
		return nil, ctx.Err()
	}

	first := chromedp.FromContext(browserCtx).Target.TargetID
	return &Session{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		cleanup:       opts.Cleanup,
		order:         []target.ID{first},
		tabs:          map[target.ID]tab{first: {ctx: browserCtx}},
		current:       first,
	}, nil
}

func (s *Session) WindowHandles(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	infos, err := chromedp.Targets(s.browserCtx)
	if err != nil {
		return nil, err
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.order = mergeHandles(s.order, infos)
	handles := make([]string, 0, len(s.order))
	for _, id := range s.order {
		handles = append(handles, string(id))
	}
	return handles, nil
}

// mergeHandles keeps known page targets in their original order, drops vanished ones and appends
// new ones.
func mergeHandles(order []target.ID, infos []*target.Info) []target.ID {
	live := make(map[target.ID]bool)
	for _, info := range infos {
		if info.Type == "page" {
			live[info.TargetID] = true
		}
	}
	var merged []target.ID
	seen := make(map[target.ID]bool)
	for _, id := range order {
		if live[id] {
			merged = append(merged, id)
			seen[id] = true
		}
	}
	for _, info := range infos {
		if info.Type == "page" && !seen[info.TargetID] {
			merged = append(merged, info.TargetID)
			seen[info.TargetID] = true
		}
	}
	return merged
}

func (s *Session) SwitchWindow(ctx context.Context, handle string) error {
	handles, err := s.WindowHandles(ctx)
	if err != nil {
		return err
	}
	for _, h := range handles {
		if h == handle {
			s.lock.Lock()
			s.current = target.ID(handle)
			s.lock.Unlock()
			return nil
		}
	}
	return fmt.Errorf("%w: %s", browsers.ErrWindowGone, handle)
}

// executor returns a context that sends commands to the current window, attaching to it first if
// needed.
func (s *Session) executor(ctx context.Context) (context.Context, error) {
	s.lock.Lock()
	id := s.current
	t, ok := s.tabs[id]
	if !ok {
		tabCtx, cancel := chromedp.NewContext(s.browserCtx, chromedp.WithTargetID(id))
		t = tab{ctx: tabCtx, cancel: cancel}
		s.tabs[id] = t
	}
	s.lock.Unlock()

	if !ok {
		if err := chromedp.Run(t.ctx); err != nil {
			s.lock.Lock()
			delete(s.tabs, id)
			s.lock.Unlock()
			t.cancel()
			return nil, fmt.Errorf("%w: %v", browsers.ErrWindowGone, err)
		}
	}
	c := chromedp.FromContext(t.ctx)
	if c == nil || c.Target == nil {
		return nil, fmt.Errorf("%w: %s", browsers.ErrWindowGone, id)
	}
	return cdp.WithExecutor(ctx, c.Target), nil
}

func (s *Session) ExecuteScript(ctx context.Context, script string, args ...interface{}) (interface{}, error) {
	expr, err := FunctionExpression(script, args, false)
	if err != nil {
		return nil, err
	}
	return s.evaluate(ctx, expr)
}

func (s *Session) ExecuteAsyncScript(ctx context.Context, script string, args ...interface{}) (interface{}, error) {
	expr, err := FunctionExpression(script, args, true)
	if err != nil {
		return nil, err
	}
	return s.evaluate(ctx, expr)
}

// FunctionExpression wraps a function body into an expression that calls it with args. For async
// scripts the expression is a promise resolved by the callback passed as last argument.
func FunctionExpression(body string, args []interface{}, async bool) (string, error) {
	if args == nil {
		args = []interface{}{}
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("encoding script arguments: %w", err)
	}
	if async {
		return fmt.Sprintf("new Promise(function(resolve) { (function() {%s\n}).apply(null, %s.concat([resolve])); })",
			body, encoded), nil
	}
	return fmt.Sprintf("(function() {%s\n}).apply(null, %s)", body, encoded), nil
}

func (s *Session) evaluate(ctx context.Context, expr string) (interface{}, error) {
	execCtx, err := s.executor(ctx)
	if err != nil {
		return nil, err
	}
	res, exception, err := cdpruntime.Evaluate(expr).
		WithReturnByValue(true).
		WithAwaitPromise(true).
		Do(execCtx)
	if err != nil {
		return nil, err
	}
	if exception != nil {
		msg := exception.Text
		if exception.Exception != nil && exception.Exception.Description != "" {
			msg = exception.Exception.Description
		}
		return nil, errors.New("script error: " + msg)
	}
	if res == nil || len(res.Value) == 0 {
		return nil, nil
	}
	var value interface{}
	if err := json.Unmarshal([]byte(res.Value), &value); err != nil {
		return nil, fmt.Errorf("decoding script result: %w", err)
	}
	return value, nil
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	execCtx, err := s.executor(ctx)
	if err != nil {
		return err
	}
	return chromedp.Navigate(url).Do(execCtx)
}

func (s *Session) CloseWindow(ctx context.Context) error {
	s.lock.Lock()
	id := s.current
	s.lock.Unlock()
	if err := s.SwitchWindow(ctx, string(id)); err != nil {
		return err
	}
	execCtx, err := s.executor(ctx)
	if err != nil {
		return err
	}
	if err := page.Close().Do(execCtx); err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	if t, ok := s.tabs[id]; ok && t.cancel != nil {
		t.cancel()
	}
	delete(s.tabs, id)
	return nil
}

func (s *Session) BrowserInfo(ctx context.Context) (string, string, error) {
	c := chromedp.FromContext(s.browserCtx)
	if c == nil || c.Browser == nil {
		return "", "", errors.New("browser is not running")
	}
	_, product, _, userAgent, _, err := browser.GetVersion().Do(cdp.WithExecutor(ctx, c.Browser))
	if err != nil {
		return "", "", err
	}
	name, version := ParseProduct(product, userAgent)
	return name, version, nil
}

// ParseProduct splits a DevTools product string such as "Chrome/120.0.6099.109" into name and
// version. Edge reports a Chrome product, so its user agent token takes precedence.
func ParseProduct(product, userAgent string) (name, version string) {
	for _, token := range strings.Fields(userAgent) {
		if v, ok := strings.CutPrefix(token, "Edg/"); ok {
			return "msedge", v
		}
	}
	name, version, _ = strings.Cut(product, "/")
	name = strings.TrimPrefix(name, "Headless")
	return strings.ToLower(name), version
}

func (s *Session) Quit(ctx context.Context) error {
	err := chromedp.Cancel(s.browserCtx)
	s.browserCancel()
	s.allocCancel()
	if s.cleanup != nil {
		s.cleanup()
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}
