package e2etests

import (
	"context"
	"errors"
	"fmt"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/adblockplus/extension-contract-tests/binaries"
	"github.com/adblockplus/extension-contract-tests/browsers"
	"github.com/adblockplus/extension-contract-tests/catalog"
	"github.com/adblockplus/extension-contract-tests/config"
	"github.com/adblockplus/extension-contract-tests/devenv"
	"github.com/adblockplus/extension-contract-tests/extension"
	"github.com/adblockplus/extension-contract-tests/framework"
)

// BaselineCase is the name of the case every group runs before any suite.
const BaselineCase = "extension loaded without errors"

// ErrNoDelayedStart is returned by Run when the host runner provides no way to start the run after
// all groups have been defined.
var ErrNoDelayedStart = errors.New("a delayed start callback is required")

// Host is the test runner groups are registered with. framework.Runner implements it.
type Host interface {
	Describe(name string, define func(*framework.Group))
}

// Options are the collaborators of an Orchestrator.
type Options struct {
	Config      *config.Config
	Browsers    *browsers.Registry
	Suites      *SuiteRegistry
	Provisioner *devenv.Provisioner
	Catalog     catalog.Fetcher
	Locator     extension.Locator
	Logger      *zap.Logger
}

// Orchestrator defines one group per browser binary and starts the run.
type Orchestrator struct {
	opts   Options
	logger *zap.Logger
}

func NewOrchestrator(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Catalog.Logger == nil {
		opts.Catalog.Logger = logger
	}
	return &Orchestrator{opts: opts, logger: logger}
}

// Run fetches the page catalog while loading the configured browser modules and suites, defines
// the groups on host, and then calls start. Configuration errors are returned before anything is
// defined.
func (o *Orchestrator) Run(ctx context.Context, host Host, start func(context.Context)) error {
	if start == nil {
		return ErrNoDelayedStart
	}
	cfg := o.opts.Config
	insecure := bool(cfg.TestPagesInsecure)

	env := &suiteEnv{testPagesURL: cfg.TestPagesURL}
	var loaded []browsers.Loaded
	var suites []NamedSuite

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		env.pageTests = o.opts.Catalog.Fetch(gctx, cfg.TestPagesURL, insecure)
		return nil
	})
	g.Go(func() error {
		var err error
		loaded, err = o.opts.Browsers.Load(cfg.Browsers, browsers.Env{
			CacheDir: cfg.BrowserCacheDir,
			Logger:   o.logger,
		})
		return err
	})
	g.Go(func() error {
		var err error
		suites, err = o.opts.Suites.Load(cfg.Suites)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	for _, l := range loaded {
		specs := binaries.Resolve(l.Module, l.Name, cfg.BinaryOverride(l.Name), o.logger)
		if len(specs) == 0 {
			o.logger.Info("Skipping browser, no binary available", zap.String("browser", l.Name))
			continue
		}
		for _, spec := range specs {
			l, spec := l, spec
			host.Describe(binaries.Description(l.Name, spec), func(g *framework.Group) {
				o.defineGroup(g, l, spec, suites, env, insecure)
			})
		}
	}

	start(ctx)
	return nil
}

func (o *Orchestrator) defineGroup(
	g *framework.Group,
	l browsers.Loaded,
	spec binaries.Spec,
	suites []NamedSuite,
	env *suiteEnv,
	insecure bool,
) {
	state := &groupState{browser: l.Name}
	logger := o.logger.With(zap.String("group", g.Name()))

	g.Before(func(ctx context.Context) error {
		build := o.opts.Provisioner.Start(ctx, l.Module.Platform())
		session, err := createSession(ctx, spec, build, l.Module, insecure)
		if err != nil {
			return err
		}
		state.session = session

		name, version, err := session.BrowserInfo(ctx)
		if err != nil {
			return fmt.Errorf("reading browser version: %w", err)
		}
		logger.Info(fmt.Sprintf("Browser: %s %s", name, version))

		location, err := o.opts.Locator.Locate(ctx, session)
		if err != nil {
			return err
		}
		state.location = location
		return nil
	})

	g.BeforeEach(func(ctx context.Context) error {
		return closeExtraWindows(ctx, state, logger)
	})

	g.It(BaselineCase, func(c *framework.Context) {
		err := extension.CheckLastError(c.Ctx(), state.session, state.location.WindowHandle)
		require.NoError(c, err)
	})

	scope := &Scope{group: g, state: state, env: env}
	for _, s := range suites {
		s.Define(scope)
	}

	g.After(func(ctx context.Context) error {
		var err error
		if state.session != nil {
			err = state.session.Quit(ctx)
			state.session = nil
		}
		if sd, ok := l.Module.(browsers.Shutdowner); ok {
			sd.Shutdown()
		}
		return err
	})
}

// closeExtraWindows closes every window except the first one and the extension's, then makes the
// first window current. Windows that cannot be closed are left alone.
func closeExtraWindows(ctx context.Context, state *groupState, logger *zap.Logger) error {
	handles, err := state.session.WindowHandles(ctx)
	if err != nil {
		return err
	}
	if len(handles) == 0 {
		return nil
	}
	defaultHandle := handles[0]
	for _, handle := range handles[1:] {
		if handle == state.location.WindowHandle {
			continue
		}
		err := state.session.SwitchWindow(ctx, handle)
		if err == nil {
			err = state.session.CloseWindow(ctx)
		}
		switch {
		case err == nil:
		case browsers.IsWindowGone(err):
			logger.Debug("Window already closed", zap.String("handle", handle))
		default:
			logger.Warn("Could not close window", zap.String("handle", handle), zap.Error(err))
		}
	}
	return state.session.SwitchWindow(ctx, defaultHandle)
}
