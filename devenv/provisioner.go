// Package devenv builds the development bundle of the extension that is loaded into the browsers
// under test, once per target platform.
package devenv

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/alessio/shellescape"
	"go.uber.org/zap"
)

// Builder produces the bundle of one platform in dir.
type Builder interface {
	Build(ctx context.Context, platform, dir string) error
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(ctx context.Context, platform, dir string) error

func (f BuilderFunc) Build(ctx context.Context, platform, dir string) error {
	return f(ctx, platform, dir)
}

// Provisioner hands out the bundle path for each platform, running at most one build per platform
// for its lifetime.
type Provisioner struct {
	dir       string
	skipBuild bool
	builder   Builder
	logger    *zap.Logger
	builds    map[string]*Build
	lock      sync.Mutex
}

// Build is the possibly still running build of one platform.
type Build struct {
	platform string
	path     string
	done     chan struct{}
	err      error
}

// NewProvisioner creates a provisioner whose bundles live in dir. If skipBuild is true, no builds
// are run and the bundles are assumed to exist already.
func NewProvisioner(dir string, skipBuild bool, builder Builder, logger *zap.Logger) *Provisioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provisioner{
		dir:       dir,
		skipBuild: skipBuild,
		builder:   builder,
		logger:    logger,
		builds:    make(map[string]*Build),
	}
}

// Path returns the conventional bundle path of a platform: <dir>/devenv.<platform>, made absolute.
func Path(dir, platform string) string {
	p := filepath.Join(dir, "devenv."+platform)
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// Start triggers the build of platform unless one was already started, and returns it. The build
// runs in the background and is not cancelled when ctx is; only the values of ctx are kept.
func (p *Provisioner) Start(ctx context.Context, platform string) *Build {
	p.lock.Lock()
	defer p.lock.Unlock()
	if b, ok := p.builds[platform]; ok {
		return b
	}
	b := &Build{
		platform: platform,
		path:     Path(p.dir, platform),
		done:     make(chan struct{}),
	}
	p.builds[platform] = b

	if p.skipBuild || p.builder == nil {
		close(b.done)
		return b
	}
	go func() {
		defer close(b.done)
		p.logger.Info("Building extension", zap.String("platform", platform))
		if err := p.builder.Build(context.WithoutCancel(ctx), platform, p.dir); err != nil {
			b.err = fmt.Errorf("building extension for %s: %w", platform, err)
			return
		}
		p.logger.Info("Extension built", zap.String("platform", platform), zap.String("path", b.path))
	}()
	return b
}

// Provision starts the build of platform if necessary and waits for it.
func (p *Provisioner) Provision(ctx context.Context, platform string) (string, error) {
	return p.Start(ctx, platform).Wait(ctx)
}

// Wait blocks until the build has finished or ctx is done, and returns the bundle path.
func (b *Build) Wait(ctx context.Context) (string, error) {
	select {
	case <-b.done:
		if b.err != nil {
			return "", b.err
		}
		return b.path, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (b *Build) Platform() string { return b.platform }

// CommandBuilder runs an external build command. Every "{platform}" in the template is replaced
// with the platform name; the command runs in the bundle directory.
type CommandBuilder struct {
	Template string
	Logger   *zap.Logger
}

func (c CommandBuilder) Build(ctx context.Context, platform, dir string) error {
	args := strings.Fields(strings.ReplaceAll(c.Template, "{platform}", platform))
	if len(args) == 0 {
		return fmt.Errorf("empty build command")
	}
	if c.Logger != nil {
		var cmdLine commandBuilder
		cmdLine.add(args...)
		c.Logger.Debug("Running build command", zap.String("command", cmdLine.String()), zap.String("dir", dir))
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w\n%s", err, tail(output.String(), 40))
	}
	return nil
}

type commandBuilder []string

func (b *commandBuilder) add(args ...string) {
	for _, a := range args {
		*b = append(*b, shellescape.Quote(a))
	}
}

func (b commandBuilder) String() string {
	return strings.Join(b, " ")
}

func tail(s string, lines int) string {
	parts := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(parts) > lines {
		parts = parts[len(parts)-lines:]
	}
	return strings.Join(parts, "\n")
}
