package e2etests

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/adblockplus/extension-contract-tests/binaries"
	"github.com/adblockplus/extension-contract-tests/browsers"
	"github.com/adblockplus/extension-contract-tests/devenv"
)

// createSession waits for both the browser binary and the extension build, then launches the
// browser with the extension loaded.
func createSession(
	ctx context.Context,
	spec binaries.Spec,
	build *devenv.Build,
	module browsers.Module,
	insecure bool,
) (browsers.Session, error) {
	var binaryPath, devenvPath string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		path, err := spec.GetPath(gctx)
		if err != nil {
			return fmt.Errorf("getting browser binary: %w", err)
		}
		binaryPath = path
		return nil
	})
	g.Go(func() error {
		path, err := build.Wait(gctx)
		if err != nil {
			return err
		}
		devenvPath = path
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	session, err := module.NewSession(ctx, binaryPath, devenvPath, insecure)
	if err != nil {
		return nil, fmt.Errorf("starting browser: %w", err)
	}
	return session, nil
}
