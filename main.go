package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adblockplus/extension-contract-tests/browsers"
	"github.com/adblockplus/extension-contract-tests/browsers/chromium"
	"github.com/adblockplus/extension-contract-tests/browsers/edge"
	"github.com/adblockplus/extension-contract-tests/browsers/firefox"
	"github.com/adblockplus/extension-contract-tests/catalog"
	"github.com/adblockplus/extension-contract-tests/config"
	"github.com/adblockplus/extension-contract-tests/devenv"
	"github.com/adblockplus/extension-contract-tests/e2etests"
	"github.com/adblockplus/extension-contract-tests/extension"
	"github.com/adblockplus/extension-contract-tests/framework"
	"github.com/adblockplus/extension-contract-tests/logging"
	"github.com/adblockplus/extension-contract-tests/suites/testpages"
)

var errTestsFailed = errors.New("some tests failed")

type commandParams struct {
	filters  framework.RegexFilters
	debug    bool
	debugAll bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errTestsFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var params commandParams
	cmd := &cobra.Command{
		Use:   "extension-contract-tests",
		Short: "Runs the extension end-to-end suites in every configured browser",
		Long: `Runs the extension end-to-end suites in every configured browser.

Configuration comes from environment variables such as BROWSERS, SUITES, DEVENV_DIR,
SKIP_BUILD and TEST_PAGES_URL. <BROWSER>_BINARY selects a single binary for one
browser:

  installed            the browser found on the system
  path:<file>          the given executable
  download:<version>   a managed download of that version, if the browser supports it

Any other value is ignored. Browsers with managed downloads are otherwise tested in
their oldest compatible and latest versions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runTests(cmd, cfg, params)
		},
	}
	flags := cmd.Flags()
	flags.Var(&params.filters.MustMatch, "run", "regex pattern(s) to select tests to run")
	flags.Var(&params.filters.MustNotMatch, "skip", "regex pattern(s) to select tests not to run")
	flags.Var(&params.filters.Groups, "group", "regex pattern(s) to select browser groups, e.g. \"Firefox\"")
	flags.BoolVar(&params.debug, "debug", false, "enable debug logging for failed tests")
	flags.BoolVar(&params.debugAll, "debug-all", false, "enable debug logging for all tests")

	cmd.AddCommand(newListCmd())
	return cmd
}

func newBrowserRegistry() *browsers.Registry {
	r := browsers.NewRegistry()
	r.Register("chromium", chromium.New)
	r.Register("firefox", firefox.New)
	r.Register("edge", edge.New)
	return r
}

func newSuiteRegistry() *e2etests.SuiteRegistry {
	r := e2etests.NewSuiteRegistry()
	r.Register(testpages.Name, testpages.Define)
	return r
}

func runTests(cmd *cobra.Command, cfg *config.Config, params commandParams) error {
	logger := logging.NewConsole(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	defer func() { _ = logger.Sync() }()

	var builder devenv.Builder
	if !bool(cfg.SkipBuild) {
		builder = devenv.CommandBuilder{Template: cfg.BuildCommand, Logger: logger}
	}

	out := cmd.OutOrStdout()
	framework.PrintFilterDescription(out, params.filters)

	testLogger := &ConsoleTestLogger{
		Out:                  out,
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
	}
	runner := framework.NewRunner(params.filters.AsFilter, testLogger)

	orchestrator := e2etests.NewOrchestrator(e2etests.Options{
		Config:      cfg,
		Browsers:    newBrowserRegistry(),
		Suites:      newSuiteRegistry(),
		Provisioner: devenv.NewProvisioner(cfg.DevenvDir, bool(cfg.SkipBuild), builder, logger),
		Catalog:     catalog.Fetcher{Logger: logger},
		Locator:     extension.Locator{},
		Logger:      logger,
	})

	logger.Info("Running test suites",
		zap.Strings("browsers", cfg.Browsers),
		zap.Strings("suites", cfg.Suites))
	if err := orchestrator.Run(cmd.Context(), runner, runner.Start); err != nil {
		return err
	}

	fmt.Fprintln(out)
	framework.PrintResults(runner.Results())
	if !runner.Results().OK() {
		return errTestsFailed
	}
	return nil
}
