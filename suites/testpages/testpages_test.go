package testpages

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adblockplus/extension-contract-tests/browsers"
	"github.com/adblockplus/extension-contract-tests/browsers/browserstest"
	"github.com/adblockplus/extension-contract-tests/config"
	"github.com/adblockplus/extension-contract-tests/devenv"
	"github.com/adblockplus/extension-contract-tests/e2etests"
	"github.com/adblockplus/extension-contract-tests/extension"
	"github.com/adblockplus/extension-contract-tests/framework"
)

const catalogHTML = `
<a class="test-link" href="filters/blocking"><h3>Blocking</h3></a>
<a class="test-link" href="filters/element-hiding"><h3>Element hiding</h3></a>`

func runSuite(t *testing.T, catalogURL string, session *browserstest.Session) framework.Results {
	registry := browsers.NewRegistry()
	registry.Register("fake", func(browsers.Env) (browsers.Module, error) {
		return &browserstest.Module{PlatformName: "chrome", Installed: true, Session: session}, nil
	})
	suites := e2etests.NewSuiteRegistry()
	suites.Register(Name, Define)

	o := e2etests.NewOrchestrator(e2etests.Options{
		Config: &config.Config{
			TestPagesURL: catalogURL,
			SkipBuild:    true,
			DevenvDir:    "/work",
			Browsers:     []string{"fake"},
			Suites:       []string{Name},
		},
		Browsers:    registry,
		Suites:      suites,
		Provisioner: devenv.NewProvisioner("/work", true, nil, nil),
		Locator:     extension.Locator{Timeout: 200 * time.Millisecond, PollInterval: 10 * time.Millisecond},
	})
	runner := framework.NewRunner(nil, nil)
	require.NoError(t, o.Run(context.Background(), runner, runner.Start))
	return runner.Results()
}

func newSession() *browserstest.Session {
	return browserstest.NewSession(
		browserstest.Window{Handle: "w-blank", Origin: "null", URL: "about:blank"},
		browserstest.Window{Handle: "w-ext", Origin: "chrome-extension://abc", URL: "chrome-extension://abc/first-run.html"},
	)
}

func TestOpensEveryCatalogPage(t *testing.T) {
	handler := httphelpers.HandlerWithResponse(200, http.Header{"Content-Type": []string{"text/html"}}, []byte(catalogHTML))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		session := newSession()
		results := runSuite(t, server.URL+"/en/", session)

		assert.True(t, results.OK(), "failures: %v", results.Failures)
		for _, title := range []string{"Blocking", "Element hiding"} {
			_, found := results.Find("Fake", title)
			assert.True(t, found, title)
		}
		assert.Contains(t, session.Navigated(), "w-blank "+server.URL+"/en/filters/blocking")
		assert.Contains(t, session.Navigated(), "w-blank "+server.URL+"/en/filters/element-hiding")
	})
}

func TestDuplicateTitlesGetDistinctCases(t *testing.T) {
	body := `<a class="test-link" href="filters/blocking"><h3>Blocking</h3></a>
<a class="test-link" href="snippets/blocking"><h3>Blocking</h3></a>
<a class="test-link" href="filters/element-hiding"><h3>Element hiding</h3></a>`
	handler := httphelpers.HandlerWithResponse(200, http.Header{"Content-Type": []string{"text/html"}}, []byte(body))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		results := runSuite(t, server.URL+"/en/", newSession())

		assert.True(t, results.OK(), "failures: %v", results.Failures)
		for _, name := range []string{"Blocking (/en/filters/blocking)", "Blocking (/en/snippets/blocking)", "Element hiding"} {
			_, found := results.Find("Fake", name)
			assert.True(t, found, name)
		}
		_, found := results.Find("Fake", "Blocking")
		assert.False(t, found)
	})
}

func TestSkipsWithoutCatalog(t *testing.T) {
	httphelpers.WithServer(httphelpers.HandlerWithStatus(404), func(server *httptest.Server) {
		results := runSuite(t, server.URL+"/en/", newSession())

		assert.True(t, results.OK())
		r, found := results.Find("Fake", "test pages catalog is available")
		require.True(t, found)
		assert.True(t, r.Skipped)
	})
}
