package e2etests

import (
	"context"

	"go.uber.org/zap"

	"github.com/adblockplus/extension-contract-tests/browsers"
	"github.com/adblockplus/extension-contract-tests/catalog"
	"github.com/adblockplus/extension-contract-tests/extension"
	"github.com/adblockplus/extension-contract-tests/framework"
)

// groupState is what a group's setup hook establishes for its cases.
type groupState struct {
	browser  string
	session  browsers.Session
	location extension.Location
}

// suiteEnv is shared by all groups of a run.
type suiteEnv struct {
	pageTests    []catalog.PageTest
	testPagesURL string
}

// T represents a test or subtest in an end-to-end suite.
//
// It implements the same basic functionality as Go's testing.T, outside of the Go test runner, so
// the assert and require packages can be used with a *T. It also gives access to the browser
// session of the group the test belongs to and to the page catalog.
type T struct {
	context *framework.Context
	state   *groupState
	env     *suiteEnv
}

func newT(c *framework.Context, state *groupState, env *suiteEnv) *T {
	return &T{context: c, state: state, env: env}
}

// Errorf is called by assertions to log a test failure. It does not cause an immediate exit.
func (t *T) Errorf(format string, args ...interface{}) {
	t.context.Errorf(format, args...)
}

// FailNow is called by assertions when a test should fail and immediately exit. The methods in
// the require package call FailNow.
func (t *T) FailNow() {
	t.context.FailNow()
}

// Run runs a subtest. This is equivalent to the Run method of testing.T.
func (t *T) Run(name string, action func(*T)) {
	t.context.Run(name, func(c *framework.Context) {
		action(newT(c, t.state, t.env))
	})
}

// Skip ends the test without failing it.
func (t *T) Skip(reason string) {
	t.context.SkipWithReason(reason)
}

// Debug logs some debug output for the test. The output will be passed to the test logger at
// the end of the test.
func (t *T) Debug(format string, args ...interface{}) {
	t.context.Debug(format, args...)
}

// Logger returns a structured logger for the test. Like Debug, its entries are passed to the
// test logger at the end of the test.
func (t *T) Logger() *zap.Logger {
	return t.context.Zap().With(zap.String("browser", t.state.browser))
}

// Ctx is cancelled when the test run is aborted.
func (t *T) Ctx() context.Context { return t.context.Ctx() }

// Browser is the registry name of the browser under test, e.g. "firefox".
func (t *T) Browser() string { return t.state.browser }

// Session is the automation session of the group.
func (t *T) Session() browsers.Session { return t.state.session }

// ExtensionWindow is the handle of the window showing the extension's bootstrap page.
func (t *T) ExtensionWindow() string { return t.state.location.WindowHandle }

// ExtensionOrigin is the origin of the extension's pages, e.g. "moz-extension://<uuid>".
func (t *T) ExtensionOrigin() string { return t.state.location.Origin }

// PageTests are the demonstration pages of the catalog, in document order. Empty if the catalog
// could not be retrieved.
func (t *T) PageTests() []catalog.PageTest { return t.env.pageTests }

// TestPagesURL is the base URL of the page catalog.
func (t *T) TestPagesURL() string { return t.env.testPagesURL }

// Scope is handed to every suite once per group to register its test cases.
type Scope struct {
	group *framework.Group
	state *groupState
	env   *suiteEnv
}

// It adds a test case to the group.
func (s *Scope) It(name string, action func(*T)) {
	s.group.It(name, func(c *framework.Context) {
		action(newT(c, s.state, s.env))
	})
}

// PageTests are available while cases are being registered, so suites can define one case per
// catalog page.
func (s *Scope) PageTests() []catalog.PageTest { return s.env.pageTests }

// TestPagesURL is the base URL of the page catalog.
func (s *Scope) TestPagesURL() string { return s.env.testPagesURL }

// GroupName is the name of the group the cases are added to, e.g. "Firefox (latest)".
func (s *Scope) GroupName() string { return s.group.Name() }
