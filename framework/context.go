package framework

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"
)

type environment struct {
	ctx        context.Context
	results    Results
	testLogger TestLogger
	filter     Filter
}

// Context is used similarly to *testing.T. It implements require.TestingT so that standard
// assertions from assert/require can be used, has a Run method for subtests, and captures debug
// output that is passed to the TestLogger when the test finishes.
type Context struct {
	env         *environment
	id          TestID
	debugLogger CapturingLogger
	failed      bool
	skipped     bool
	skipReason  string
	errors      []error
}

// Run executes action as the root of a test run and returns the accumulated results.
func Run(
	ctx context.Context,
	filter Filter,
	testLogger TestLogger,
	action func(*Context),
) Results {
	if testLogger == nil {
		testLogger = nullTestLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	env := &environment{
		ctx:        ctx,
		filter:     filter,
		testLogger: testLogger,
	}
	c := &Context{env: env}
	c.run(action)
	return env.results
}

func (c *Context) run(action func(*Context)) {
	defer func() {
		if r := recover(); r != nil && !c.skipped {
			c.failed = true
			var addError error
			if _, ok := r.(*Context); ok {
				if len(c.errors) == 0 {
					addError = errors.New("test failed with no failure message")
				}
			} else {
				addError = fmt.Errorf("unexpected panic in test: %+v\n%s", r, string(debug.Stack()))
			}
			if addError != nil {
				c.errors = append(c.errors, addError)
				c.env.testLogger.TestError(c.id, addError)
			}
		}
		c.record()
	}()

	action(c)
}

func (c *Context) record() {
	if len(c.id.Path) == 0 {
		return
	}
	result := TestResult{TestID: c.id, Errors: c.errors, Skipped: c.skipped}
	c.env.results.Tests = append(c.env.results.Tests, result)
	if c.failed {
		c.env.results.Failures = append(c.env.results.Failures, result)
	}
}

func (c *Context) child(name string) *Context {
	return &Context{
		id:  c.id.Plus(name),
		env: c.env,
	}
}

func (c *Context) ID() TestID {
	return c.id
}

// Ctx returns the context.Context of the whole run. Blocking operations inside tests should use it.
func (c *Context) Ctx() context.Context {
	return c.env.ctx
}

// Run runs a subtest. It is skipped if the filter of this run excludes its ID.
func (c *Context) Run(name string, action func(*Context)) {
	c1 := c.child(name)

	c.env.testLogger.TestStarted(c1.id)
	if !c.env.selected(c1.id) {
		c.env.testLogger.TestSkipped(c1.id, "excluded by filter parameters")
		return
	}
	c1.run(action)
	c1.finish()
}

func (c *Context) finish() {
	if c.skipped {
		c.env.testLogger.TestSkipped(c.id, c.skipReason)
	} else {
		c.env.testLogger.TestFinished(c.id, c.failed, c.debugLogger.Output())
	}
}

func (c *Context) Errorf(format string, args ...interface{}) {
	c.failed = true
	err := fmt.Errorf(format, args...)
	c.errors = append(c.errors, err)
	c.env.testLogger.TestError(c.id, err)
}

func (c *Context) FailNow() {
	panic(c)
}

func (c *Context) Skip() {
	c.skipped = true
	panic(c)
}

func (c *Context) SkipWithReason(reason string) {
	c.skipReason = reason
	c.Skip()
}

func (c *Context) Debug(message string, args ...interface{}) {
	c.debugLogger.Printf(message, args...)
}

func (c *Context) DebugLogger() Logger {
	return &c.debugLogger
}

// Zap returns a structured logger whose entries become part of this test's debug output.
func (c *Context) Zap() *zap.Logger {
	return c.debugLogger.Zap()
}

func (e *environment) selected(id TestID) bool {
	return e.filter == nil || e.filter(id)
}
