package framework

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
)

// Hook is a setup or teardown step of a Group. A non-nil error fails the hook.
type Hook func(ctx context.Context) error

// Group is a named collection of test cases that share setup and teardown hooks.
//
// Before hooks run once before the first case, BeforeEach hooks run before every case, and After
// hooks run once after the last case. If a Before hook fails, the remaining Before hooks are not run
// and every selected case of the group is reported as failed with the setup error; After hooks are
// run regardless.
type Group struct {
	name       string
	before     []Hook
	beforeEach []Hook
	after      []Hook
	cases      []groupCase
}

type groupCase struct {
	name   string
	action func(*Context)
}

// ErrSetupFailed is wrapped by the error reported for cases whose group setup failed.
var ErrSetupFailed = errors.New(`"before all" hook failed`)

func NewGroup(name string) *Group {
	return &Group{name: name}
}

func (g *Group) Name() string { return g.name }

func (g *Group) Before(h Hook) { g.before = append(g.before, h) }

func (g *Group) BeforeEach(h Hook) { g.beforeEach = append(g.beforeEach, h) }

func (g *Group) After(h Hook) { g.after = append(g.after, h) }

// It adds a test case to the group. Cases run in the order they were added.
func (g *Group) It(name string, action func(*Context)) {
	g.cases = append(g.cases, groupCase{name: name, action: action})
}

// CaseNames returns the names of the cases in the group.
func (g *Group) CaseNames() []string {
	names := make([]string, 0, len(g.cases))
	for _, tc := range g.cases {
		names = append(names, tc.name)
	}
	return names
}

// RunGroup runs all hooks and selected cases of g as a subtest of c.
func (c *Context) RunGroup(g *Group) {
	gc := c.child(g.name)

	var selected []groupCase
	for _, tc := range g.cases {
		if c.env.selected(gc.id.Plus(tc.name)) {
			selected = append(selected, tc)
		}
	}
	c.env.testLogger.TestStarted(gc.id)
	if len(selected) == 0 {
		c.env.testLogger.TestSkipped(gc.id, "no cases selected by filter parameters")
		return
	}

	ctx := c.env.ctx
	var setupErr error
	for _, h := range g.before {
		if err := runHook(ctx, h); err != nil {
			setupErr = fmt.Errorf("%w: %s", ErrSetupFailed, err)
			break
		}
	}

	for _, tc := range selected {
		tc := tc
		if setupErr != nil {
			gc.failCase(tc.name, setupErr)
			continue
		}
		gc.Run(tc.name, func(c1 *Context) {
			for _, h := range g.beforeEach {
				if err := runHook(ctx, h); err != nil {
					c1.Errorf(`"before each" hook failed: %s`, err)
					c1.FailNow()
				}
			}
			tc.action(c1)
		})
	}

	for _, h := range g.after {
		if err := runHook(ctx, h); err != nil {
			gc.failCase(`"after all" hook`, err)
		}
	}
	c.env.testLogger.TestFinished(gc.id, false, nil)
}

func (c *Context) failCase(name string, err error) {
	c1 := c.child(name)
	c.env.testLogger.TestStarted(c1.id)
	c1.failed = true
	c1.errors = append(c1.errors, err)
	c.env.testLogger.TestError(c1.id, err)
	c1.record()
	c1.finish()
}

func runHook(ctx context.Context, h Hook) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected panic in hook: %+v\n%s", r, string(debug.Stack()))
		}
	}()
	return h(ctx)
}
