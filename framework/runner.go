package framework

import (
	"context"
	"sync"
)

// Runner collects groups while a test run is being defined and executes them once Start is called.
//
// Definition may involve slow asynchronous work, such as fetching remote data that decides which
// groups exist, so nothing runs until the definer explicitly starts the run.
type Runner struct {
	filter     Filter
	testLogger TestLogger
	groups     []*Group
	results    Results
	started    bool
	lock       sync.Mutex
}

func NewRunner(filter Filter, testLogger TestLogger) *Runner {
	return &Runner{filter: filter, testLogger: testLogger}
}

// Describe defines a new group. The define function is called immediately.
func (r *Runner) Describe(name string, define func(*Group)) {
	g := NewGroup(name)
	define(g)
	r.lock.Lock()
	r.groups = append(r.groups, g)
	r.lock.Unlock()
}

// Groups returns the groups defined so far.
func (r *Runner) Groups() []*Group {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]*Group(nil), r.groups...)
}

// Start runs every defined group in definition order. Only the first call has any effect.
func (r *Runner) Start(ctx context.Context) {
	r.lock.Lock()
	if r.started {
		r.lock.Unlock()
		return
	}
	r.started = true
	groups := append([]*Group(nil), r.groups...)
	r.lock.Unlock()

	results := Run(ctx, r.filter, r.testLogger, func(c *Context) {
		for _, g := range groups {
			c.RunGroup(g)
		}
	})

	r.lock.Lock()
	r.results = results
	r.lock.Unlock()
}

func (r *Runner) Results() Results {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.results
}
