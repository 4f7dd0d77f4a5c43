package e2etests

import (
	"fmt"
	"sort"
	"sync"
)

// Suite registers test cases. It is called once for every group of the run.
type Suite func(*Scope)

// NamedSuite is a suite together with the name it was registered under.
type NamedSuite struct {
	Name   string
	Define Suite
}

// SuiteRegistry maps suite names to suites.
type SuiteRegistry struct {
	suites map[string]Suite
	lock   sync.Mutex
}

func NewSuiteRegistry() *SuiteRegistry {
	return &SuiteRegistry{suites: make(map[string]Suite)}
}

// Register adds a suite under name, replacing any earlier registration.
func (r *SuiteRegistry) Register(name string, s Suite) {
	r.lock.Lock()
	r.suites[name] = s
	r.lock.Unlock()
}

// Names returns all registered names in sorted order.
func (r *SuiteRegistry) Names() []string {
	r.lock.Lock()
	defer r.lock.Unlock()
	names := make([]string, 0, len(r.suites))
	for n := range r.suites {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Load returns the suites with the given names, in that order.
func (r *SuiteRegistry) Load(names []string) ([]NamedSuite, error) {
	ret := make([]NamedSuite, 0, len(names))
	for _, name := range names {
		r.lock.Lock()
		s, ok := r.suites[name]
		r.lock.Unlock()
		if !ok {
			return nil, fmt.Errorf("unknown suite %q (registered: %v)", name, r.Names())
		}
		ret = append(ret, NamedSuite{Name: name, Define: s})
	}
	return ret, nil
}
