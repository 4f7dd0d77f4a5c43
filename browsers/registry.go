package browsers

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Env is what a Factory receives when a module is loaded.
type Env struct {
	// CacheDir is where downloaded browsers are kept.
	CacheDir   string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Factory creates a module. It is called once per run for every configured browser.
type Factory func(env Env) (Module, error)

// Loaded is a module together with the name it was registered under.
type Loaded struct {
	Name   string
	Module Module
}

// Registry maps browser names to module factories.
type Registry struct {
	factories map[string]Factory
	lock      sync.Mutex
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name, replacing any earlier registration.
func (r *Registry) Register(name string, f Factory) {
	r.lock.Lock()
	r.factories[name] = f
	r.lock.Unlock()
}

// Names returns all registered names in sorted order.
func (r *Registry) Names() []string {
	r.lock.Lock()
	defer r.lock.Unlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Load creates the modules with the given names, in that order. An unknown name or a failing
// factory is an error.
func (r *Registry) Load(names []string, env Env) ([]Loaded, error) {
	if env.Logger == nil {
		env.Logger = zap.NewNop()
	}
	if env.HTTPClient == nil {
		env.HTTPClient = http.DefaultClient
	}
	ret := make([]Loaded, 0, len(names))
	for _, name := range names {
		r.lock.Lock()
		f, ok := r.factories[name]
		r.lock.Unlock()
		if !ok {
			return nil, fmt.Errorf("unknown browser %q (registered: %v)", name, r.Names())
		}
		m, err := f(Env{
			CacheDir:   env.CacheDir,
			HTTPClient: env.HTTPClient,
			Logger:     env.Logger.Named(name),
		})
		if err != nil {
			return nil, fmt.Errorf("loading browser %q: %w", name, err)
		}
		ret = append(ret, Loaded{Name: name, Module: m})
	}
	return ret, nil
}
