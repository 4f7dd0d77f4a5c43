package browsers_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adblockplus/extension-contract-tests/browsers"
	"github.com/adblockplus/extension-contract-tests/browsers/browserstest"
)

func TestRegistryLoadsInConfiguredOrder(t *testing.T) {
	r := browsers.NewRegistry()
	r.Register("firefox", func(browsers.Env) (browsers.Module, error) {
		return &browserstest.Module{PlatformName: "gecko"}, nil
	})
	r.Register("chromium", func(env browsers.Env) (browsers.Module, error) {
		assert.Equal(t, "/tmp/cache", env.CacheDir)
		assert.NotNil(t, env.Logger)
		return &browserstest.Module{PlatformName: "chrome"}, nil
	})

	loaded, err := r.Load([]string{"chromium", "firefox"}, browsers.Env{CacheDir: "/tmp/cache"})
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "chromium", loaded[0].Name)
	assert.Equal(t, "chrome", loaded[0].Module.Platform())
	assert.Equal(t, "firefox", loaded[1].Name)
	assert.Equal(t, []string{"chromium", "firefox"}, r.Names())
}

func TestRegistryUnknownName(t *testing.T) {
	r := browsers.NewRegistry()
	_, err := r.Load([]string{"netscape"}, browsers.Env{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "netscape")
}

func TestRegistryFactoryError(t *testing.T) {
	r := browsers.NewRegistry()
	r.Register("broken", func(browsers.Env) (browsers.Module, error) {
		return nil, errors.New("nope")
	})
	_, err := r.Load([]string{"broken"}, browsers.Env{})
	assert.Error(t, err)
}

func TestCapabilitiesAreDetectedByInterface(t *testing.T) {
	var plain browsers.Module = &browserstest.Module{}
	var downloading browsers.Module = &browserstest.DownloadingModule{}

	_, ok := plain.(browsers.Downloader)
	assert.False(t, ok)
	_, ok = downloading.(browsers.Downloader)
	assert.True(t, ok)
	_, ok = plain.(browsers.Shutdowner)
	assert.True(t, ok)
}

func TestIsWindowGone(t *testing.T) {
	s := browserstest.NewSession(browserstest.Window{Handle: "a"})
	err := s.SwitchWindow(context.Background(), "missing")
	assert.True(t, browsers.IsWindowGone(err))
	assert.False(t, browsers.IsWindowGone(errors.New("other")))
}
