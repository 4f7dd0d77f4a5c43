package binaries

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/adblockplus/extension-contract-tests/browsers"
	"github.com/adblockplus/extension-contract-tests/browsers/browserstest"
)

func downloadingModule() *browserstest.DownloadingModule {
	return &browserstest.DownloadingModule{
		Module: browserstest.Module{PlatformName: "gecko"},
		Oldest: "115.0",
		Latest: "131.0.3",
	}
}

func requirePath(t *testing.T, spec Spec) string {
	t.Helper()
	path, err := spec.GetPath(context.Background())
	require.NoError(t, err)
	return path
}

func TestInstalledOverrideAlwaysUsesSystemBrowser(t *testing.T) {
	modules := []browsers.Module{
		&browserstest.Module{Installed: false},
		&browserstest.Module{Installed: true},
		downloadingModule(),
	}
	for _, m := range modules {
		specs := Resolve(m, "firefox", "installed", nil)
		require.Len(t, specs, 1)
		assert.Equal(t, "", requirePath(t, specs[0]))
		assert.False(t, specs[0].Version.IsDefined())
	}
}

func TestPathOverrideIsLiteral(t *testing.T) {
	for _, m := range []browsers.Module{&browserstest.Module{}, downloadingModule()} {
		specs := Resolve(m, "firefox", "path:/x/y", nil)
		require.Len(t, specs, 1)
		assert.Equal(t, "/x/y", requirePath(t, specs[0]))
	}
	specs := Resolve(&browserstest.Module{}, "firefox", "path:/with:colon path", nil)
	require.Len(t, specs, 1)
	assert.Equal(t, "/with:colon path", requirePath(t, specs[0]))
}

func TestDownloadOverrideDelegatesToModule(t *testing.T) {
	m := downloadingModule()
	specs := Resolve(m, "firefox", "download:128.0", nil)
	require.Len(t, specs, 1)
	assert.Equal(t, "/cache/gecko-128.0/bin", requirePath(t, specs[0]))
	assert.Equal(t, []string{"128.0"}, m.Ensured)
}

func TestDownloadOverrideWithoutSupportWarnsAndFallsThrough(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	m := &browserstest.Module{Installed: true}

	specs := Resolve(m, "edge", "download:120", zap.New(core))
	require.Len(t, specs, 1)
	assert.Equal(t, "", requirePath(t, specs[0]))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "edge", logs.All()[0].ContextMap()["browser"])

	specs = Resolve(&browserstest.Module{Installed: false}, "edge", "download:120", nil)
	assert.Empty(t, specs)
}

func TestUnrecognizedOverrideFallsThrough(t *testing.T) {
	specs := Resolve(&browserstest.Module{Installed: true}, "edge", "whatever", nil)
	require.Len(t, specs, 1)
	assert.Equal(t, "", requirePath(t, specs[0]))

	specs = Resolve(downloadingModule(), "firefox", "bogus:1", nil)
	assert.Len(t, specs, 2)
}

func TestModuleWithoutDownloads(t *testing.T) {
	specs := Resolve(&browserstest.Module{Installed: true}, "edge", "", nil)
	require.Len(t, specs, 1)
	assert.Equal(t, "", requirePath(t, specs[0]))

	specs = Resolve(&browserstest.Module{Installed: false}, "edge", "", nil)
	assert.Empty(t, specs)
}

func TestModuleWithDownloadsGetsOldestAndLatest(t *testing.T) {
	m := downloadingModule()
	specs := Resolve(m, "firefox", "", nil)
	require.Len(t, specs, 2)

	assert.Equal(t, VersionOldest, specs[0].Version.StringValue())
	assert.Equal(t, VersionLatest, specs[1].Version.StringValue())
	assert.Empty(t, m.Ensured, "downloads must wait until GetPath is called")

	assert.Equal(t, "/cache/gecko-115.0/bin", requirePath(t, specs[0]))
	assert.Equal(t, "/cache/gecko-131.0.3/bin", requirePath(t, specs[1]))
	assert.Equal(t, []string{"115.0", "131.0.3"}, m.Ensured)
}

func TestDescription(t *testing.T) {
	assert.Equal(t, "Edge", Description("edge", installed()))
	specs := Resolve(downloadingModule(), "firefox", "", nil)
	assert.Equal(t, "Firefox (oldest)", Description("firefox", specs[0]))
	assert.Equal(t, "Firefox (latest)", Description("firefox", specs[1]))
}
