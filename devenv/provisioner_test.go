package devenv

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestConcurrentProvisionRunsOneBuild(t *testing.T) {
	var builds int32
	release := make(chan struct{})
	builder := BuilderFunc(func(ctx context.Context, platform, dir string) error {
		atomic.AddInt32(&builds, 1)
		<-release
		return nil
	})
	dir := t.TempDir()
	p := NewProvisioner(dir, false, builder, nil)

	const callers = 8
	paths := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path, err := p.Provision(context.Background(), "chrome")
			assert.NoError(t, err)
			paths[i] = path
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&builds))
	for _, path := range paths {
		assert.Equal(t, filepath.Join(dir, "devenv.chrome"), path)
	}
}

func TestPlatformsBuildSeparately(t *testing.T) {
	var platforms []string
	var lock sync.Mutex
	builder := BuilderFunc(func(ctx context.Context, platform, dir string) error {
		lock.Lock()
		platforms = append(platforms, platform)
		lock.Unlock()
		return nil
	})
	p := NewProvisioner(t.TempDir(), false, builder, nil)

	_, err := p.Provision(context.Background(), "chrome")
	require.NoError(t, err)
	_, err = p.Provision(context.Background(), "gecko")
	require.NoError(t, err)
	_, err = p.Provision(context.Background(), "chrome")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"chrome", "gecko"}, platforms)
}

func TestSkipBuildReturnsConventionalPath(t *testing.T) {
	builder := BuilderFunc(func(context.Context, string, string) error {
		t.Fatal("builder must not run")
		return nil
	})
	p := NewProvisioner("/work", true, builder, nil)

	path, err := p.Provision(context.Background(), "gecko")
	require.NoError(t, err)
	assert.Equal(t, "/work/devenv.gecko", path)
}

func TestBuildFailureIsSharedAndNotRetried(t *testing.T) {
	var builds int32
	builder := BuilderFunc(func(context.Context, string, string) error {
		atomic.AddInt32(&builds, 1)
		return errors.New("gulp exploded")
	})
	p := NewProvisioner(t.TempDir(), false, builder, nil)

	_, err1 := p.Provision(context.Background(), "chrome")
	_, err2 := p.Provision(context.Background(), "chrome")
	require.Error(t, err1)
	assert.Contains(t, err1.Error(), "gulp exploded")
	assert.Equal(t, err1, err2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&builds))
}

func TestWaitHonorsContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	builder := BuilderFunc(func(context.Context, string, string) error {
		<-release
		return nil
	})
	p := NewProvisioner(t.TempDir(), false, builder, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Provision(ctx, "chrome")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestCommandBuilder(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX shell utilities")
	}
	core, logs := observer.New(zap.DebugLevel)
	dir := t.TempDir()
	b := CommandBuilder{Template: "mkdir devenv.{platform}", Logger: zap.New(core)}

	require.NoError(t, b.Build(context.Background(), "chrome", dir))
	assert.DirExists(t, filepath.Join(dir, "devenv.chrome"))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "mkdir devenv.chrome", logs.All()[0].ContextMap()["command"])
}

func TestCommandBuilderReportsOutputOnFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX shell utilities")
	}
	b := CommandBuilder{Template: "false {platform}"}
	err := b.Build(context.Background(), "gecko", t.TempDir())
	require.Error(t, err)
}

func TestCommandLineQuoting(t *testing.T) {
	var cmd commandBuilder
	cmd.add("gulp", "devenv", "-t", "my platform")
	assert.Equal(t, "gulp devenv -t 'my platform'", cmd.String())
}
