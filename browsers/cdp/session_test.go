package cdp

import (
	"testing"

	"github.com/chromedp/cdproto/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeHandlesKeepsFirstSeenOrder(t *testing.T) {
	infos := []*target.Info{
		{TargetID: "new", Type: "page"},
		{TargetID: "worker", Type: "service_worker"},
		{TargetID: "first", Type: "page"},
		{TargetID: "bg", Type: "background_page"},
	}
	merged := mergeHandles([]target.ID{"first", "closed"}, infos)
	assert.Equal(t, []target.ID{"first", "new"}, merged)
}

func TestMergeHandlesWithNoPages(t *testing.T) {
	assert.Empty(t, mergeHandles([]target.ID{"a"}, nil))
}

func TestFunctionExpression(t *testing.T) {
	expr, err := FunctionExpression("return arguments[0];", []interface{}{"x", 2}, false)
	require.NoError(t, err)
	assert.Equal(t, "(function() {return arguments[0];\n}).apply(null, [\"x\",2])", expr)

	expr, err = FunctionExpression("return 1;", nil, false)
	require.NoError(t, err)
	assert.Contains(t, expr, ".apply(null, [])")
}

func TestFunctionExpressionAsync(t *testing.T) {
	expr, err := FunctionExpression("arguments[0](42);", nil, true)
	require.NoError(t, err)
	assert.Contains(t, expr, "new Promise(function(resolve)")
	assert.Contains(t, expr, "[].concat([resolve])")
}

func TestFunctionExpressionRejectsUnencodableArgs(t *testing.T) {
	_, err := FunctionExpression("", []interface{}{make(chan int)}, false)
	assert.Error(t, err)
}

func TestParseProduct(t *testing.T) {
	for _, p := range []struct {
		product, userAgent, name, version string
	}{
		{"Chrome/120.0.6099.109", "Mozilla/5.0 Chrome/120.0.6099.109 Safari/537.36", "chrome", "120.0.6099.109"},
		{"HeadlessChrome/114.0.5735.90", "", "chrome", "114.0.5735.90"},
		{"Chrome/121.0.6167.85", "Mozilla/5.0 Chrome/121.0.6167.85 Safari/537.36 Edg/121.0.2277.83", "msedge", "121.0.2277.83"},
	} {
		t.Run(p.product, func(t *testing.T) {
			name, version := ParseProduct(p.product, p.userAgent)
			assert.Equal(t, p.name, name)
			assert.Equal(t, p.version, version)
		})
	}
}

func TestAllocatorOptions(t *testing.T) {
	base := len(AllocatorOptions(Options{ExtensionDir: "/ext"}))
	all := AllocatorOptions(Options{ExtensionDir: "/ext", ExecPath: "/bin/edge", UserDataDir: "/tmp/p", Insecure: true})
	assert.Equal(t, base+3, len(all))
}
