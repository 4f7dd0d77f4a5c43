package main

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adblockplus/extension-contract-tests/binaries"
	"github.com/adblockplus/extension-contract-tests/framework"
)

func TestListCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"list"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, `Browsers:
  chromium (override with CHROMIUM_BINARY)
  edge (override with EDGE_BINARY)
  firefox (override with FIREFOX_BINARY)
Suites:
  testpages
`, out.String())
}

func TestRootHelpDescribesBinaryOverrides(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())
	for _, form := range []string{
		binaries.OverrideInstalled,
		binaries.OverridePathPrefix + "<file>",
		binaries.OverrideDownloadPrefix + "<version>",
	} {
		assert.Contains(t, out.String(), form)
	}
	assert.NotContains(t, out.String(), "version prefix")
}

func TestRootCommandRejectsBadFilter(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--run", "("})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid regex")
}

func TestConsoleTestLogger(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = noColor }()

	id := framework.TestID{Path: []string{"Chromium", "opens page"}}
	debug := framework.CapturedOutput{{Time: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), Message: "clicked"}}

	t.Run("failure with debug output", func(t *testing.T) {
		var out bytes.Buffer
		logger := &ConsoleTestLogger{Out: &out, DebugOutputOnFailure: true}
		logger.TestStarted(id)
		logger.TestError(id, errors.New("line one\nline two"))
		logger.TestFinished(id, true, debug)

		s := out.String()
		assert.Contains(t, s, "[Chromium/opens page]\n  line one\n  line two\n  FAILED: Chromium/opens page\n")
		assert.Contains(t, s, "    DEBUG [")
		assert.Contains(t, s, "clicked")
	})

	t.Run("success hides debug output by default", func(t *testing.T) {
		var out bytes.Buffer
		logger := &ConsoleTestLogger{Out: &out, DebugOutputOnFailure: true}
		logger.TestFinished(id, false, debug)
		assert.Empty(t, out.String())
	})

	t.Run("skipped", func(t *testing.T) {
		var out bytes.Buffer
		logger := &ConsoleTestLogger{Out: &out}
		logger.TestSkipped(id, "")
		logger.TestSkipped(id, "no test pages")
		assert.Equal(t, "  SKIPPED: Chromium/opens page\n  SKIPPED: Chromium/opens page (no test pages)\n", out.String())
	})
}
