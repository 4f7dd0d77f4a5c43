package framework

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCapturingLoggerCollectsPrintfAndZapEntries(t *testing.T) {
	var l CapturingLogger
	l.Printf("plain %d", 1)
	l.Zap().With(zap.String("browser", "firefox")).Warn("Slow page", zap.Int("ms", 1200))

	output := l.Output()
	require.Len(t, output, 2)
	assert.Equal(t, "plain 1", output[0].Message)
	assert.Equal(t, "WARN Slow page browser=firefox ms=1200", output[1].Message)
	assert.False(t, output[1].Time.IsZero())

	var buf bytes.Buffer
	output.Dump(&buf, "  > ")
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "  > ["))
	assert.True(t, strings.HasSuffix(lines[1], "] WARN Slow page browser=firefox ms=1200"))
}

type outputTestLogger struct {
	nullTestLogger
	output map[string]CapturedOutput
}

func (r *outputTestLogger) TestFinished(id TestID, failed bool, debugOutput CapturedOutput) {
	r.output[id.String()] = debugOutput
}

func TestContextZapOutputReachesTestLogger(t *testing.T) {
	logger := &outputTestLogger{output: map[string]CapturedOutput{}}
	Run(context.Background(), nil, logger, func(c *Context) {
		c.Run("case", func(c *Context) {
			c.Zap().Debug("Clicked")
			c.Debug("after %s", "click")
		})
	})

	output := logger.output["case"]
	require.Len(t, output, 2)
	assert.Equal(t, "DEBUG Clicked", output[0].Message)
	assert.Equal(t, "after click", output[1].Message)
}
