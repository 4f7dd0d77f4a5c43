package framework

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const timestampFormat = "2006-01-02 15:04:05.000"

// Logger is the Printf-style debug logger handed to test code.
type Logger interface {
	Printf(message string, args ...interface{})
}

type CapturedMessage struct {
	Time    time.Time
	Message string
}

type CapturedOutput []CapturedMessage

// CapturingLogger keeps debug messages in memory until the test finishes. It accepts both Printf
// calls and structured zap entries.
type CapturingLogger struct {
	output []CapturedMessage
	lock   sync.Mutex
}

func (l *CapturingLogger) Printf(message string, args ...interface{}) {
	l.add(time.Now(), fmt.Sprintf(message, args...))
}

func (l *CapturingLogger) add(t time.Time, message string) {
	l.lock.Lock()
	l.output = append(l.output, CapturedMessage{Time: t, Message: message})
	l.lock.Unlock()
}

// Zap returns a logger that writes every entry, at any level, into the captured output.
func (l *CapturingLogger) Zap() *zap.Logger {
	return zap.New(&captureCore{target: l})
}

func (l *CapturingLogger) Output() CapturedOutput {
	l.lock.Lock()
	ret := append([]CapturedMessage(nil), l.output...)
	l.lock.Unlock()
	return ret
}

func (output CapturedOutput) Dump(dest io.Writer, prefix string) {
	for _, m := range output {
		fmt.Fprintf(dest, "%s[%s] %s\n",
			prefix,
			m.Time.Format(timestampFormat),
			m.Message,
		)
	}
}

type captureCore struct {
	target *CapturingLogger
	fields []zapcore.Field
}

func (c *captureCore) Enabled(zapcore.Level) bool { return true }

func (c *captureCore) With(fields []zapcore.Field) zapcore.Core {
	return &captureCore{target: c.target, fields: append(append([]zapcore.Field(nil), c.fields...), fields...)}
}

func (c *captureCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	return checked.AddCore(entry, c)
}

// Write renders the entry as "LEVEL message key=value ..." with keys in sorted order.
func (c *captureCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}
	keys := make([]string, 0, len(enc.Fields))
	for k := range enc.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(entry.Level.CapitalString())
	b.WriteByte(' ')
	b.WriteString(entry.Message)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, enc.Fields[k])
	}
	c.target.add(entry.Time, b.String())
	return nil
}

func (c *captureCore) Sync() error { return nil }
