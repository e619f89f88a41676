package log

import (
	"io"
	"regexp"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/telemetry/testutils"
)

func newHookedLogger(level logrus.Level, filter *regexp.Regexp) (*Logger, *testutils.SimpleLogrusHook) {
	hook := &testutils.SimpleLogrusHook{HookedLevels: logrus.AllLevels}
	lg := logrus.New()
	lg.SetOutput(io.Discard)
	lg.SetLevel(level)
	lg.AddHook(hook)
	return New(lg, filter), hook
}

func TestLoggerCategoryField(t *testing.T) {
	t.Parallel()

	l, hook := newHookedLogger(logrus.DebugLevel, nil)
	l.Warnf("tracing", "unexpected %s", "payload")

	entries := hook.Drain()
	require.Len(t, entries, 1)
	assert.Equal(t, "unexpected payload", entries[0].Message)
	assert.Equal(t, "tracing", entries[0].Data["category"])
	assert.Equal(t, logrus.WarnLevel, entries[0].Level)
}

func TestLoggerLevelAndFilter(t *testing.T) {
	t.Parallel()

	l, hook := newHookedLogger(logrus.InfoLevel, regexp.MustCompile(`^cdp`))
	l.Debugf("cdp:recv", "dropped by level")
	l.Infof("smoke", "dropped by filter")
	l.Infof("cdp:send", "kept")

	entries := hook.Drain()
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0].Message)
}

func TestLoggerSetLevel(t *testing.T) {
	t.Parallel()

	l, _ := newHookedLogger(logrus.InfoLevel, nil)
	assert.False(t, l.DebugMode())
	require.NoError(t, l.SetLevel("debug"))
	assert.True(t, l.DebugMode())
	require.Error(t, l.SetLevel("loud"))
}

func TestNilLoggerIsSilent(t *testing.T) {
	t.Parallel()

	var l *Logger
	assert.NotPanics(t, func() { l.Errorf("inspector", "nothing") })
	assert.NotPanics(t, func() { NewNullLogger().Errorf("inspector", "nothing") })
}
