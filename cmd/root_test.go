package cmd

import (
	"bytes"
	"context"
	"os"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/telemetry/errext/exitcodes"
	"github.com/liuxd6825/telemetry/testutils"
	"github.com/liuxd6825/telemetry/ui/console"
)

// testOSFileW is an in-memory console stream that is never a terminal.
type testOSFileW struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *testOSFileW) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *testOSFileW) Fd() uintptr {
	return ^uintptr(0)
}

func (w *testOSFileW) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

type globalTestState struct {
	*globalState

	stdOut, stdErr *testOSFileW
	loggerHook     *testutils.SimpleLogrusHook

	exitCode int
	exited   bool
}

func newGlobalTestState(t *testing.T, args ...string) *globalTestState {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ts := &globalTestState{
		stdOut:     &testOSFileW{},
		stdErr:     &testOSFileW{},
		loggerHook: &testutils.SimpleLogrusHook{HookedLevels: logrus.AllLevels},
	}

	cons := console.New(ts.stdOut, ts.stdErr, false, "dumb")
	logger := cons.GetLogger()
	logger.AddHook(ts.loggerHook)

	ts.globalState = &globalState{
		ctx:            ctx,
		fs:             afero.NewMemMapFs(),
		getwd:          func() (string, error) { return "/", nil },
		args:           append([]string{"telemetry"}, args...),
		envVars:        map[string]string{},
		defaultFlags:   getDefaultFlags(),
		flags:          getDefaultFlags(),
		console:        cons,
		stdOut:         cons.Stdout,
		stdErr:         cons.Stderr,
		logger:         logger,
		fallbackLogger: logger,
		signalNotify:   func(chan<- os.Signal, ...os.Signal) {},
		signalStop:     func(chan<- os.Signal) {},
		osExit: func(code int) {
			ts.exited = true
			ts.exitCode = code
		},
	}
	return ts
}

func (ts *globalTestState) run(t *testing.T) {
	t.Helper()
	newRootCommand(ts.globalState).execute()
}

func (ts *globalTestState) errorMessages() []string {
	return ts.loggerHook.Messages(logrus.ErrorLevel, "")
}

func TestVersion(t *testing.T) {
	t.Parallel()

	ts := newGlobalTestState(t, "version")
	ts.run(t)
	assert.False(t, ts.exited)
	assert.Contains(t, ts.stdOut.String(), "telemetry v")
}

func TestInvalidLogFormat(t *testing.T) {
	t.Parallel()

	ts := newGlobalTestState(t, "--log-format", "xml", "version")
	ts.run(t)
	require.True(t, ts.exited)
	assert.Equal(t, int(exitcodes.InvalidConfig), ts.exitCode)
	assert.Contains(t, ts.errorMessages(), "unsupported log format 'xml'")
}

func TestInvalidLogCategory(t *testing.T) {
	t.Parallel()

	ts := newGlobalTestState(t, "--log-category", "(", "version")
	ts.run(t)
	require.True(t, ts.exited)
	assert.Equal(t, int(exitcodes.InvalidConfig), ts.exitCode)
}

func TestUnknownCommand(t *testing.T) {
	t.Parallel()

	ts := newGlobalTestState(t, "fly")
	ts.run(t)
	require.True(t, ts.exited)
	assert.Equal(t, defaultExitCode, ts.exitCode)
}

func TestLogOutputFile(t *testing.T) {
	t.Parallel()

	ts := newGlobalTestState(t, "-v", "--log-output", "file=logs/telemetry.log", "--log-format", "raw", "version")
	require.NoError(t, ts.fs.MkdirAll("/logs", 0o755))
	ts.run(t)
	require.False(t, ts.exited)

	data, err := afero.ReadFile(ts.fs, "/logs/telemetry.log")
	require.NoError(t, err)
	assert.Contains(t, string(data), "telemetry version: v")
	assert.NotContains(t, ts.stdErr.String(), "telemetry version")
}

func TestLogOutputInvalid(t *testing.T) {
	t.Parallel()

	for _, line := range []string{"loki", "file=/missing/dir/telemetry.log", "file=/a.log,level=chatty"} {
		ts := newGlobalTestState(t, "--log-output", line, "version")
		ts.run(t)
		require.True(t, ts.exited, line)
		assert.Equal(t, int(exitcodes.InvalidConfig), ts.exitCode, line)
	}
}

func TestConsolidateGlobalFlags(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		env  map[string]string
		want globalFlags
	}{
		{map[string]string{}, globalFlags{logOutput: "stderr"}},
		{map[string]string{"NO_COLOR": ""}, globalFlags{logOutput: "stderr", noColor: true}},
		{map[string]string{"TELEMETRY_NO_COLOR": ""}, globalFlags{logOutput: "stderr"}},
		{map[string]string{"TELEMETRY_NO_COLOR": "1"}, globalFlags{logOutput: "stderr", noColor: true}},
		{
			map[string]string{
				"TELEMETRY_LOG_OUTPUT":   "none",
				"TELEMETRY_LOG_FORMAT":   "json",
				"TELEMETRY_LOG_CATEGORY": "^cdp",
			},
			globalFlags{logOutput: "none", logFormat: "json", logCategory: "^cdp"},
		},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, consolidateGlobalFlags(getDefaultFlags(), tc.env), tc.env)
	}
}

func TestBuildEnvMap(t *testing.T) {
	t.Parallel()

	env := buildEnvMap([]string{"A=1", "B=", "C", "D=x=y"})
	assert.Equal(t, map[string]string{"A": "1", "B": "", "C": "", "D": "x=y"}, env)
}
