package logx

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(nil) })
	return &buf
}

func TestLogFormat(t *testing.T) {
	buf := captureOutput(t)

	NewLogger("engine").Info("answered %s", "q1")

	out := buf.String()
	assert.Contains(t, out, "[engine]")
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "answered q1")
}

func TestDebugRespectsDomains(t *testing.T) {
	buf := captureOutput(t)
	SetDebug(true, "workflow")
	t.Cleanup(func() { SetDebug(false) })

	ctx := WithComponent(context.Background(), "wf-1")
	Debug(ctx, "engine", "hidden")
	Debug(ctx, "workflow", "shown %d", 1)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[wf-1]")
	assert.Contains(t, out, "[workflow] shown 1")
}

func TestDebugDisabledByDefault(t *testing.T) {
	buf := captureOutput(t)
	SetDebug(false)

	NewLogger("analyzer").Debug("nothing")
	assert.Empty(t, buf.String())
}

func TestRecentEntriesFiltersByComponent(t *testing.T) {
	captureOutput(t)

	NewLogger("recent-a").Warn("first")
	NewLogger("recent-b").Error("second")

	entries := RecentEntries("recent-b")
	require.NotEmpty(t, entries)
	last := entries[len(entries)-1]
	assert.Equal(t, "second", last.Message)
	assert.Equal(t, string(LevelError), last.Level)
}

func TestWrap(t *testing.T) {
	captureOutput(t)

	base := errors.New("disk full")
	err := Wrap(base, "save session")
	require.Error(t, err)
	assert.True(t, errors.Is(err, base))
	assert.True(t, strings.HasPrefix(err.Error(), "save session: "))
	assert.NoError(t, Wrap(nil, "noop"))
}

func TestWithSuffix(t *testing.T) {
	l := NewLogger("workflow").With("abc")
	assert.Equal(t, "workflow/abc", l.Component())
}
