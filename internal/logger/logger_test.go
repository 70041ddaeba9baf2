package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetLogger(t *testing.T) {
	t.Helper()
	mu.Lock()
	minLevel = Info
	history = nil
	mu.Unlock()
	t.Cleanup(func() {
		_ = Close()
		mu.Lock()
		minLevel = Info
		history = nil
		mu.Unlock()
	})
}

func TestLevelPriority_Ordering(t *testing.T) {
	assert.Less(t, levelPriority(Debug), levelPriority(Info))
	assert.Less(t, levelPriority(Info), levelPriority(Warn))
	assert.Less(t, levelPriority(Warn), levelPriority(Error))
	assert.Equal(t, levelPriority(Info), levelPriority(LogLevel("bogus")))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   Debug,
		"info":    Info,
		"warn":    Warn,
		"error":   Error,
		"verbose": Info,
		"":        Info,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "input %q", in)
	}
}

func TestAtLeast(t *testing.T) {
	assert.True(t, AtLeast(Error, Warn))
	assert.True(t, AtLeast(Warn, Warn))
	assert.False(t, AtLeast(Info, Warn))
	assert.True(t, AtLeast(Debug, Debug))
}

func TestLog_FiltersBelowMinimum(t *testing.T) {
	resetLogger(t)
	SetLevel("warn")
	assert.Equal(t, Warn, GetLevel())

	Infof("hidden %d", 1)
	Warnf("shown %d", 2)
	Errorf("shown %d", 3)

	entries := Recent(0)
	require.Len(t, entries, 2)
	assert.Equal(t, "shown 2", entries[0].Message)
	assert.Equal(t, Error, entries[1].Level)
}

func TestRecent_Limits(t *testing.T) {
	resetLogger(t)

	for i := 0; i < historySize+25; i++ {
		Infof("entry %d", i)
	}

	assert.Len(t, Recent(0), historySize)
	last := Recent(1)
	require.Len(t, last, 1)
	assert.Equal(t, "entry 224", last[0].Message)
}

func TestSubscribe_ReceivesEntries(t *testing.T) {
	resetLogger(t)
	ch := Subscribe()

	Infof("hello %s", "world")

	select {
	case entry := <-ch:
		assert.Equal(t, Info, entry.Level)
		assert.Equal(t, "hello world", entry.Message)
	case <-time.After(time.Second):
		t.Fatal("expected a log entry")
	}

	Unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open, "channel should be closed after Unsubscribe")
}

func TestSubscribe_FullChannelDoesNotBlock(t *testing.T) {
	resetLogger(t)
	ch := Subscribe()
	defer Unsubscribe(ch)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			Debugf("dropped")
			Infof("flood %d", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("logging blocked on a full subscriber")
	}
}

func TestInit_WritesLogFile(t *testing.T) {
	resetLogger(t)
	dir := filepath.Join(t.TempDir(), "logs")

	require.NoError(t, Init(dir))
	assert.Equal(t, dir, GetLogDir())

	Infof("persisted line")
	require.NoError(t, Close())
	assert.Equal(t, "", GetLogDir())

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "[INFO] persisted line"))
}
