package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitDisabledDiscards(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Enabled: true, Output: &buf})
	Init(Options{Enabled: false})
	Info("dropped") // must not panic
	require.Empty(t, buf.String())
	require.False(t, L.Enabled(t.Context(), slog.LevelError))
	require.False(t, L.Enabled(t.Context(), slog.LevelDebug))
}

func TestInitJSONWritesRecords(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Enabled: true, Output: &buf, JSON: true})
	t.Cleanup(func() { Init(Options{}) })

	Info("pool created", "size", 1024)
	require.Contains(t, buf.String(), `"msg":"pool created"`)
	require.Contains(t, buf.String(), `"size":1024`)
}

func TestAllocGate(t *testing.T) {
	var buf bytes.Buffer
	prev := AllocEnabled
	t.Cleanup(func() {
		AllocEnabled = prev
		Init(Options{})
	})

	Init(Options{Enabled: true, Output: &buf})
	AllocEnabled = false
	Alloc("hidden")
	require.Empty(t, buf.String())

	Init(Options{Enabled: true, Output: &buf, Alloc: true})
	Alloc("shown", "ptr", 64)
	require.Contains(t, buf.String(), "shown")
}
