package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/pm-monitor/internal/monitor"
)

func ptr(v float64) *float64 { return &v }

func entry(ts string) monitor.HistoryEntry {
	return monitor.HistoryEntry{TS: ts, PM25: ptr(1), Temp: ptr(2)}
}

func TestFileHistory_Load(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file is empty", func(t *testing.T) {
		h := NewFileHistory(filepath.Join(dir, "absent.json"), 0, nil)
		got := h.Load()
		require.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("corrupt file is empty", func(t *testing.T) {
		p := filepath.Join(dir, "corrupt.json")
		require.NoError(t, os.WriteFile(p, []byte("{not json"), 0o644))

		assert.Empty(t, NewFileHistory(p, 0, nil).Load())
	})

	t.Run("json of the wrong shape is empty", func(t *testing.T) {
		p := filepath.Join(dir, "object.json")
		require.NoError(t, os.WriteFile(p, []byte(`{"ts":"T1"}`), 0o644))

		assert.Empty(t, NewFileHistory(p, 0, nil).Load())
	})

	t.Run("null is empty", func(t *testing.T) {
		p := filepath.Join(dir, "null.json")
		require.NoError(t, os.WriteFile(p, []byte(`null`), 0o644))

		got := NewFileHistory(p, 0, nil).Load()
		require.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestFileHistory_Append(t *testing.T) {
	t.Run("first entry into empty history", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "history.json")
		h := NewFileHistory(p, 0, nil)

		got, err := h.Append(monitor.HistoryEntry{TS: "T1", PM25: ptr(10.0), Temp: ptr(20.0)})
		require.NoError(t, err)

		want := []monitor.HistoryEntry{{TS: "T1", PM25: ptr(10.0), Temp: ptr(20.0)}}
		assert.Equal(t, want, got)
		assert.Equal(t, want, h.Load())

		raw, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.JSONEq(t, `[{"ts":"T1","pm25":10,"temp":20}]`, string(raw))
	})

	t.Run("absent values persist as null", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "history.json")
		h := NewFileHistory(p, 0, nil)

		_, err := h.Append(monitor.HistoryEntry{TS: "T1"})
		require.NoError(t, err)

		raw, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.JSONEq(t, `[{"ts":"T1","pm25":null,"temp":null}]`, string(raw))
	})

	t.Run("full history drops the oldest entry", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "history.json")
		full := make([]monitor.HistoryEntry, DefaultHistoryMax)
		for i := range full {
			full[i] = entry(fmt.Sprintf("E%d", i+1))
		}
		require.NoError(t, WriteJSON(p, full))

		h := NewFileHistory(p, DefaultHistoryMax, nil)
		got, err := h.Append(entry("E201"))
		require.NoError(t, err)

		require.Len(t, got, DefaultHistoryMax)
		assert.Equal(t, "E2", got[0].TS)
		assert.Equal(t, "E201", got[len(got)-1].TS)
		assert.Equal(t, got, h.Load())
	})

	t.Run("duplicates are kept", func(t *testing.T) {
		h := NewFileHistory(filepath.Join(t.TempDir(), "history.json"), 0, nil)

		_, err := h.Append(entry("T1"))
		require.NoError(t, err)
		got, err := h.Append(entry("T1"))
		require.NoError(t, err)

		assert.Len(t, got, 2)
	})

	t.Run("length never exceeds capacity", func(t *testing.T) {
		h := NewFileHistory(filepath.Join(t.TempDir(), "history.json"), 3, nil)

		var got []monitor.HistoryEntry
		for i := 0; i < 10; i++ {
			var err error
			got, err = h.Append(entry(fmt.Sprintf("T%d", i)))
			require.NoError(t, err)
			assert.LessOrEqual(t, len(got), 3)
		}
		assert.Equal(t, []string{"T7", "T8", "T9"}, []string{got[0].TS, got[1].TS, got[2].TS})
	})

	t.Run("persist failure still returns the log", func(t *testing.T) {
		dir := t.TempDir()
		blocker := filepath.Join(dir, "file")
		require.NoError(t, os.WriteFile(blocker, nil, 0o644))

		h := NewFileHistory(filepath.Join(blocker, "history.json"), 0, nil)
		got, err := h.Append(entry("T1"))

		assert.Error(t, err)
		assert.Len(t, got, 1)
	})
}

func TestWriteJSON_Indented(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nested", "doc.json")
	require.NoError(t, WriteJSON(p, map[string]int{"a": 1}))

	raw, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}\n", string(raw))

	var back map[string]int
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, 1, back["a"])
}
