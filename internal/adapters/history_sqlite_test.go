package adapters

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stardate-formula/internal/types"
)

func newTestHistory(t *testing.T) *HistorySQLiteAdapter {
	t.Helper()
	history, err := NewHistorySQLiteAdapter(filepath.Join(t.TempDir(), "state", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = history.Close() })
	return history
}

func TestHistorySQLiteAdapter_RecordAndList(t *testing.T) {
	history := newTestHistory(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []types.HistoryEntry{
		{ReceiptID: "r1", Name: "stardate", Version: "0.0.1", Prefix: "/opt/a", Status: types.InstallStatusInstalled, CompletedAt: base},
		{ReceiptID: "r2", Name: "other", Version: "2.0", Prefix: "/opt/b", Status: types.InstallStatusFailed, Error: "checksum mismatch", CompletedAt: base.Add(time.Minute)},
		{ReceiptID: "r3", Name: "stardate", Version: "1.0.0", Prefix: "/opt/a", SHA256: "abc", Status: types.InstallStatusTestFailed, CompletedAt: base.Add(2 * time.Minute)},
	}
	for _, entry := range entries {
		require.NoError(t, history.Record(t.Context(), entry))
	}

	all, err := history.List(t.Context(), "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "r3", all[0].ReceiptID, "newest first")
	assert.Equal(t, "r2", all[1].ReceiptID)
	assert.Equal(t, "r1", all[2].ReceiptID)
	assert.Equal(t, "checksum mismatch", all[1].Error)
	assert.Equal(t, types.InstallStatusTestFailed, all[0].Status)
	assert.True(t, all[0].CompletedAt.Equal(base.Add(2*time.Minute)))

	stardate, err := history.List(t.Context(), "stardate", 0)
	require.NoError(t, err)
	require.Len(t, stardate, 2)
	for _, entry := range stardate {
		assert.Equal(t, "stardate", entry.Name)
	}

	limited, err := history.List(t.Context(), "", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "r3", limited[0].ReceiptID)
}

func TestHistorySQLiteAdapter_OrdersAcrossTimezones(t *testing.T) {
	history := newTestHistory(t)
	utc := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	east := time.FixedZone("UTC+5", 5*60*60)
	// 16:00+05:00 is 11:00 UTC, older than the UTC entry
	require.NoError(t, history.Record(t.Context(), types.HistoryEntry{ReceiptID: "utc", Name: "stardate", Status: types.InstallStatusInstalled, CompletedAt: utc}))
	require.NoError(t, history.Record(t.Context(), types.HistoryEntry{ReceiptID: "east", Name: "stardate", Status: types.InstallStatusInstalled, CompletedAt: time.Date(2026, 3, 1, 16, 0, 0, 0, east)}))

	entries, err := history.List(t.Context(), "", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "utc", entries[0].ReceiptID)
}

func TestHistorySQLiteAdapter_InMemory(t *testing.T) {
	history, err := NewHistorySQLiteAdapter(":memory:")
	require.NoError(t, err)
	defer history.Close()

	require.NoError(t, history.Record(t.Context(), types.HistoryEntry{Name: "stardate", Status: types.InstallStatusInstalled}))
	entries, err := history.List(t.Context(), "stardate", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].CompletedAt.IsZero(), "zero timestamps are filled in")
	assert.NotZero(t, entries[0].ID)
}
