package adapters

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stardate-formula/internal/types"
)

func TestReceiptFileAdapter_RoundTrip(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "prefix")
	tested := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)
	receipt := types.InstallReceipt{
		ID:        "6f1c2b1e-4b7a-4a59-9a43-0c1b2f0f9d11",
		Name:      "stardate",
		Version:   "1.0.0",
		SourceURL: "https://github.com/deanputney/stardate/releases/download/v1.0.0/stardate-1.0.0.tar.gz",
		SHA256:    "929e8f522e3c88297e0f7bd98d185788dc150095d8a67fb43c9ada60a1112c47",
		Prefix:    prefix,
		Dependencies: []types.DependencyResolution{
			{Dependency: "python@3.10", Executable: "/usr/bin/python3.10", Version: "3.10.12"},
		},
		Files: []types.InstalledFile{
			{Path: filepath.Join(prefix, "bin", "stardate"), Mode: 0o755},
		},
		Status:      types.InstallStatusInstalled,
		InstalledAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		TestedAt:    &tested,
	}
	adapter := NewReceiptFileAdapter()
	require.NoError(t, adapter.WriteReceipt(receipt))

	got, err := adapter.ReadReceipt(prefix)
	require.NoError(t, err)
	if diff := cmp.Diff(receipt, got); diff != "" {
		t.Fatalf("receipt mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, adapter.RemoveReceipt(prefix))
	_, err = os.Stat(ReceiptPath(prefix))
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, adapter.RemoveReceipt(prefix), "removing twice is fine")
}

func TestReceiptFileAdapter_Errors(t *testing.T) {
	adapter := NewReceiptFileAdapter()

	_, err := adapter.ReadReceipt(t.TempDir())
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeNotFound, errbuilder.CodeOf(err))

	err = adapter.WriteReceipt(types.InstallReceipt{Name: "stardate"})
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))

	prefix := t.TempDir()
	require.NoError(t, os.WriteFile(ReceiptPath(prefix), []byte("{not json"), 0o644))
	_, err = adapter.ReadReceipt(prefix)
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
}
