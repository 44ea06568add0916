//go:build integration

package integration

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stardate-formula/internal/adapters"
	"stardate-formula/internal/app"
	"stardate-formula/internal/types"
	"stardate-formula/tests/testutil"
)

const releasePath = "/deanputney/stardate/releases/download/v1.0.0/stardate-1.0.0.tar.gz"

// TestInstallLifecycle drives the real adapters through
//
//	fetch -> install -> test -> inspect -> history -> uninstall
//
// against a local release server.
func TestInstallLifecycle(t *testing.T) {
	ctx := t.Context()
	release := buildRelease(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != releasePath {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(release)
	}))
	t.Cleanup(server.Close)

	root := t.TempDir()
	manifestPath := writeReleaseManifest(t, testutil.RepoRoot(t), root, server.URL+releasePath, sha256Hex(release))
	prefix := filepath.Join(root, "prefix")
	cacheDir := filepath.Join(root, "cache")
	stateDir := filepath.Join(root, "state")

	service := app.NewService(app.Config{HTTPTimeoutSec: 10, HTTPRetries: 1, HTTPRetryDelayMs: 50})

	fetched, err := service.Fetch(ctx, app.FetchRequest{ManifestPath: manifestPath, CacheDir: cacheDir})
	require.NoError(t, err)
	assert.False(t, fetched.Cached)
	assert.Equal(t, sha256Hex(release), fetched.SHA256)

	installed, err := service.Install(ctx, app.InstallRequest{
		ManifestPath:     manifestPath,
		Prefix:           prefix,
		CacheDir:         cacheDir,
		StateDir:         stateDir,
		SkipDependencies: true,
		TestTimeout:      10 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, types.InstallStatusInstalled, installed.Receipt.Status)
	require.NotNil(t, installed.Test)
	assert.Contains(t, installed.Test.Output, "usage: stardate")

	info, err := os.Stat(filepath.Join(prefix, "bin", "stardate"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0o111, "bin entries are executable")
	_, err = os.Stat(filepath.Join(prefix, "test_data", "41153.7.txt"))
	require.NoError(t, err)
	_, err = os.Stat(adapters.ReceiptPath(prefix))
	require.NoError(t, err)

	tested, err := service.Test(ctx, app.TestRequest{ManifestPath: manifestPath, Prefix: prefix, Timeout: 10 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, 0, tested.Result.ExitCode)

	inspected, err := service.Inspect(ctx, app.InspectRequest{ManifestPath: manifestPath, Prefix: prefix})
	require.NoError(t, err)
	require.NotNil(t, inspected.Receipt)
	assert.Equal(t, "1.0.0", inspected.Version)
	assert.Len(t, inspected.Receipt.Files, 3)

	history, err := service.History(ctx, app.HistoryRequest{StateDir: stateDir, Name: "stardate"})
	require.NoError(t, err)
	require.Len(t, history.Entries, 1)
	assert.Equal(t, installed.Receipt.ID, history.Entries[0].ReceiptID)

	removed, err := service.Uninstall(ctx, app.UninstallRequest{Prefix: prefix})
	require.NoError(t, err)
	assert.Equal(t, 3, removed.Removed)
	_, err = os.Stat(prefix)
	assert.True(t, os.IsNotExist(err), "an emptied prefix is removed")
}

func TestInstallRejectsTamperedRelease(t *testing.T) {
	ctx := t.Context()
	release := buildRelease(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(append(release, 0x00))
	}))
	t.Cleanup(server.Close)

	root := t.TempDir()
	manifestPath := writeReleaseManifest(t, testutil.RepoRoot(t), root, server.URL+releasePath, sha256Hex(release))
	prefix := filepath.Join(root, "prefix")
	stateDir := filepath.Join(root, "state")

	service := app.NewService(app.Config{HTTPTimeoutSec: 10, HTTPRetries: 1, HTTPRetryDelayMs: 50})
	_, err := service.Install(ctx, app.InstallRequest{
		ManifestPath:     manifestPath,
		Prefix:           prefix,
		CacheDir:         filepath.Join(root, "cache"),
		StateDir:         stateDir,
		SkipDependencies: true,
	})
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))
	assert.Contains(t, err.Error(), "checksum mismatch")
	_, statErr := os.Stat(filepath.Join(prefix, "bin", "stardate"))
	assert.True(t, os.IsNotExist(statErr), "nothing is installed from a tampered artifact")

	history, err := service.History(ctx, app.HistoryRequest{StateDir: stateDir})
	require.NoError(t, err)
	require.Len(t, history.Entries, 1)
	assert.Equal(t, types.InstallStatusFailed, history.Entries[0].Status)
}
