package integration

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

// stardateScript stands in for the real python entry point so the
// smoke test does not need an interpreter on the host.
const stardateScript = `#!/bin/sh
if [ "$1" = "--help" ]; then
  echo "usage: stardate [-h] [--format FORMAT] FILE"
  exit 0
fi
exit 2
`

func buildRelease(t *testing.T) []byte {
	t.Helper()
	files := []struct {
		name string
		body string
		mode int64
	}{
		{name: "stardate-1.0.0/stardate.py", body: stardateScript, mode: 0o755},
		{name: "stardate-1.0.0/test_data/41153.7.txt", body: "Captain's log, stardate 41153.7\n", mode: 0o644},
		{name: "stardate-1.0.0/test_data/41154.2.txt", body: "Supplemental\n", mode: 0o644},
	}
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, file := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     file.name,
			Mode:     file.mode,
			Size:     int64(len(file.body)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(file.body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// writeReleaseManifest copies the YAML fixture with the source pointed
// at url.
func writeReleaseManifest(t *testing.T, repoRoot string, dir string, url string, checksum string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(repoRoot, "fixtures", "stardate.yaml"))
	require.NoError(t, err)
	content := strings.NewReplacer(
		"https://github.com/deanputney/stardate/releases/download/v1.0.0/stardate-1.0.0.tar.gz", url,
		"929e8f522e3c88297e0f7bd98d185788dc150095d8a67fb43c9ada60a1112c47", checksum,
	).Replace(string(data))
	path := filepath.Join(dir, "stardate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
