package app

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"stardate-formula/internal/ports"
	"stardate-formula/internal/types"
)

const releasePath = "/deanputney/stardate/releases/download/v1.0.0/stardate-1.0.0.tar.gz"

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type archiveEntry struct {
	name string
	body string
	mode int64
}

func stardateArchive() []archiveEntry {
	return []archiveEntry{
		{name: "stardate-1.0.0/stardate.py", body: "#!/usr/bin/env python3\nprint('stardate')\n", mode: 0o644},
		{name: "stardate-1.0.0/test_data/sample.txt", body: "Stardate 41153.7\n", mode: 0o644},
		{name: "stardate-1.0.0/README.md", body: "# stardate\n", mode: 0o644},
	}
}

func buildTarGz(t *testing.T, entries []archiveEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, entry := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     entry.name,
			Mode:     entry.mode,
			Size:     int64(len(entry.body)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(entry.body))
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

type artifactServer struct {
	*httptest.Server
	hits atomic.Int32
}

func newArtifactServer(t *testing.T, body []byte) *artifactServer {
	t.Helper()
	srv := &artifactServer{}
	srv.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != releasePath {
			http.NotFound(w, r)
			return
		}
		srv.hits.Add(1)
		w.Header().Set("Content-Type", "application/gzip")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

const manifestTemplate = `api_version: v1
kind: formula
metadata:
  name: stardate
  description: Command line interface for interacting with Stardate app's transcription files
  homepage: https://github.com/deanputney/stardate
source:
  url: {{URL}}
  sha256: {{SHA}}
depends_on:
  - python@3.10
install:
  - from: stardate.py
    to: stardate
    kind: bin
  - from: {{DATA}}
    to: test_data
    kind: prefix
test:
  command:
    - stardate
    - --help
`

func writeManifest(t *testing.T, dir string, url string, sha string, dataGlob string) string {
	t.Helper()
	content := strings.NewReplacer("{{URL}}", url, "{{SHA}}", sha, "{{DATA}}", dataGlob).Replace(manifestTemplate)
	path := filepath.Join(dir, "stardate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

type fakeProbe struct {
	mu        sync.Mutex
	available map[string]bool
	calls     int
}

func (p *fakeProbe) Probe(_ context.Context, dep types.RuntimeDependency) (types.DependencyResolution, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if !p.available[dep.Raw] {
		return types.DependencyResolution{}, false, nil
	}
	return types.DependencyResolution{
		Dependency: dep.Raw,
		Executable: "/usr/bin/python" + dep.Version,
		Version:    dep.Version + ".12",
	}, true, nil
}

type fakeDependencyInstaller struct {
	probe     *fakeProbe
	installed []string
}

func (f *fakeDependencyInstaller) InstallDependency(_ context.Context, dep types.RuntimeDependency) error {
	f.installed = append(f.installed, dep.Raw)
	f.probe.mu.Lock()
	f.probe.available[dep.Raw] = true
	f.probe.mu.Unlock()
	return nil
}

type fakeRunner struct {
	exitCode int
	output   string
	err      error
	commands [][]string
	paths    []string
}

func (r *fakeRunner) Run(_ context.Context, command []string, env []string) (types.SmokeTestResult, error) {
	r.commands = append(r.commands, command)
	for _, entry := range env {
		if strings.HasPrefix(entry, "PATH=") {
			r.paths = append(r.paths, strings.TrimPrefix(entry, "PATH="))
		}
	}
	return types.SmokeTestResult{Command: command, ExitCode: r.exitCode, Output: r.output}, r.err
}

type memHistory struct {
	mu      *sync.Mutex
	entries *[]types.HistoryEntry
}

func newMemHistory() memHistory {
	return memHistory{mu: &sync.Mutex{}, entries: &[]types.HistoryEntry{}}
}

func (h memHistory) Record(_ context.Context, entry types.HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	entry.ID = int64(len(*h.entries) + 1)
	*h.entries = append(*h.entries, entry)
	return nil
}

func (h memHistory) List(_ context.Context, name string, _ int) ([]types.HistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []types.HistoryEntry
	for _, entry := range *h.entries {
		if name == "" || entry.Name == name {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (h memHistory) Close() error { return nil }

func newTestService(probe *fakeProbe, runner *fakeRunner, history memHistory) Service {
	service := NewService(Config{HTTPTimeoutSec: 5, HTTPRetries: 1, HTTPRetryDelayMs: 1})
	service.Probe = probe
	service.Runner = runner
	service.OpenHistory = func(string) (ports.HistoryPort, error) { return history, nil }
	service.Clock = func() time.Time { return fixedNow }
	service.NewID = func() string { return "0b5e6c1e-2f0d-4d8a-9a55-3c7e1f4a9b10" }
	return service
}

func repoRoot(t *testing.T) string {
	t.Helper()
	root, err := filepath.Abs(filepath.Join("..", ".."))
	require.NoError(t, err)
	return root
}
