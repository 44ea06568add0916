package adapters

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stardate-formula/internal/types"
)

const yamlManifestPath = "../../fixtures/stardate.yaml"

func TestManifestFileAdapter_LoadYAML(t *testing.T) {
	manifest, err := NewManifestFileAdapter().LoadManifest(yamlManifestPath)
	require.NoError(t, err)

	assert.Equal(t, yamlManifestPath, manifest.Path)
	assert.Equal(t, "stardate", manifest.Metadata.Name)
	assert.Equal(t, "1.0.0", manifest.Metadata.Version)
	assert.Equal(t, "https://github.com/deanputney/stardate/releases/download/v1.0.0/stardate-1.0.0.tar.gz", manifest.Source.URL)
	assert.Equal(t, []string{"python@3.10"}, manifest.DependsOn)
	assert.Equal(t, []string{"stardate"}, manifest.BinNames())
	assert.Equal(t, []string{"stardate", "--help"}, manifest.Test.Command)
}

func TestManifestFileAdapter_YAMLAndFormulaAgree(t *testing.T) {
	adapter := NewManifestFileAdapter()
	fromYAML, err := adapter.LoadManifest(yamlManifestPath)
	require.NoError(t, err)
	fromFormula, err := adapter.LoadManifest("../../fixtures/revisions/rev3/stardate.rb")
	require.NoError(t, err)

	assert.Equal(t, fromYAML.Metadata.Name, fromFormula.Metadata.Name)
	assert.Equal(t, fromYAML.Source, fromFormula.Source)
	assert.Equal(t, fromYAML.DependsOn, fromFormula.DependsOn)
	assert.Equal(t, fromYAML.Test, fromFormula.Test)
}

func TestManifestFileAdapter_WriteRoundTrip(t *testing.T) {
	adapter := NewManifestFileAdapter()
	manifest, err := adapter.LoadManifest(yamlManifestPath)
	require.NoError(t, err)

	dir := t.TempDir()
	for _, name := range []string{"stardate.yaml", "stardate.rb"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, adapter.WriteManifest(path, manifest))
			loaded, err := adapter.LoadManifest(path)
			require.NoError(t, err)
			want := manifest
			want.Path = path
			if diff := cmp.Diff(want, loaded); diff != "" {
				t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestManifestFileAdapter_UpdateChecksumYAML(t *testing.T) {
	src, err := os.ReadFile(yamlManifestPath)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "stardate.yaml")
	withComment := "# maintained by hand\n" + string(src)
	require.NoError(t, os.WriteFile(path, []byte(withComment), 0o644))

	adapter := NewManifestFileAdapter()
	digest := strings.Repeat("0f", 32)
	require.NoError(t, adapter.UpdateChecksum(path, digest))

	updated, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(updated), "# maintained by hand")
	manifest, err := adapter.LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, digest, manifest.Source.SHA256)
	assert.Equal(t, "stardate", manifest.Metadata.Name)
}

func TestManifestFileAdapter_UpdateChecksumFormula(t *testing.T) {
	src, err := os.ReadFile("../../fixtures/revisions/rev4/stardate.rb")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "stardate.rb")
	require.NoError(t, os.WriteFile(path, src, 0o644))

	adapter := NewManifestFileAdapter()
	digest := strings.Repeat("0f", 32)
	require.NoError(t, adapter.UpdateChecksum(path, digest))
	manifest, err := adapter.LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, digest, manifest.Source.SHA256)
	assert.Equal(t, []string{"python@3.9"}, manifest.DependsOn)
}

func TestManifestFileAdapter_Errors(t *testing.T) {
	adapter := NewManifestFileAdapter()

	_, err := adapter.LoadManifest("stardate.json")
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))

	_, err = adapter.LoadManifest(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeNotFound, errbuilder.CodeOf(err))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_version: v1\nkind: formula\n"), 0o644))
	_, err = adapter.LoadManifest(path)
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
}

func TestFormatForPath(t *testing.T) {
	tests := []struct {
		path     string
		expected types.ManifestFormat
		wantErr  bool
	}{
		{path: "stardate.yaml", expected: types.ManifestFormatYAML},
		{path: "stardate.YML", expected: types.ManifestFormatYAML},
		{path: "Formula/stardate.rb", expected: types.ManifestFormatFormula},
		{path: "stardate.toml", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatForPath(tt.path)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
