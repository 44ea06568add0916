package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stardate-formula/internal/types"
)

func TestParseRuntimeDependency(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    types.RuntimeDependency
		wantErr bool
	}{
		{
			name: "versioned python",
			raw:  "python@3.10",
			want: types.RuntimeDependency{Raw: "python@3.10", Name: "python", Version: "3.10"},
		},
		{
			name: "unversioned",
			raw:  " jq ",
			want: types.RuntimeDependency{Raw: "jq", Name: "jq"},
		},
		{name: "empty", raw: "", wantErr: true},
		{name: "missing version", raw: "python@", wantErr: true},
		{name: "bad version", raw: "python@three", wantErr: true},
		{name: "uppercase name", raw: "Python@3.9", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRuntimeDependency(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("unexpected dependency (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCompareRuntimeVersions(t *testing.T) {
	cmpResult, err := CompareRuntimeVersions("3.10", "3.9")
	require.NoError(t, err)
	assert.Positive(t, cmpResult, "3.10 must sort after 3.9")

	cmpResult, err = CompareRuntimeVersions("3.9", "3.9")
	require.NoError(t, err)
	assert.Zero(t, cmpResult)

	_, err = CompareRuntimeVersions("3.9", "not a version")
	require.Error(t, err)
}

func TestRuntimeSpecifier(t *testing.T) {
	spec, err := RuntimeSpecifier(types.RuntimeDependency{Raw: "python@3.10", Name: "python", Version: "3.10"})
	require.NoError(t, err)
	assert.Equal(t, ">=3.10,<3.11", spec)

	spec, err = RuntimeSpecifier(types.RuntimeDependency{Raw: "node@18", Name: "node", Version: "18"})
	require.NoError(t, err)
	assert.Equal(t, ">=18,<19", spec)

	spec, err = RuntimeSpecifier(types.RuntimeDependency{Raw: "jq", Name: "jq"})
	require.NoError(t, err)
	assert.Empty(t, spec)
}

func TestSatisfiesRuntime(t *testing.T) {
	dep := types.RuntimeDependency{Raw: "python@3.10", Name: "python", Version: "3.10"}
	tests := []struct {
		actual string
		want   bool
	}{
		{actual: "3.10.12", want: true},
		{actual: "3.10.0", want: true},
		{actual: "3.9.18", want: false},
		{actual: "3.11.2", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.actual, func(t *testing.T) {
			got, err := SatisfiesRuntime(dep, tt.actual)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRuntimeExecutables(t *testing.T) {
	python := types.RuntimeDependency{Name: "python", Version: "3.9"}
	assert.Equal(t, []string{"python3.9", "python3", "python"}, RuntimeExecutables(python))
	assert.Equal(t, []string{"jq"}, RuntimeExecutables(types.RuntimeDependency{Name: "jq"}))
}
