package adapters

import (
	"context"
	"errors"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stardate-formula/internal/core"
	"stardate-formula/internal/types"
)

func fakeProbe(installed map[string]string) RuntimeProbeAdapter {
	return RuntimeProbeAdapter{
		LookPath: func(name string) (string, error) {
			if _, ok := installed[name]; ok {
				return "/usr/local/bin/" + name, nil
			}
			return "", errors.New("not found")
		},
		VersionOf: func(_ context.Context, executable string) (string, error) {
			for name, version := range installed {
				if executable == "/usr/local/bin/"+name {
					return version, nil
				}
			}
			return "", errors.New("unknown executable")
		},
	}
}

func TestRuntimeProbeAdapter_Probe(t *testing.T) {
	tests := []struct {
		name       string
		dependency string
		installed  map[string]string
		found      bool
		executable string
	}{
		{
			name:       "versioned interpreter first",
			dependency: "python@3.10",
			installed:  map[string]string{"python3.10": "3.10.12", "python3": "3.12.1"},
			found:      true,
			executable: "/usr/local/bin/python3.10",
		},
		{
			name:       "generic python3 with matching minor",
			dependency: "python@3.10",
			installed:  map[string]string{"python3": "3.10.4"},
			found:      true,
			executable: "/usr/local/bin/python3",
		},
		{
			name:       "newer minor does not satisfy",
			dependency: "python@3.10",
			installed:  map[string]string{"python3": "3.11.2"},
			found:      false,
		},
		{
			name:       "older minor does not satisfy",
			dependency: "python@3.10",
			installed:  map[string]string{"python3": "3.9.18", "python": "2.7.18"},
			found:      false,
		},
		{
			name:       "unversioned dependency accepts anything",
			dependency: "jq",
			installed:  map[string]string{"jq": "1.7.1"},
			found:      true,
			executable: "/usr/local/bin/jq",
		},
		{
			name:       "nothing installed",
			dependency: "python@3.10",
			installed:  map[string]string{},
			found:      false,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			dep, err := core.ParseRuntimeDependency(tt.dependency)
			require.NoError(t, err)
			resolution, found, err := fakeProbe(tt.installed).Probe(t.Context(), dep)
			require.NoError(t, err)
			assert.Equal(t, tt.found, found)
			if tt.found {
				assert.Equal(t, tt.executable, resolution.Executable)
				assert.Equal(t, tt.dependency, resolution.Dependency)
				assert.Equal(t, tt.installed[resolution.Executable[len("/usr/local/bin/"):]], resolution.Version)
			}
		})
	}
}

func TestParseReportedVersion(t *testing.T) {
	tests := []struct {
		output   string
		expected string
		ok       bool
	}{
		{output: "Python 3.10.12", expected: "3.10.12", ok: true},
		{output: "jq-1.7.1\n", expected: "1.7.1", ok: true},
		{output: "node v20.11.0", expected: "20.11.0", ok: true},
		{output: "no version here", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			got, ok := ParseReportedVersion(tt.output)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDependencyInstallCommand(t *testing.T) {
	assert.Equal(t, []string{"brew", "install", "python@3.10"}, DependencyInstallCommand("brew install %s", "python@3.10"))
	assert.Equal(t, []string{"apt-get", "install", "-y", "python@3.10"}, DependencyInstallCommand("apt-get install -y", "python@3.10"))
	assert.Nil(t, DependencyInstallCommand("   ", "python@3.10"))
}

type recordingRunner struct {
	commands [][]string
	result   types.SmokeTestResult
	err      error
}

func (r *recordingRunner) Run(_ context.Context, command []string, _ []string) (types.SmokeTestResult, error) {
	r.commands = append(r.commands, command)
	return r.result, r.err
}

func TestCommandDependencyInstallerAdapter(t *testing.T) {
	dep, err := core.ParseRuntimeDependency("python@3.10")
	require.NoError(t, err)

	t.Run("runs the configured command", func(t *testing.T) {
		runner := &recordingRunner{}
		installer := NewCommandDependencyInstallerAdapter("brew install %s", runner)
		require.NoError(t, installer.InstallDependency(t.Context(), dep))
		assert.Equal(t, [][]string{{"brew", "install", "python@3.10"}}, runner.commands)
	})

	t.Run("no command configured", func(t *testing.T) {
		installer := NewCommandDependencyInstallerAdapter("", &recordingRunner{})
		err := installer.InstallDependency(t.Context(), dep)
		require.Error(t, err)
		assert.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))
		assert.Contains(t, err.Error(), "dependency resolution failed")
	})

	t.Run("command exits non-zero", func(t *testing.T) {
		runner := &recordingRunner{result: types.SmokeTestResult{ExitCode: 1, Output: "Error: No available formula"}}
		installer := NewCommandDependencyInstallerAdapter("brew install %s", runner)
		err := installer.InstallDependency(t.Context(), dep)
		require.Error(t, err)
		assert.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))
		assert.Contains(t, err.Error(), "No available formula")
	})
}
