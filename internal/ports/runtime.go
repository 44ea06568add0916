package ports

import (
	"context"

	"stardate-formula/internal/types"
)

// RuntimeProbePort looks for an executable that satisfies a runtime
// dependency.  found is false, with a nil error, when none exists.
type RuntimeProbePort interface {
	Probe(ctx context.Context, dep types.RuntimeDependency) (resolution types.DependencyResolution, found bool, err error)
}

// DependencyInstallerPort installs a missing runtime dependency, for
// example by running `brew install python@3.10`.
type DependencyInstallerPort interface {
	InstallDependency(ctx context.Context, dep types.RuntimeDependency) error
}

// CommandRunnerPort runs a command and captures its combined output.
// A non-zero exit is reported in the result, not as an error.
type CommandRunnerPort interface {
	Run(ctx context.Context, command []string, env []string) (types.SmokeTestResult, error)
}
