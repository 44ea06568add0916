package adapters

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"stardate-formula/internal/core"
	"stardate-formula/internal/ports"
	"stardate-formula/internal/shared"
	"stardate-formula/internal/types"
)

var versionPattern = regexp.MustCompile(`(\d+(?:\.\d+)+)`)

// RuntimeProbeAdapter finds an interpreter on PATH whose reported
// version satisfies a runtime dependency.
type RuntimeProbeAdapter struct {
	LookPath  func(name string) (string, error)
	VersionOf func(ctx context.Context, executable string) (string, error)
}

func NewRuntimeProbeAdapter() RuntimeProbeAdapter {
	return RuntimeProbeAdapter{
		LookPath:  exec.LookPath,
		VersionOf: executableVersion,
	}
}

func (a RuntimeProbeAdapter) Probe(ctx context.Context, dep types.RuntimeDependency) (types.DependencyResolution, bool, error) {
	lookPath := a.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	versionOf := a.VersionOf
	if versionOf == nil {
		versionOf = executableVersion
	}
	for _, name := range core.RuntimeExecutables(dep) {
		if err := ctx.Err(); err != nil {
			return types.DependencyResolution{}, false, err
		}
		path, err := lookPath(name)
		if err != nil {
			continue
		}
		version, err := versionOf(ctx, path)
		if err != nil {
			log.Debug().Err(err).Str("executable", path).Msg("runtime version probe failed")
			continue
		}
		ok, err := core.SatisfiesRuntime(dep, version)
		if err != nil {
			log.Debug().Err(err).Str("executable", path).Str("version", version).Msg("runtime version not comparable")
			continue
		}
		if !ok {
			log.Debug().Str("executable", path).Str("version", version).Str("dependency", dep.Raw).Msg("runtime version does not match")
			continue
		}
		return types.DependencyResolution{
			Dependency: dep.Raw,
			Executable: path,
			Version:    version,
		}, true, nil
	}
	return types.DependencyResolution{}, false, nil
}

// ParseReportedVersion extracts the dotted version from output such as
// "Python 3.10.12".
func ParseReportedVersion(output string) (string, bool) {
	match := versionPattern.FindString(output)
	return match, match != ""
}

func executableVersion(ctx context.Context, executable string) (string, error) {
	output, err := exec.CommandContext(ctx, executable, "--version").CombinedOutput()
	if err != nil {
		return "", shared.CommandError(output, err)
	}
	version, ok := ParseReportedVersion(string(output))
	if !ok {
		return "", fmt.Errorf("no version in output of %s --version", executable)
	}
	return version, nil
}

// CommandDependencyInstallerAdapter installs a missing runtime
// dependency with a configured command.  "%s" in the template is
// replaced by the dependency, e.g. "brew install %s"; without a
// placeholder the dependency is appended.
type CommandDependencyInstallerAdapter struct {
	Template string
	Runner   ports.CommandRunnerPort
	Env      []string
}

func NewCommandDependencyInstallerAdapter(template string, runner ports.CommandRunnerPort) CommandDependencyInstallerAdapter {
	return CommandDependencyInstallerAdapter{Template: strings.TrimSpace(template), Runner: runner}
}

func (a CommandDependencyInstallerAdapter) InstallDependency(ctx context.Context, dep types.RuntimeDependency) error {
	command := DependencyInstallCommand(a.Template, dep.Raw)
	if len(command) == 0 {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("dependency resolution failed: %s is missing and no dependency install command is configured", dep.Raw))
	}
	log.Info().Strs("command", command).Str("dependency", dep.Raw).Msg("installing runtime dependency")
	result, err := a.Runner.Run(ctx, command, a.Env)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("dependency resolution failed: %s could not be installed", dep.Raw)).
			WithCause(err)
	}
	if result.ExitCode != 0 {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("dependency resolution failed: %s install exited with %d: %s",
				dep.Raw, result.ExitCode, shared.Truncate(strings.TrimSpace(result.Output), 512)))
	}
	return nil
}

// DependencyInstallCommand expands template for dependency.
func DependencyInstallCommand(template string, dependency string) []string {
	fields := strings.Fields(template)
	if len(fields) == 0 {
		return nil
	}
	replaced := false
	for i, field := range fields {
		if strings.Contains(field, "%s") {
			fields[i] = strings.ReplaceAll(field, "%s", dependency)
			replaced = true
		}
	}
	if !replaced {
		fields = append(fields, dependency)
	}
	return fields
}

var (
	_ ports.RuntimeProbePort        = RuntimeProbeAdapter{}
	_ ports.DependencyInstallerPort = CommandDependencyInstallerAdapter{}
)
