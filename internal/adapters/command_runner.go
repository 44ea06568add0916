package adapters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"stardate-formula/internal/ports"
	"stardate-formula/internal/types"
)

// ExecCommandRunnerAdapter runs commands as child processes.  The
// executable is looked up on the PATH given in env, not the PATH of the
// current process, so a freshly installed bin directory is honoured.
type ExecCommandRunnerAdapter struct {
	WaitDelay time.Duration
}

func NewExecCommandRunnerAdapter() ExecCommandRunnerAdapter {
	return ExecCommandRunnerAdapter{WaitDelay: 2 * time.Second}
}

func (a ExecCommandRunnerAdapter) Run(ctx context.Context, command []string, env []string) (types.SmokeTestResult, error) {
	result := types.SmokeTestResult{Command: command}
	if len(command) == 0 || strings.TrimSpace(command[0]) == "" {
		return result, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("command is empty")
	}
	if env == nil {
		env = os.Environ()
	}
	executable, err := LookPathIn(command[0], EnvValue(env, "PATH"))
	if err != nil {
		return result, err
	}

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, executable, command[1:]...)
	cmd.Env = env
	cmd.Stdout = &output
	cmd.Stderr = &output
	cmd.WaitDelay = a.WaitDelay

	start := time.Now()
	runErr := cmd.Run()
	result.Duration = time.Since(start)
	result.Output = output.String()
	log.Debug().Strs("command", command).Dur("duration", result.Duration).Msg("command finished")

	if ctxErr := ctx.Err(); ctxErr != nil {
		result.ExitCode = -1
		return result, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("command %q did not finish: %v", command[0], ctxErr)).
			WithCause(ctxErr)
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to run %q", command[0])).
			WithCause(runErr)
	}
	return result, nil
}

// LookPathIn resolves name against the given PATH value.  Names that
// contain a separator are used as-is.
func LookPathIn(name string, pathValue string) (string, error) {
	if strings.ContainsRune(name, filepath.Separator) {
		if isExecutableFile(name) {
			return name, nil
		}
		return "", executableNotFound(name)
	}
	for _, dir := range filepath.SplitList(pathValue) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		if isExecutableFile(candidate) {
			return candidate, nil
		}
	}
	return "", executableNotFound(name)
}

// EnvValue returns the last value of key in an environ-style slice.
func EnvValue(env []string, key string) string {
	value := ""
	prefix := key + "="
	for _, entry := range env {
		if strings.HasPrefix(entry, prefix) {
			value = strings.TrimPrefix(entry, prefix)
		}
	}
	return value
}

// WithPathPrefix returns env with dir placed at the front of PATH.
func WithPathPrefix(env []string, dir string) []string {
	current := EnvValue(env, "PATH")
	updated := dir
	if current != "" {
		updated = dir + string(filepath.ListSeparator) + current
	}
	out := make([]string, 0, len(env)+1)
	for _, entry := range env {
		if strings.HasPrefix(entry, "PATH=") {
			continue
		}
		out = append(out, entry)
	}
	return append(out, "PATH="+updated)
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}

func executableNotFound(name string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(fmt.Sprintf("executable not found: %s", name))
}

var _ ports.CommandRunnerPort = ExecCommandRunnerAdapter{}
