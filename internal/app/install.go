package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"stardate-formula/internal/adapters"
	"stardate-formula/internal/core"
	"stardate-formula/internal/shared"
	"stardate-formula/internal/types"
)

const DefaultTestTimeout = 60 * time.Second

// Install runs dependency resolution, fetch and verify, extraction, file
// placement and the smoke test, in that order.  Nothing is written to
// the prefix before the artifact digest has been verified.
func (s Service) Install(ctx context.Context, req InstallRequest) (InstallResult, error) {
	manifest, err := s.loadValidManifest(ctx, req.ManifestPath)
	if err != nil {
		return InstallResult{}, err
	}
	prefix := strings.TrimSpace(req.Prefix)
	if prefix == "" {
		return InstallResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("install prefix is required")
	}
	prefix, err = filepath.Abs(prefix)
	if err != nil {
		return InstallResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("install prefix is invalid").
			WithCause(err)
	}

	receipt := types.InstallReceipt{
		ID:        s.newID(),
		Name:      manifest.Metadata.Name,
		Version:   core.ReleaseVersion(manifest),
		SourceURL: manifest.Source.URL,
		SHA256:    core.NormalizeChecksum(manifest.Source.SHA256),
		Prefix:    prefix,
		Status:    types.InstallStatusFailed,
	}
	ctx = log.Ctx(ctx).With().Str("manifest", receipt.Name).Str("prefix", prefix).Logger().WithContext(ctx)

	result, err := s.install(ctx, req, manifest, &receipt)
	s.recordHistory(ctx, req.StateDir, receipt, err)
	if err != nil {
		return result, err
	}
	log.Ctx(ctx).Info().Str("status", string(receipt.Status)).Int("files", len(receipt.Files)).Msg("install finished")
	return result, nil
}

func (s Service) install(ctx context.Context, req InstallRequest, manifest types.Manifest, receipt *types.InstallReceipt) (InstallResult, error) {
	if !req.SkipDependencies {
		resolutions, err := s.resolveDependencies(ctx, manifest)
		if err != nil {
			return InstallResult{}, err
		}
		receipt.Dependencies = resolutions
	}

	previous, err := s.previousReceipt(receipt.Prefix, receipt.Name)
	if err != nil {
		return InstallResult{}, err
	}

	fetched, _, err := s.fetchVerified(ctx, manifest, req.CacheDir, req.Keyring)
	if err != nil {
		return InstallResult{}, err
	}

	staging, err := os.MkdirTemp(req.CacheDir, ".staging-*")
	if err != nil {
		return InstallResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create staging directory").
			WithCause(err)
	}
	defer os.RemoveAll(staging)
	if _, err := s.Extractor.Extract(ctx, fetched.Path, shared.ArtifactName(manifest.Source.URL), staging); err != nil {
		return InstallResult{}, err
	}
	stage, err := os.OpenRoot(staging)
	if err != nil {
		return InstallResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to open staging directory").
			WithCause(err)
	}
	defer stage.Close()
	root, err := core.ArchiveRoot(stage.FS())
	if err != nil {
		return InstallResult{}, err
	}
	archive, err := stage.OpenRoot(root)
	if err != nil {
		return InstallResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to open extracted archive").
			WithCause(err)
	}
	defer archive.Close()
	archiveRoot := filepath.Join(staging, root)

	planner := core.NewInstallPlanner()
	plan, err := planner.Plan(ctx, archive.FS(), receipt.Prefix, manifest.Install)
	if err != nil {
		return InstallResult{}, err
	}
	files, err := s.Installer.Apply(ctx, archiveRoot, plan)
	if err != nil {
		return InstallResult{}, err
	}
	receipt.Files = files
	receipt.Status = types.InstallStatusInstalled
	receipt.InstalledAt = s.now().UTC()
	if err := s.Receipts.WriteReceipt(*receipt); err != nil {
		// files the previous receipt still lists are left for its uninstall
		if removeErr := s.Installer.Remove(ctx, receipt.Prefix, filesNotIn(files, previous.Files)); removeErr != nil {
			log.Ctx(ctx).Warn().Err(removeErr).Msg("failed to roll back installed files")
		}
		receipt.Status = types.InstallStatusFailed
		return InstallResult{}, err
	}
	stale := filesNotIn(previous.Files, files)
	if len(stale) > 0 {
		if err := s.Installer.Remove(ctx, receipt.Prefix, stale); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("failed to remove files of the previous install")
		} else {
			log.Ctx(ctx).Info().Str("previous_version", previous.Version).Int("files", len(stale)).Msg("removed files of the previous install")
		}
	}
	log.Ctx(ctx).Info().Int("files", len(files)).Msg("files installed")

	result := InstallResult{Receipt: *receipt, Removed: stale}
	if req.SkipTest {
		return result, nil
	}
	test, testErr := s.runSmokeTest(ctx, manifest, receipt.Prefix, req.TestTimeout)
	result.Test = &test
	testedAt := s.now().UTC()
	receipt.TestedAt = &testedAt
	receipt.TestOutput = shared.Truncate(test.Output, 4096)
	if testErr != nil {
		receipt.Status = types.InstallStatusTestFailed
	}
	if err := s.Receipts.WriteReceipt(*receipt); err != nil {
		return result, err
	}
	result.Receipt = *receipt
	return result, testErr
}

// previousReceipt reads the receipt of an earlier install into prefix.
// Reinstalling the same package is allowed; a prefix owned by another
// package or holding an unreadable receipt is refused before anything
// is fetched.
func (s Service) previousReceipt(prefix string, name string) (types.InstallReceipt, error) {
	previous, err := s.Receipts.ReadReceipt(prefix)
	switch {
	case err == nil:
	case errbuilder.CodeOf(err) == errbuilder.CodeNotFound:
		return types.InstallReceipt{}, nil
	default:
		return types.InstallReceipt{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("install receipt in %s cannot be read; uninstall or remove it first", prefix)).
			WithCause(err)
	}
	if previous.Name != name {
		return types.InstallReceipt{}, errbuilder.New().
			WithCode(errbuilder.CodeAlreadyExists).
			WithMsg(fmt.Sprintf("prefix %s already holds %s; uninstall it first", prefix, previous.Name))
	}
	return previous, nil
}

// filesNotIn returns the files of a whose paths b does not list.
func filesNotIn(a []types.InstalledFile, b []types.InstalledFile) []types.InstalledFile {
	keep := make(map[string]struct{}, len(b))
	for _, file := range b {
		keep[file.Path] = struct{}{}
	}
	var out []types.InstalledFile
	for _, file := range a {
		if _, ok := keep[file.Path]; !ok {
			out = append(out, file)
		}
	}
	return out
}

// resolveDependencies probes every runtime dependency, runs the
// dependency installer for the missing ones and probes again.
func (s Service) resolveDependencies(ctx context.Context, manifest types.Manifest) ([]types.DependencyResolution, error) {
	var resolutions []types.DependencyResolution
	for _, raw := range manifest.DependsOn {
		dep, err := core.ParseRuntimeDependency(raw)
		if err != nil {
			return nil, err
		}
		resolution, found, err := s.Probe.Probe(ctx, dep)
		if err != nil {
			return nil, dependencyFailure(dep, err)
		}
		if !found {
			log.Ctx(ctx).Info().Str("dependency", dep.Raw).Msg("runtime dependency missing")
			if s.DepInstaller == nil {
				return nil, dependencyFailure(dep, nil)
			}
			if err := s.DepInstaller.InstallDependency(ctx, dep); err != nil {
				return nil, err
			}
			resolution, found, err = s.Probe.Probe(ctx, dep)
			if err != nil {
				return nil, dependencyFailure(dep, err)
			}
			if !found {
				return nil, dependencyFailure(dep, nil)
			}
			resolution.Installed = true
		}
		log.Ctx(ctx).Debug().Str("dependency", dep.Raw).Str("executable", resolution.Executable).Str("version", resolution.Version).Msg("runtime dependency resolved")
		resolutions = append(resolutions, resolution)
	}
	return resolutions, nil
}

func dependencyFailure(dep types.RuntimeDependency, cause error) error {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg(fmt.Sprintf("dependency resolution failed: no executable satisfying %s found on PATH", dep.Raw))
	if cause != nil {
		builder = builder.WithCause(cause)
	}
	return builder
}

// runSmokeTest runs test.command with <prefix>/bin first on PATH.
func (s Service) runSmokeTest(ctx context.Context, manifest types.Manifest, prefix string, timeout time.Duration) (types.SmokeTestResult, error) {
	if timeout <= 0 {
		timeout = DefaultTestTimeout
	}
	testCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	command := manifest.Test.Command
	env := adapters.WithPathPrefix(os.Environ(), filepath.Join(prefix, "bin"))
	result, err := s.Runner.Run(testCtx, command, env)
	if err != nil {
		return result, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("smoke test failed: %s: %s", strings.Join(command, " "), errorMessage(err))).
			WithCause(err)
	}
	if result.ExitCode != 0 {
		return result, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("smoke test failed: %s exited with %d: %s",
				strings.Join(command, " "), result.ExitCode, shared.Truncate(strings.TrimSpace(result.Output), 512)))
	}
	log.Ctx(ctx).Info().Strs("command", command).Dur("duration", result.Duration).Msg("smoke test passed")
	return result, nil
}

func (s Service) recordHistory(ctx context.Context, stateDir string, receipt types.InstallReceipt, installErr error) {
	stateDir = strings.TrimSpace(stateDir)
	if stateDir == "" || s.OpenHistory == nil {
		return
	}
	history, err := s.OpenHistory(stateDir)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("failed to open install history")
		return
	}
	defer history.Close()
	entry := types.HistoryEntry{
		ReceiptID:   receipt.ID,
		Name:        receipt.Name,
		Version:     receipt.Version,
		Prefix:      receipt.Prefix,
		SHA256:      receipt.SHA256,
		Status:      receipt.Status,
		CompletedAt: s.now().UTC(),
	}
	if installErr != nil {
		entry.Error = errorMessage(installErr)
		if receipt.Status == types.InstallStatusInstalled {
			entry.Status = types.InstallStatusFailed
		}
	}
	if err := history.Record(ctx, entry); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("failed to record install history")
	}
}
