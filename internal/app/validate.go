package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"stardate-formula/internal/adapters"
	"stardate-formula/internal/core"
	"stardate-formula/internal/types"
)

func (s Service) Validate(ctx context.Context, req ValidateRequest) (ValidateResult, error) {
	manifest, err := s.loadValidManifest(ctx, req.ManifestPath)
	if err != nil {
		return ValidateResult{}, err
	}
	format, err := adapters.FormatForPath(manifest.Path)
	if err != nil {
		return ValidateResult{}, err
	}
	return ValidateResult{
		Name:    manifest.Metadata.Name,
		Version: core.ReleaseVersion(manifest),
		Format:  format,
	}, nil
}

func (s Service) Lint(ctx context.Context, req LintRequest) (LintResult, error) {
	if len(req.ManifestPaths) == 0 {
		return LintResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("at least one manifest path is required")
	}
	revisions := make([]types.Revision, 0, len(req.ManifestPaths))
	for _, path := range req.ManifestPaths {
		manifest, err := s.loadManifest(path)
		if err != nil {
			return LintResult{}, err
		}
		revisions = append(revisions, core.NewRevision(revisionLabel(path), manifest))
	}
	linter := core.NewRevisionLinter()
	findings := linter.Lint(ctx, revisions)
	result := LintResult{Findings: findings}
	for _, revision := range core.SortRevisions(revisions) {
		result.Revisions = append(result.Revisions, revision.Label)
	}
	if core.HasFailures(findings, req.Strict) {
		errorsCount, warnings := countSeverities(findings)
		return result, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("lint failed: %d errors, %d warnings", errorsCount, warnings))
	}
	return result, nil
}

func (s Service) loadManifest(path string) (types.Manifest, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return types.Manifest{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("manifest path is required")
	}
	return s.Manifests.LoadManifest(path)
}

func (s Service) loadValidManifest(ctx context.Context, path string) (types.Manifest, error) {
	manifest, err := s.loadManifest(path)
	if err != nil {
		return types.Manifest{}, err
	}
	compiler := core.NewManifestCompiler()
	if err := compiler.ValidateManifest(ctx, manifest); err != nil {
		return types.Manifest{}, err
	}
	log.Ctx(ctx).Debug().Str("manifest", manifest.Metadata.Name).Str("path", path).Msg("manifest validated")
	return manifest, nil
}

func countSeverities(findings []types.Finding) (int, int) {
	errorsCount, warnings := 0, 0
	for _, finding := range findings {
		switch finding.Severity {
		case types.SeverityError:
			errorsCount++
		case types.SeverityWarning:
			warnings++
		}
	}
	return errorsCount, warnings
}

// revisionLabel names a revision by its file and parent directory, so
// "revisions/rev2/stardate.rb" becomes "rev2/stardate.rb".
func revisionLabel(path string) string {
	dir := filepath.Base(filepath.Dir(path))
	if dir == "." || dir == string(filepath.Separator) {
		return filepath.Base(path)
	}
	return dir + "/" + filepath.Base(path)
}
