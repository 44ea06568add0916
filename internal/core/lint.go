package core

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"stardate-formula/internal/types"
)

// RevisionLinter checks a sequence of manifest revisions for defects in
// each revision and for drift between consecutive revisions of the same
// package.
type RevisionLinter struct{}

func NewRevisionLinter() RevisionLinter {
	return RevisionLinter{}
}

// Lint sorts the revisions by release version and returns every
// finding, per-revision checks first.
func (l RevisionLinter) Lint(ctx context.Context, revisions []types.Revision) []types.Finding {
	ordered := SortRevisions(revisions)
	var findings []types.Finding
	for _, revision := range ordered {
		findings = append(findings, lintRevision(revision)...)
	}
	byName := map[string][]types.Revision{}
	var names []string
	for _, revision := range ordered {
		name := revision.Manifest.Metadata.Name
		if _, ok := byName[name]; !ok {
			names = append(names, name)
		}
		byName[name] = append(byName[name], revision)
	}
	for _, name := range names {
		history := byName[name]
		for i := 1; i < len(history); i++ {
			findings = append(findings, lintTransition(history[i-1], history[i])...)
		}
		findings = append(findings, lintIdentity(name, history)...)
	}
	log.Ctx(ctx).Debug().Int("revisions", len(revisions)).Int("findings", len(findings)).Msg("revisions linted")
	return findings
}

// HasFailures reports whether findings should fail a lint run.  Errors
// always fail; warnings fail only in strict mode.
func HasFailures(findings []types.Finding, strict bool) bool {
	for _, finding := range findings {
		if finding.Severity == types.SeverityError {
			return true
		}
		if strict && finding.Severity == types.SeverityWarning {
			return true
		}
	}
	return false
}

func lintRevision(revision types.Revision) []types.Finding {
	var findings []types.Finding
	manifest := revision.Manifest
	if err := ValidateChecksumFormat(manifest.Source.SHA256); err != nil {
		findings = append(findings, types.Finding{
			Code:     types.LintChecksumFormat,
			Severity: types.SeverityError,
			Revision: revision.Label,
			Message:  errorText(err),
		})
	}
	if IsPlaceholderChecksum(manifest.Source.SHA256) || isPlaceholderPrefix(manifest.Source.SHA256) {
		findings = append(findings, types.Finding{
			Code:     types.LintChecksumPlaceholder,
			Severity: types.SeverityError,
			Revision: revision.Label,
			Message:  fmt.Sprintf("sha256 %s is a placeholder, not the digest of %s", manifest.Source.SHA256, manifest.Source.URL),
		})
	}
	if !hasBareRename(manifest) {
		findings = append(findings, types.Finding{
			Code:     types.LintRenameMissing,
			Severity: types.SeverityError,
			Revision: revision.Label,
			Message:  fmt.Sprintf("no install mapping renames the script to %s", manifest.Metadata.Name),
		})
	}
	return findings
}

func lintTransition(previous types.Revision, current types.Revision) []types.Finding {
	var findings []types.Finding
	if previous.Version != "" && previous.Version == current.Version &&
		NormalizeChecksum(previous.Manifest.Source.SHA256) != NormalizeChecksum(current.Manifest.Source.SHA256) {
		findings = append(findings, types.Finding{
			Code:     types.LintVersionRegression,
			Severity: types.SeverityError,
			Revision: current.Label,
			Message:  fmt.Sprintf("version %s is declared with two different checksums (also in %s)", current.Version, previous.Label),
		})
	}
	if previous.Manifest.Metadata.Homepage != current.Manifest.Metadata.Homepage {
		findings = append(findings, types.Finding{
			Code:     types.LintHomepageDrift,
			Severity: types.SeverityWarning,
			Revision: current.Label,
			Message: fmt.Sprintf("homepage changed from %s to %s",
				previous.Manifest.Metadata.Homepage, current.Manifest.Metadata.Homepage),
		})
	}
	findings = append(findings, lintDependencies(previous, current)...)
	for _, mapping := range previous.Manifest.Install {
		if slices.Contains(current.Manifest.Install, mapping) {
			continue
		}
		findings = append(findings, types.Finding{
			Code:     types.LintInstallStepRemoved,
			Severity: types.SeverityInfo,
			Revision: current.Label,
			Message:  fmt.Sprintf("install step %s -> %s (%s) from %s is no longer present", mapping.From, mapping.To, mapping.Kind, previous.Label),
		})
	}
	return findings
}

func lintDependencies(previous types.Revision, current types.Revision) []types.Finding {
	before := dependencyVersions(previous.Manifest)
	after := dependencyVersions(current.Manifest)
	var findings []types.Finding
	for _, raw := range current.Manifest.DependsOn {
		dep, err := ParseRuntimeDependency(raw)
		if err != nil || dep.Version == "" {
			continue
		}
		old, ok := before[dep.Name]
		if !ok || old == "" {
			continue
		}
		cmp, err := CompareRuntimeVersions(old, after[dep.Name])
		if err != nil || cmp <= 0 {
			continue
		}
		findings = append(findings, types.Finding{
			Code:     types.LintDependencyDowngrade,
			Severity: types.SeverityWarning,
			Revision: current.Label,
			Message:  fmt.Sprintf("%s downgraded from %s@%s to %s", dep.Name, dep.Name, old, dep.Raw),
		})
	}
	return findings
}

// lintIdentity summarises homepage drift: one package name tied to
// several upstream repositories.
func lintIdentity(name string, history []types.Revision) []types.Finding {
	var homepages []string
	for _, revision := range history {
		homepage := revision.Manifest.Metadata.Homepage
		if homepage != "" && !slices.Contains(homepages, homepage) {
			homepages = append(homepages, homepage)
		}
	}
	if len(homepages) < 2 {
		return nil
	}
	return []types.Finding{{
		Code:     types.LintHomepageDrift,
		Severity: types.SeverityWarning,
		Revision: history[len(history)-1].Label,
		Message:  fmt.Sprintf("package %s is associated with %d upstream repositories: %v", name, len(homepages), homepages),
	}}
}

func dependencyVersions(manifest types.Manifest) map[string]string {
	out := map[string]string{}
	for _, raw := range manifest.DependsOn {
		dep, err := ParseRuntimeDependency(raw)
		if err != nil {
			continue
		}
		out[dep.Name] = dep.Version
	}
	return out
}

func hasBareRename(manifest types.Manifest) bool {
	for _, mapping := range manifest.Install {
		if mapping.Kind == types.InstallKindBin && mapping.To == manifest.Metadata.Name {
			return true
		}
	}
	return false
}

// isPlaceholderPrefix catches mis-sized placeholders whose tail breaks
// the repeating pattern.
func isPlaceholderPrefix(value string) bool {
	normalized := NormalizeChecksum(value)
	if len(normalized) == sha256HexLength || len(normalized) < 2*maxPlaceholderPeriod {
		return false
	}
	return IsPlaceholderChecksum(normalized[:2*maxPlaceholderPeriod])
}

func errorText(err error) string {
	var builder *errbuilder.ErrBuilder
	if errors.As(err, &builder) && builder.Msg != "" {
		return builder.Msg
	}
	return err.Error()
}
