package core

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"slices"
	"strings"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"stardate-formula/internal/types"
)

type ManifestCompiler struct{}

var supportedSchemes = map[string]struct{}{
	"http":  {},
	"https": {},
	"file":  {},
}

func NewManifestCompiler() ManifestCompiler {
	return ManifestCompiler{}
}

// ValidateManifest applies the semantic rules a manifest must satisfy
// before it can drive an install.  Structural rules are enforced
// earlier by the schema validator.
func (c ManifestCompiler) ValidateManifest(ctx context.Context, manifest types.Manifest) error {
	assert.NotEmpty(ctx, manifest.APIVersion, "api_version must be set")
	assert.NotEmpty(ctx, string(manifest.Kind), "kind must be set")
	if manifest.APIVersion != types.ManifestAPIVersion {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported api_version: %s", manifest.APIVersion))
	}
	if manifest.Kind != types.ManifestKindFormula {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported manifest kind: %s", manifest.Kind))
	}
	if !isFormulaName(manifest.Metadata.Name) {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("metadata.name is invalid: %q", manifest.Metadata.Name))
	}
	if err := validateSourceURL(manifest.Source.URL, "source.url"); err != nil {
		return err
	}
	if strings.TrimSpace(manifest.Source.SignatureURL) != "" {
		if err := validateSourceURL(manifest.Source.SignatureURL, "source.signature_url"); err != nil {
			return err
		}
	}
	if err := ValidateChecksum(manifest.Source.SHA256); err != nil {
		return err
	}
	for _, raw := range manifest.DependsOn {
		if _, err := ParseRuntimeDependency(raw); err != nil {
			return err
		}
	}
	if err := validateInstall(manifest); err != nil {
		return err
	}
	if err := validateTest(manifest); err != nil {
		return err
	}
	log.Ctx(ctx).Debug().Str("manifest", manifest.Metadata.Name).Msg("manifest validated")
	return nil
}

func validateSourceURL(raw string, field string) error {
	value := strings.TrimSpace(raw)
	if value == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("%s must be set", field))
	}
	parsed, err := url.Parse(value)
	if err != nil || !parsed.IsAbs() {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("%s must be an absolute URL: %s", field, value))
	}
	if _, ok := supportedSchemes[strings.ToLower(parsed.Scheme)]; !ok {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("%s has unsupported scheme %s", field, parsed.Scheme))
	}
	return nil
}

func validateInstall(manifest types.Manifest) error {
	if len(manifest.Install) == 0 {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("install must contain at least one mapping")
	}
	for _, mapping := range manifest.Install {
		if err := validateMapping(mapping); err != nil {
			return err
		}
	}
	if !slices.Contains(manifest.BinNames(), manifest.Metadata.Name) {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("install must place an executable named %s in bin", manifest.Metadata.Name))
	}
	return nil
}

func validateMapping(mapping types.InstallMapping) error {
	if strings.TrimSpace(mapping.From) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("install mapping from must not be empty")
	}
	if !isRelativeInside(mapping.From) {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("install mapping source escapes the archive: %s", mapping.From))
	}
	switch mapping.Kind {
	case types.InstallKindBin:
		if strings.TrimSpace(mapping.To) == "" || strings.Contains(mapping.To, "/") {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("bin mapping for %s needs a bare destination name", mapping.From))
		}
	case types.InstallKindPrefix:
		if strings.TrimSpace(mapping.To) == "" || !isRelativeInside(mapping.To) {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("prefix mapping for %s needs a relative destination", mapping.From))
		}
	default:
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("install mapping %s has invalid kind %q", mapping.From, mapping.Kind))
	}
	return nil
}

func validateTest(manifest types.Manifest) error {
	if len(manifest.Test.Command) == 0 || strings.TrimSpace(manifest.Test.Command[0]) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("test.command must not be empty")
	}
	binary := manifest.Test.Command[0]
	if !slices.Contains(manifest.BinNames(), binary) {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("test.command runs %s which is not installed to bin", binary))
	}
	return nil
}

func isRelativeInside(value string) bool {
	cleaned := path.Clean(strings.TrimSpace(value))
	if path.IsAbs(cleaned) {
		return false
	}
	return cleaned != ".." && !strings.HasPrefix(cleaned, "../")
}
