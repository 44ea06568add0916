package app

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"stardate-formula/internal/adapters"
)

// Convert rewrites a manifest in the format implied by the output
// extension.  The manifest is converted as written; validation is left
// to validate and lint.
func (s Service) Convert(ctx context.Context, req ConvertRequest) (ConvertResult, error) {
	output := strings.TrimSpace(req.OutputPath)
	if output == "" {
		return ConvertResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("output path is required")
	}
	format, err := adapters.FormatForPath(output)
	if err != nil {
		return ConvertResult{}, err
	}
	manifest, err := s.loadManifest(req.InputPath)
	if err != nil {
		return ConvertResult{}, err
	}
	inputAbs, _ := filepath.Abs(manifest.Path)
	outputAbs, _ := filepath.Abs(output)
	if inputAbs == outputAbs {
		return ConvertResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("output path must differ from the input path")
	}
	if err := s.Manifests.WriteManifest(output, manifest); err != nil {
		return ConvertResult{}, err
	}
	log.Ctx(ctx).Info().Str("input", manifest.Path).Str("output", output).Str("format", string(format)).Msg("manifest converted")
	return ConvertResult{Name: manifest.Metadata.Name, Format: format}, nil
}
