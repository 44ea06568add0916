package app

import (
	"context"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"stardate-formula/internal/core"
)

func (s Service) History(ctx context.Context, req HistoryRequest) (HistoryResult, error) {
	stateDir := strings.TrimSpace(req.StateDir)
	if stateDir == "" {
		return HistoryResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("state directory is required")
	}
	if s.OpenHistory == nil {
		return HistoryResult{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("install history is not available")
	}
	history, err := s.OpenHistory(stateDir)
	if err != nil {
		return HistoryResult{}, err
	}
	defer history.Close()
	entries, err := history.List(ctx, strings.TrimSpace(req.Name), req.Limit)
	if err != nil {
		return HistoryResult{}, err
	}
	return HistoryResult{Entries: entries}, nil
}

// Inspect summarises a manifest, an installed prefix, or both.
func (s Service) Inspect(ctx context.Context, req InspectRequest) (InspectResult, error) {
	manifestPath := strings.TrimSpace(req.ManifestPath)
	prefix := strings.TrimSpace(req.Prefix)
	if manifestPath == "" && prefix == "" {
		return InspectResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("a manifest path or install prefix is required")
	}
	var result InspectResult
	if manifestPath != "" {
		manifest, err := s.loadManifest(manifestPath)
		if err != nil {
			return InspectResult{}, err
		}
		result.Manifest = &manifest
		result.Version = core.ReleaseVersion(manifest)
	}
	if prefix != "" {
		receipt, err := s.Receipts.ReadReceipt(prefix)
		if err != nil {
			return InspectResult{}, err
		}
		result.Receipt = &receipt
		if result.Version == "" {
			result.Version = receipt.Version
		}
	}
	return result, nil
}
