package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
)

// Uninstall removes every file the receipt in prefix lists, then the
// receipt itself and the prefix when it is left empty.
func (s Service) Uninstall(ctx context.Context, req UninstallRequest) (UninstallResult, error) {
	prefix := strings.TrimSpace(req.Prefix)
	if prefix == "" {
		return UninstallResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("install prefix is required")
	}
	if abs, err := filepath.Abs(prefix); err == nil {
		prefix = abs
	}
	receipt, err := s.Receipts.ReadReceipt(prefix)
	if err != nil {
		return UninstallResult{}, err
	}
	if err := s.Installer.Remove(ctx, prefix, receipt.Files); err != nil {
		return UninstallResult{}, err
	}
	if err := s.Receipts.RemoveReceipt(prefix); err != nil {
		return UninstallResult{}, err
	}
	// only succeeds when nothing else lives in the prefix
	_ = os.Remove(prefix)
	log.Ctx(ctx).Info().Str("manifest", receipt.Name).Str("prefix", prefix).Int("files", len(receipt.Files)).Msg("uninstalled")
	return UninstallResult{Name: receipt.Name, Removed: len(receipt.Files)}, nil
}
