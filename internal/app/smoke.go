package app

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"stardate-formula/internal/shared"
	"stardate-formula/internal/types"
)

// Test reruns the smoke test of an installed manifest.  When the prefix
// holds a receipt its status follows the outcome.
func (s Service) Test(ctx context.Context, req TestRequest) (TestResult, error) {
	manifest, err := s.loadValidManifest(ctx, req.ManifestPath)
	if err != nil {
		return TestResult{}, err
	}
	prefix := strings.TrimSpace(req.Prefix)
	if prefix == "" {
		return TestResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("install prefix is required")
	}
	if abs, err := filepath.Abs(prefix); err == nil {
		prefix = abs
	}
	result, testErr := s.runSmokeTest(ctx, manifest, prefix, req.Timeout)
	s.updateReceiptAfterTest(ctx, prefix, manifest.Metadata.Name, result, testErr)
	return TestResult{Name: manifest.Metadata.Name, Result: result}, testErr
}

func (s Service) updateReceiptAfterTest(ctx context.Context, prefix string, name string, result types.SmokeTestResult, testErr error) {
	if s.Receipts == nil {
		return
	}
	receipt, err := s.Receipts.ReadReceipt(prefix)
	if err != nil || receipt.Name != name {
		return
	}
	testedAt := s.now().UTC()
	receipt.TestedAt = &testedAt
	receipt.TestOutput = shared.Truncate(result.Output, 4096)
	receipt.Status = types.InstallStatusInstalled
	if testErr != nil {
		receipt.Status = types.InstallStatusTestFailed
	}
	if err := s.Receipts.WriteReceipt(receipt); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("failed to update install receipt")
	}
}
