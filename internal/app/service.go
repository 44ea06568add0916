package app

import (
	"errors"
	"io"
	"path/filepath"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/uuid"

	"stardate-formula/internal/adapters"
	"stardate-formula/internal/ports"
)

// Config carries the adapter settings NewService needs.  Zero values
// fall back to the adapters' defaults.
type Config struct {
	HTTPTimeoutSec           int
	HTTPRetries              int
	HTTPRetryDelayMs         int
	DependencyInstallCommand string
	Progress                 io.Writer
}

type Service struct {
	Manifests    ports.ManifestPort
	Fetcher      ports.FetcherPort
	Digests      ports.DigestPort
	Signatures   ports.SignaturePort
	Extractor    ports.ExtractorPort
	Installer    ports.FileInstallerPort
	Probe        ports.RuntimeProbePort
	DepInstaller ports.DependencyInstallerPort
	Runner       ports.CommandRunnerPort
	Receipts     ports.ReceiptPort
	OpenHistory  func(stateDir string) (ports.HistoryPort, error)
	Clock        func() time.Time
	NewID        func() string
}

func NewService(cfg Config) Service {
	runner := adapters.NewExecCommandRunnerAdapter()
	return Service{
		Manifests:    adapters.NewManifestFileAdapter(),
		Fetcher:      adapters.NewHTTPFetcherAdapter(cfg.HTTPTimeoutSec, cfg.HTTPRetries, cfg.HTTPRetryDelayMs, cfg.Progress),
		Digests:      adapters.NewFileDigestAdapter(),
		Signatures:   adapters.NewPGPSignatureAdapter(),
		Extractor:    adapters.NewArchiveExtractorAdapter(),
		Installer:    adapters.NewFileInstallerAdapter(),
		Probe:        adapters.NewRuntimeProbeAdapter(),
		DepInstaller: adapters.NewCommandDependencyInstallerAdapter(cfg.DependencyInstallCommand, runner),
		Runner:       runner,
		Receipts:     adapters.NewReceiptFileAdapter(),
		OpenHistory:  openSQLiteHistory,
		Clock:        time.Now,
		NewID:        uuid.NewString,
	}
}

// HistoryFileName is the ledger database inside the state directory.
const HistoryFileName = "history.db"

func openSQLiteHistory(stateDir string) (ports.HistoryPort, error) {
	return adapters.NewHistorySQLiteAdapter(filepath.Join(stateDir, HistoryFileName))
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock()
}

func (s Service) newID() string {
	if s.NewID == nil {
		return uuid.NewString()
	}
	return s.NewID()
}

// errorMessage prefers the errbuilder message over the full error chain.
func errorMessage(err error) string {
	var builder *errbuilder.ErrBuilder
	if errors.As(err, &builder) && builder.Msg != "" {
		return builder.Msg
	}
	return err.Error()
}
