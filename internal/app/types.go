package app

import (
	"time"

	"stardate-formula/internal/types"
)

type ValidateRequest struct {
	ManifestPath string
}

type ValidateResult struct {
	Name    string
	Version string
	Format  types.ManifestFormat
}

type LintRequest struct {
	ManifestPaths []string
	Strict        bool
}

type LintResult struct {
	Revisions []string
	Findings  []types.Finding
}

type FetchRequest struct {
	ManifestPath string
	CacheDir     string
	Keyring      string
}

type FetchResult struct {
	Name   string
	Path   string
	SHA256 string
	Size   int64
	Cached bool
	Signer string
}

type InstallRequest struct {
	ManifestPath     string
	Prefix           string
	CacheDir         string
	StateDir         string
	Keyring          string
	SkipDependencies bool
	SkipTest         bool
	TestTimeout      time.Duration
}

type InstallResult struct {
	Receipt types.InstallReceipt
	// Removed lists files of a previous install of the same package that
	// the new manifest no longer places.
	Removed []types.InstalledFile
	Test    *types.SmokeTestResult
}

type TestRequest struct {
	ManifestPath string
	Prefix       string
	Timeout      time.Duration
}

type TestResult struct {
	Name   string
	Result types.SmokeTestResult
}

type UninstallRequest struct {
	Prefix string
}

type UninstallResult struct {
	Name    string
	Removed int
}

type ChecksumRequest struct {
	// Target is a local file or a URL.  When empty the manifest's
	// source.url is used.
	Target       string
	ManifestPath string
	Write        bool
}

type ChecksumResult struct {
	Target   string
	SHA256   string
	Size     int64
	Previous string
	Written  bool
}

type ConvertRequest struct {
	InputPath  string
	OutputPath string
}

type ConvertResult struct {
	Name   string
	Format types.ManifestFormat
}

type HistoryRequest struct {
	StateDir string
	Name     string
	Limit    int
}

type HistoryResult struct {
	Entries []types.HistoryEntry
}

type InspectRequest struct {
	ManifestPath string
	Prefix       string
}

type InspectResult struct {
	Manifest *types.Manifest
	Version  string
	Receipt  *types.InstallReceipt
}
