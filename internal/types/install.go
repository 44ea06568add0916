package types

import (
	"io/fs"
	"time"
)

type FetchResult struct {
	Path   string
	SHA256 string
	Size   int64
	Cached bool
}

type InstalledFile struct {
	Path string `json:"path"`
	Mode uint32 `json:"mode"`
}

type InstallReceipt struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Version      string                 `json:"version"`
	SourceURL    string                 `json:"source_url"`
	SHA256       string                 `json:"sha256"`
	Prefix       string                 `json:"prefix"`
	Dependencies []DependencyResolution `json:"dependencies,omitempty"`
	Files        []InstalledFile        `json:"files"`
	Status       InstallStatus          `json:"status"`
	TestOutput   string                 `json:"test_output,omitempty"`
	InstalledAt  time.Time              `json:"installed_at"`
	TestedAt     *time.Time             `json:"tested_at,omitempty"`
}

type SmokeTestResult struct {
	Command  []string
	ExitCode int
	Output   string
	Duration time.Duration
}

// PlannedCopy is one file the installer will place.  Source is relative
// to the archive root, Destination is absolute under the prefix.
type PlannedCopy struct {
	Source      string
	Destination string
	Mode        fs.FileMode
}
