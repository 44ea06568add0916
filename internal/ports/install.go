package ports

import (
	"context"

	"stardate-formula/internal/types"
)

// ExtractorPort unpacks a downloaded artifact into a staging directory.
// Artifacts that are not archives are copied in as a single file named
// after the URL's base name.
type ExtractorPort interface {
	Extract(ctx context.Context, artifactPath string, name string, destDir string) (types.ArchiveFormat, error)
}

// FileInstallerPort places planned files under the prefix.  On failure
// every file it already placed is removed again.
type FileInstallerPort interface {
	Apply(ctx context.Context, archiveRoot string, plan []types.PlannedCopy) ([]types.InstalledFile, error)
	Remove(ctx context.Context, prefix string, files []types.InstalledFile) error
}
