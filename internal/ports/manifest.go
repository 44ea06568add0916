package ports

import "stardate-formula/internal/types"

// ManifestPort loads and stores manifests in either the YAML form or
// the Ruby formula DSL, chosen by file extension.
type ManifestPort interface {
	LoadManifest(path string) (types.Manifest, error)
	WriteManifest(path string, manifest types.Manifest) error

	// UpdateChecksum rewrites only the declared sha256 of the file at
	// path, keeping the rest of the document as written.
	UpdateChecksum(path string, checksum string) error
}

// SchemaPort validates a raw YAML manifest document before it is
// decoded into types.Manifest.
type SchemaPort interface {
	ValidateDocument(data []byte) error
}
