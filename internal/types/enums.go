package types

const ManifestAPIVersion = "v1"

type ManifestKind string

const (
	ManifestKindFormula ManifestKind = "formula"
)

type InstallKind string

const (
	InstallKindBin    InstallKind = "bin"
	InstallKindPrefix InstallKind = "prefix"
)

type ManifestFormat string

const (
	ManifestFormatYAML    ManifestFormat = "yaml"
	ManifestFormatFormula ManifestFormat = "formula"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

type LintCode string

const (
	LintChecksumFormat      LintCode = "checksum-format"
	LintChecksumPlaceholder LintCode = "checksum-placeholder"
	LintHomepageDrift       LintCode = "homepage-drift"
	LintDependencyDowngrade LintCode = "dependency-downgrade"
	LintInstallStepRemoved  LintCode = "install-step-removed"
	LintRenameMissing       LintCode = "rename-missing"
	LintVersionRegression   LintCode = "version-regression"
)

type InstallStatus string

const (
	InstallStatusInstalled  InstallStatus = "installed"
	InstallStatusTestFailed InstallStatus = "test_failed"
	InstallStatusFailed     InstallStatus = "failed"
)

type ArchiveFormat string

const (
	ArchiveFormatTarGz  ArchiveFormat = "tar.gz"
	ArchiveFormatTarXz  ArchiveFormat = "tar.xz"
	ArchiveFormatTarZst ArchiveFormat = "tar.zst"
	ArchiveFormatTar    ArchiveFormat = "tar"
	ArchiveFormatFile   ArchiveFormat = "file"
)
