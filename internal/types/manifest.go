package types

type Metadata struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Homepage    string `yaml:"homepage,omitempty" json:"homepage,omitempty"`

	// Version is optional.  When empty the release version is derived
	// from the source URL (e.g. ".../download/v1.0.0/stardate-1.0.0.tar.gz").
	Version string `yaml:"version,omitempty" json:"version,omitempty"`
}

type Source struct {
	URL    string `yaml:"url" json:"url"`
	SHA256 string `yaml:"sha256" json:"sha256"`

	// SignatureURL points at an armored detached OpenPGP signature of
	// the artifact.  Verification only happens when a keyring is
	// configured.
	SignatureURL string `yaml:"signature_url,omitempty" json:"signature_url,omitempty"`
}

// InstallMapping copies a path from the extracted archive into the
// install prefix.  For kind "bin" the source is a single file installed
// as <prefix>/bin/<to>; for kind "prefix" the source is a glob and every
// match lands in <prefix>/<to>/.
type InstallMapping struct {
	From string      `yaml:"from" json:"from"`
	To   string      `yaml:"to" json:"to"`
	Kind InstallKind `yaml:"kind" json:"kind"`
}

type TestInvocation struct {
	Command []string `yaml:"command" json:"command"`
}

type Manifest struct {
	APIVersion string           `yaml:"api_version" json:"api_version"`
	Kind       ManifestKind     `yaml:"kind" json:"kind"`
	Metadata   Metadata         `yaml:"metadata" json:"metadata"`
	Source     Source           `yaml:"source" json:"source"`
	DependsOn  []string         `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Install    []InstallMapping `yaml:"install" json:"install"`
	Test       TestInvocation   `yaml:"test" json:"test"`

	// Path is the file the manifest was loaded from.  It is not part of
	// the document.
	Path string `yaml:"-" json:"-"`
}

// BinNames returns the destination names of every bin mapping.
func (m Manifest) BinNames() []string {
	var names []string
	for _, mapping := range m.Install {
		if mapping.Kind == InstallKindBin {
			names = append(names, mapping.To)
		}
	}
	return names
}
