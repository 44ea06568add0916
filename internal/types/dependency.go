package types

// RuntimeDependency is a parsed depends_on entry such as "python@3.10".
type RuntimeDependency struct {
	Raw     string
	Name    string
	Version string
}

// DependencyResolution records how a runtime dependency was satisfied.
type DependencyResolution struct {
	Dependency string `json:"dependency"`
	Executable string `json:"executable"`
	Version    string `json:"version,omitempty"`
	Installed  bool   `json:"installed,omitempty"`
}
