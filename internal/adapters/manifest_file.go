package adapters

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"stardate-formula/internal/ports"
	"stardate-formula/internal/types"
)

// ManifestFileAdapter loads manifests from YAML documents or Ruby
// formula files, picking the codec from the file extension.
type ManifestFileAdapter struct {
	Schema  ports.SchemaPort
	Formula FormulaFileAdapter
}

func NewManifestFileAdapter() ManifestFileAdapter {
	return ManifestFileAdapter{
		Schema:  NewSchemaValidatorAdapter(),
		Formula: NewFormulaFileAdapter(),
	}
}

// FormatForPath maps a file extension to a manifest format.
func FormatForPath(path string) (types.ManifestFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return types.ManifestFormatYAML, nil
	case ".rb":
		return types.ManifestFormatFormula, nil
	default:
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported manifest extension: %s", path))
	}
}

func (a ManifestFileAdapter) LoadManifest(path string) (types.Manifest, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return types.Manifest{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Manifest{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("manifest file not found").
			WithCause(err)
	}
	if format == types.ManifestFormatFormula {
		return a.Formula.Parse(path, data)
	}
	if a.Schema != nil {
		if err := a.Schema.ValidateDocument(data); err != nil {
			return types.Manifest{}, err
		}
	}
	var manifest types.Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return types.Manifest{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to parse manifest yaml").
			WithCause(err)
	}
	manifest.Path = path
	return manifest, nil
}

func (a ManifestFileAdapter) WriteManifest(path string, manifest types.Manifest) error {
	format, err := FormatForPath(path)
	if err != nil {
		return err
	}
	var data []byte
	switch format {
	case types.ManifestFormatFormula:
		data, err = a.Formula.Render(manifest)
		if err != nil {
			return err
		}
	default:
		var buf bytes.Buffer
		encoder := yaml.NewEncoder(&buf)
		encoder.SetIndent(2)
		if err := encoder.Encode(manifest); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to marshal manifest yaml").
				WithCause(err)
		}
		if err := encoder.Close(); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to marshal manifest yaml").
				WithCause(err)
		}
		data = buf.Bytes()
	}
	return writeFileAtomic(path, data, 0o644)
}

func (a ManifestFileAdapter) UpdateChecksum(path string, checksum string) error {
	format, err := FormatForPath(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("manifest file not found").
			WithCause(err)
	}
	var updated []byte
	if format == types.ManifestFormatFormula {
		updated, err = a.Formula.ReplaceChecksum(data, checksum)
	} else {
		updated, err = replaceYAMLChecksum(data, checksum)
	}
	if err != nil {
		return err
	}
	return writeFileAtomic(path, updated, 0o644)
}

// replaceYAMLChecksum edits source.sha256 through the node tree so
// comments and key order survive.
func replaceYAMLChecksum(data []byte, checksum string) ([]byte, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to parse manifest yaml").
			WithCause(err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("manifest yaml is empty")
	}
	source := mappingValue(root.Content[0], "source")
	if source == nil || source.Kind != yaml.MappingNode {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("manifest yaml has no source mapping")
	}
	sha := mappingValue(source, "sha256")
	if sha == nil {
		source.Content = append(source.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: "sha256"},
			&yaml.Node{Kind: yaml.ScalarNode, Value: checksum},
		)
	} else {
		sha.Value = checksum
		sha.Style = 0
	}
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&root); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to marshal manifest yaml").
			WithCause(err)
	}
	if err := encoder.Close(); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to marshal manifest yaml").
			WithCause(err)
	}
	return buf.Bytes(), nil
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create directory").
			WithCause(err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create temp file").
			WithCause(err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write file").
			WithCause(err)
	}
	if err := tmp.Close(); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write file").
			WithCause(err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to set file mode").
			WithCause(err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to replace file").
			WithCause(err)
	}
	return nil
}

var _ ports.ManifestPort = ManifestFileAdapter{}
