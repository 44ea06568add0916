package adapters

import (
	_ "embed"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"stardate-formula/internal/ports"
)

const manifestSchemaURL = "manifest.schema.json"

//go:embed schema/manifest.schema.json
var manifestSchema string

var (
	compiledSchemaOnce sync.Once
	compiledSchema     *jsonschema.Schema
	compiledSchemaErr  error
)

// SchemaValidatorAdapter checks manifest documents against the embedded
// JSON schema.  YAML is converted to its JSON data model first.
type SchemaValidatorAdapter struct{}

func NewSchemaValidatorAdapter() SchemaValidatorAdapter {
	return SchemaValidatorAdapter{}
}

func (a SchemaValidatorAdapter) ValidateDocument(data []byte) error {
	schema, err := manifestSchemaCompiled()
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to compile manifest schema").
			WithCause(err)
	}
	doc, err := yamlToJSONValue(data)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to parse manifest yaml").
			WithCause(err)
	}
	if err := schema.Validate(doc); err != nil {
		log.Debug().Err(err).Msg("manifest schema violation")
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("manifest does not match schema: " + schemaViolation(err)).
			WithCause(err)
	}
	return nil
}

func manifestSchemaCompiled() (*jsonschema.Schema, error) {
	compiledSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = true
		if err := compiler.AddResource(manifestSchemaURL, strings.NewReader(manifestSchema)); err != nil {
			compiledSchemaErr = err
			return
		}
		compiledSchema, compiledSchemaErr = compiler.Compile(manifestSchemaURL)
	})
	return compiledSchema, compiledSchemaErr
}

// yamlToJSONValue round-trips through encoding/json so the validator
// sees float64 numbers and map[string]interface{} objects.
func yamlToJSONValue(data []byte) (interface{}, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var doc interface{}
	if err := json.Unmarshal(encoded, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func schemaViolation(err error) string {
	var validation *jsonschema.ValidationError
	if errors.As(err, &validation) {
		leaf := validation
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		location := leaf.InstanceLocation
		if location == "" {
			location = "/"
		}
		return location + ": " + leaf.Message
	}
	return err.Error()
}

var _ ports.SchemaPort = SchemaValidatorAdapter{}
