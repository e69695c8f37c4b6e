// Package schemavalidation checks session output against the published
// JSON schema.
//
// The schema lives in schema/output-v1.schema.json and is compiled once.
// The REPL validates every reply when started with --validate, and the
// tests run real session traffic through it.
package schemavalidation

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// OutputSchemaURL identifies the output schema.
const OutputSchemaURL = "https://henkan.dev/schema/output-v1.schema.json"

//go:embed schema/output-v1.schema.json
var outputSchema []byte

// Validator validates values against one compiled schema.
type Validator struct {
	schema *jsonschema.Schema
}

var compileOutput = sync.OnceValues(func() (*Validator, error) {
	return Compile(OutputSchemaURL, outputSchema)
})

// Output returns the validator for session output.
func Output() (*Validator, error) {
	return compileOutput()
}

// Compile builds a validator from a draft 2020-12 schema document.
func Compile(url string, schema []byte) (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(url, bytes.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	s, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: s}, nil
}

// Validate marshals v to JSON and validates the result.
func (v *Validator) Validate(value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal instance: %w", err)
	}
	return v.ValidateJSON(data)
}

// ValidateJSON validates an encoded document.
func (v *Validator) ValidateJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var instance any
	if err := dec.Decode(&instance); err != nil {
		return fmt.Errorf("unmarshal instance: %w", err)
	}
	if err := v.schema.Validate(instance); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
