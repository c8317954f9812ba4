// Package audit validates verification results before they are persisted.
package audit

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/devkiraa/makeTicket-sub003/internal/verify"
)

//go:embed result.schema.json
var resultSchemaJSON []byte

const resultSchemaURL = "result.schema.json"

var compileResultSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resultSchemaURL, bytes.NewReader(resultSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(resultSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
})

// ValidateResultJSON checks a serialized verify.Result against the audit schema.
func ValidateResultJSON(data []byte) error {
	schema, err := compileResultSchema()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("result does not match schema: %w", err)
	}
	return nil
}

// MarshalResult serializes r and validates it in one step.
func MarshalResult(r verify.Result) ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	if err := ValidateResultJSON(b); err != nil {
		return nil, err
	}
	return b, nil
}
