package state

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/state.schema.json
var stateSchemaJSON []byte

const stateSchemaURL = "state.schema.json"

func compileStateSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	if err := compiler.AddResource(stateSchemaURL, bytes.NewReader(stateSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add state schema: %w", err)
	}
	schema, err := compiler.Compile(stateSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile state schema: %w", err)
	}
	return schema, nil
}

// validateDocument checks raw JSON against the state schema. Numbers are
// decoded as json.Number so that integer values keep full precision.
func validateDocument(schema *jsonschema.Schema, data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return err
	}
	return schema.Validate(doc)
}
