// Package validator checks OCPP 1.6 call payloads against JSON schemas
package validator

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/joomcode/errorx"
)

//go:embed schemas.yml
var defaultSchemas []byte

// SchemaValidator validates payloads of the actions with known schemas.
// Payloads of other actions are accepted as is.
type SchemaValidator struct {
	schemas map[string]*openapi3.Schema
}

// NewSchemaValidator returns a validator for the bundled OCPP 1.6 request schemas
func NewSchemaValidator() (*SchemaValidator, error) {
	return NewSchemaValidatorFromData(defaultSchemas)
}

// NewSchemaValidatorFromData loads schemas from an OpenAPI document (JSON or YAML).
// Each component schema is used for the action with the same name.
func NewSchemaValidatorFromData(data []byte) (*SchemaValidator, error) {
	loader := openapi3.NewLoader()

	doc, err := loader.LoadFromData(data)

	if err != nil {
		return nil, errorx.Decorate(err, "failed to load schemas")
	}

	if err := doc.Validate(context.Background()); err != nil {
		return nil, errorx.Decorate(err, "invalid schemas document")
	}

	v := &SchemaValidator{schemas: make(map[string]*openapi3.Schema)}

	for action, ref := range doc.Components.Schemas {
		if ref == nil || ref.Value == nil {
			continue
		}

		v.schemas[action] = ref.Value
	}

	return v, nil
}

// Actions returns the list of actions with schemas
func (v *SchemaValidator) Actions() []string {
	actions := make([]string, 0, len(v.schemas))

	for action := range v.schemas {
		actions = append(actions, action)
	}

	sort.Strings(actions)

	return actions
}

func (v *SchemaValidator) Validate(action string, payload json.RawMessage) error {
	schema, ok := v.schemas[action]

	if !ok {
		return nil
	}

	var value interface{}

	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	if err := json.Unmarshal(payload, &value); err != nil {
		return fmt.Errorf("payload is not valid JSON: %v", err)
	}

	if err := schema.VisitJSON(value); err != nil {
		return describe(err)
	}

	return nil
}

func describe(err error) error {
	var schemaErr *openapi3.SchemaError

	if !errors.As(err, &schemaErr) {
		return err
	}

	pointer := strings.Join(schemaErr.JSONPointer(), "/")

	if pointer == "" {
		return errors.New(schemaErr.Reason)
	}

	return fmt.Errorf("%s: %s", pointer, schemaErr.Reason)
}
