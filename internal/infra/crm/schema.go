package crm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"membership_sync/internal/domain/syncerr"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const tokenSchemaJSON = `{
	"type": "object",
	"required": ["access_token"],
	"properties": {
		"access_token": {"type": "string", "minLength": 1},
		"expires_in": {"type": "integer", "minimum": 0}
	}
}`

// The records endpoint reports failures in-band, so the status code is checked
// on its own before the payload shape.
const statusSchemaJSON = `{
	"type": "object",
	"required": ["code"],
	"properties": {
		"code": {"type": "integer", "minimum": 0}
	}
}`

const recordsSchemaJSON = `{
	"type": "object",
	"required": ["data"],
	"properties": {
		"data": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["Email"],
				"properties": {
					"Email": {"type": "string", "minLength": 1}
				}
			}
		}
	}
}`

var (
	tokenSchema   = mustCompileSchema("token", tokenSchemaJSON)
	statusSchema  = mustCompileSchema("status", statusSchemaJSON)
	recordsSchema = mustCompileSchema("records", recordsSchemaJSON)
)

func mustCompileSchema(name, schema string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	schemaURL := fmt.Sprintf("https://membership-sync.schemas.local/crm/%s.schema.json", name)
	if err := c.AddResource(schemaURL, strings.NewReader(schema)); err != nil {
		panic(fmt.Sprintf("crm schema %s load failed: %v", name, err))
	}
	return c.MustCompile(schemaURL)
}

// validate decodes body and checks it against schema. Both decode and
// validation failures are reported as SchemaValidationError.
func validate(subject string, schema *jsonschema.Schema, body []byte) error {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return &syncerr.SchemaValidationError{Subject: subject, Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	if err := schema.Validate(doc); err != nil {
		return &syncerr.SchemaValidationError{Subject: subject, Err: err}
	}
	return nil
}
