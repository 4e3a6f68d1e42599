package template

import (
	"errors"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// manifestSchemaJSON is the structural contract for template manifests.
// Semantic checks (schema_version range, duplicate item ids) live in Go.
const manifestSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["schema_version", "template"],
  "properties": {
    "schema_version": {"type": "string", "minLength": 1},
    "template": {
      "type": "object",
      "required": ["id", "name", "version", "sections"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "name": {"type": "string", "minLength": 1},
        "description": {"type": "string"},
        "version": {"type": "string", "minLength": 1},
        "sections": {
          "type": "array",
          "minItems": 1,
          "items": {
            "type": "object",
            "required": ["id", "title", "items"],
            "properties": {
              "id": {"type": "string", "minLength": 1},
              "title": {"type": "string"},
              "items": {
                "type": "array",
                "items": {
                  "type": "object",
                  "required": ["id", "prompt"],
                  "properties": {
                    "id": {"type": "string", "minLength": 1},
                    "prompt": {"type": "string", "minLength": 1},
                    "required": {"type": "boolean"},
                    "evidence_required_on_fail": {"type": "boolean"}
                  },
                  "additionalProperties": false
                }
              }
            },
            "additionalProperties": false
          }
        }
      },
      "additionalProperties": false
    }
  },
  "additionalProperties": false
}`

var manifestSchema = jsonschema.MustCompileString("template-manifest.json", manifestSchemaJSON)

func asValidationError(err error, target **jsonschema.ValidationError) bool {
	return errors.As(err, target)
}

// firstCause walks to the most specific leaf of a validation error, which
// reads better in API responses than the full tree.
func firstCause(ve *jsonschema.ValidationError) string {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return strings.TrimSpace(loc + ": " + ve.Message)
}
