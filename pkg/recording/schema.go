package recording

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ControlMessageSchema is the JSON Schema for the shape of a control message.
// type and action are checked separately so they can map to their own
// protocol errors.
const ControlMessageSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "type": { "type": "string" },
    "action": { "type": "string" },
    "sessionId": { "type": ["string", "null"] },
    "fileName": { "type": ["string", "null"] },
    "userId": { "type": ["string", "null"] },
    "source": { "type": ["string", "null"] },
    "sampleRate": { "type": ["integer", "null"] },
    "channels": { "type": ["integer", "null"] }
  }
}`

var controlSchemaLoader = gojsonschema.NewStringLoader(ControlMessageSchema)

// validateControlSchema checks params against ControlMessageSchema.
func validateControlSchema(params map[string]interface{}) error {
	result, err := gojsonschema.Validate(controlSchemaLoader, gojsonschema.NewGoLoader(params))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return fmt.Errorf("%s", strings.Join(details, "; "))
	}

	return nil
}
