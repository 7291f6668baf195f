package earnings

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const payloadSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["quarterlyEarnings"],
  "properties": {
    "symbol": {"type": "string"},
    "quarterlyEarnings": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["fiscalDateEnding", "reportedDate"],
        "properties": {
          "fiscalDateEnding":   {"type": "string"},
          "reportedDate":       {"type": "string"},
          "reportedEPS":        {"type": ["string", "number", "null"]},
          "estimatedEPS":       {"type": ["string", "number", "null"]},
          "surprise":           {"type": ["string", "number", "null"]},
          "surprisePercentage": {"type": ["string", "number", "null"]}
        }
      }
    }
  }
}`

func compilePayloadSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("earnings.json", strings.NewReader(payloadSchema)); err != nil {
		return nil, err
	}
	return compiler.Compile("earnings.json")
}
