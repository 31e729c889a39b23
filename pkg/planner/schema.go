package planner

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// planSchema validates the model's plan JSON before it is trusted.
// The steps enum structurally excludes the orchestrator.
const planSchema = `{
	"type": "object",
	"properties": {
		"mode": {
			"type": "string",
			"enum": ["direct", "delegate"]
		},
		"direct_answer": {
			"type": "string"
		},
		"steps": {
			"type": "array",
			"items": {
				"type": "string",
				"enum": ["analyst", "writer", "reviewer"]
			}
		}
	},
	"required": ["mode"],
	"additionalProperties": false
}`

var compiledPlanSchema = gojsonschema.NewStringLoader(planSchema)

// validatePlanJSON checks raw classifier output against the plan schema.
func validatePlanJSON(raw string) error {
	result, err := gojsonschema.Validate(compiledPlanSchema, gojsonschema.NewStringLoader(raw))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		errs := result.Errors()
		if len(errs) > 0 {
			return fmt.Errorf("plan does not match schema: %s", errs[0].String())
		}
		return fmt.Errorf("plan does not match schema")
	}
	return nil
}
