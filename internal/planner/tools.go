// internal/planner/tools.go
package planner

import (
	openai "github.com/sashabaranov/go-openai"

	"github.com/xkilldash9x/docent/api/schemas"
)

// toolDeclarations mirrors the engine's closed action set in the OpenAI
// function-calling shape. The parameter schemas stay loose on purpose:
// argument validation happens executor-side, where a failure becomes a tool
// result the model can read and react to instead of a protocol error.
func toolDeclarations() []openai.Tool {
	return []openai.Tool{
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        string(schemas.ActionScrollBy),
				Description: "Scroll the page vertically by a pixel delta. Positive scrolls down, negative scrolls up.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"delta": map[string]any{
							"type":        "number",
							"description": "Vertical scroll distance in pixels.",
						},
					},
					"required": []string{"delta"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        string(schemas.ActionNavigateToSection),
				Description: "Bring a page section into view and update the location fragment. Use a section id from the snapshot.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"sectionId": map[string]any{
							"type":        "string",
							"description": "The id of the target section, without the leading '#'.",
						},
					},
					"required": []string{"sectionId"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        string(schemas.ActionClickElement),
				Description: "Click a visible element such as a link or button. Provide a selector from the snapshot, or visible text to search for.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"selector": map[string]any{
							"type":        "string",
							"description": "CSS selector of the element, preferably one listed in the snapshot.",
						},
						"text": map[string]any{
							"type":        "string",
							"description": "Visible text identifying the element when no selector fits.",
						},
					},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        string(schemas.ActionHighlightElement),
				Description: "Scroll an element into view and flash a temporary highlight on it. Use it to point at things while you explain them.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"selector": map[string]any{
							"type":        "string",
							"description": "CSS selector of the element, preferably one listed in the snapshot.",
						},
						"text": map[string]any{
							"type":        "string",
							"description": "Visible text identifying the element when no selector fits.",
						},
					},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        string(schemas.ActionFillInput),
				Description: "Fill one form field, or several at once via the values object. Field names come from the snapshot's inputName entries.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"selector": map[string]any{
							"type":        "string",
							"description": "CSS selector of a single input to fill.",
						},
						"fieldName": map[string]any{
							"type":        "string",
							"description": "Name, label, or placeholder of a single input to fill.",
						},
						"value": map[string]any{
							"type":        "string",
							"description": "The value for the single targeted input.",
						},
						"values": map[string]any{
							"type":        "object",
							"description": "Map of field name to value for filling several inputs in one call.",
						},
					},
				},
			},
		},
	}
}
