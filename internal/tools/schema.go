package tools

import (
	"sort"

	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/netsuite-assist/coordinator/pkg/models"
)

// jsonSchemaType maps a ToolDescriptor param's declared type to its JSON
// Schema primitive. Unrecognized types fall back to "string" rather than
// failing the whole tool schema.
func jsonSchemaType(paramType string) string {
	switch paramType {
	case "int", "integer", "number":
		return "integer"
	case "bool", "boolean":
		return "boolean"
	case "array":
		return "array"
	case "object":
		return "object"
	default:
		return "string"
	}
}

// ParamsSchema builds the JSON Schema an LLM provider uses to present a
// tool's argument object, derived from the descriptor's allowlisted
// parameters. Parameter names are sorted and inserted into an OrderedMap,
// so property order does not follow Go map iteration and repeated calls for
// the same descriptor produce stable output, matching invopop/jsonschema's
// own Reflect output shape.
func ParamsSchema(desc models.ToolDescriptor) *jsonschema.Schema {
	props := orderedmap.New[string, *jsonschema.Schema]()
	required := make([]string, 0, len(desc.Params))

	names := make([]string, 0, len(desc.Params))
	for name := range desc.Params {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec := desc.Params[name]
		propSchema := &jsonschema.Schema{Type: jsonSchemaType(spec.Type)}
		if spec.Default != nil {
			propSchema.Default = spec.Default
		}
		props.Set(name, propSchema)
		if spec.Required {
			required = append(required, name)
		}
	}

	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}
