// Package registry implements the three MCP catalogs: tools, resources,
// and prompts. Tools and prompts are registered explicitly (typically
// from the embedding host's init paths); a tool's argument struct is
// inspected via reflect and `mcp` struct tags to build its published
// JSON schema and coercion plan.
package registry

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/mcphost/bridge/pkg/protocol"
)

// ParameterDescriptor describes one formal parameter of a tool, built by
// reflecting over the handler's argument struct.
type ParameterDescriptor struct {
	Name        string
	Description string
	Type        string // string|integer|number|boolean|array|object
	Required    bool
	Default     any
	Enum        []any
	Min         *float64
	Max         *float64
	ItemType    string

	// Nested holds the object-typed field's own parameters, when the Go
	// field is a struct rather than a primitive; it lets an object
	// argument publish (and be validated against) a real nested schema
	// instead of an opaque "type: object".
	Nested []*ParameterDescriptor

	fieldIndex []int
	fieldType  reflect.Type
}

// Schema renders the descriptor as a JSON-Schema property.
func (p *ParameterDescriptor) Schema() *protocol.JSONSchema {
	s := &protocol.JSONSchema{
		Type:        p.Type,
		Description: p.Description,
		Enum:        p.Enum,
		Default:     p.Default,
		Minimum:     p.Min,
		Maximum:     p.Max,
	}
	if p.Type == "array" {
		s.Items = &protocol.JSONSchema{Type: p.ItemType}
	}
	if p.Type == "object" && len(p.Nested) > 0 {
		s.Properties = make(map[string]*protocol.JSONSchema, len(p.Nested))
		for _, np := range p.Nested {
			s.Properties[np.Name] = np.Schema()
			if np.Required {
				s.Required = append(s.Required, np.Name)
			}
		}
	}
	return s
}

// ToolHints carries a tool's optional semantic hints.
type ToolHints struct {
	Title       string
	ReadOnly    bool
	Destructive bool
	Idempotent  bool
	OpenWorld   bool
}

// categoryOrder gives the built-in categories a stable ordering hint;
// unknown categories sort in the middle (see orderKey).
var categoryOrder = map[string]int{
	"Scene":         0,
	"GameObject":    1,
	"Component":     2,
	"Asset":         3,
	"VFX":           4,
	"Console":       5,
	"Tests":         6,
	"Profiler":      7,
	"Build":         8,
	"UIToolkit":     9,
	"Editor":        10,
	"Debug":         11,
	"Uncategorized": 12,
}

// orderKey returns the sort key for a category; unrecognized categories
// fall in the middle of the known range so they don't dominate either end
// of a tools/list rendering.
func orderKey(category string) int {
	if k, ok := categoryOrder[category]; ok {
		return k
	}
	return len(categoryOrder) / 2
}

// ToolDescriptor is the immutable registration record for one tool.
type ToolDescriptor struct {
	Name        string
	Description string
	Category    string
	Hints       ToolHints
	Recipe      bool // collapsed Recipes registry: invokable but not schema-published

	Params []*ParameterDescriptor

	argsType reflect.Type // nil if the handler takes no arguments
	handler  reflect.Value
}

// Definition renders the descriptor as the tools/list wire shape.
func (t *ToolDescriptor) Definition() protocol.ToolDefinition {
	props := make(map[string]*protocol.JSONSchema, len(t.Params))
	var required []string
	for _, p := range t.Params {
		props[p.Name] = p.Schema()
		if p.Required {
			required = append(required, p.Name)
		}
	}
	def := protocol.ToolDefinition{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: protocol.JSONSchema{
			Type:       "object",
			Properties: props,
			Required:   required,
		},
	}
	if t.Hints != (ToolHints{}) {
		def.Annotations = &protocol.ToolAnnotations{
			Title:           t.Hints.Title,
			ReadOnlyHint:    t.Hints.ReadOnly,
			DestructiveHint: t.Hints.Destructive,
			IdempotentHint:  t.Hints.Idempotent,
			OpenWorldHint:   t.Hints.OpenWorld,
		}
	}
	return def
}

// tagOptions is the parsed form of an `mcp:"..."` struct tag.
type tagOptions struct {
	name        string
	description string
	required    *bool
	hasDefault  bool
	defaultStr  string
	enum        []string
	min, max    *float64
}

// parseTag parses a struct tag of the form:
//
//	mcp:"name;description=Text here;required;default=5;enum=a|b|c;min=0;max=10"
//
// Semicolons separate clauses because enum values may themselves contain
// commas in a free-form description; the first unkeyed clause (no "=") is
// taken as the parameter name override.
func parseTag(tag string) tagOptions {
	var opt tagOptions
	for _, clause := range strings.Split(tag, ";") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		key, val, hasVal := strings.Cut(clause, "=")
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		switch {
		case !hasVal && key == "required":
			t := true
			opt.required = &t
		case !hasVal && key == "optional":
			f := false
			opt.required = &f
		case !hasVal:
			if opt.name == "" {
				opt.name = key
			}
		case key == "description":
			opt.description = val
		case key == "default":
			opt.hasDefault = true
			opt.defaultStr = val
		case key == "enum":
			opt.enum = strings.Split(val, "|")
		case key == "min":
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				opt.min = &f
			}
		case key == "max":
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				opt.max = &f
			}
		}
	}
	return opt
}

// jsonSchemaType maps a Go field type to the published JSON-schema type
// vocabulary (integer types -> "integer", floats -> "number", everything
// else resolved structurally).
func jsonSchemaType(t reflect.Type) (kind, itemKind string) {
	switch t.Kind() {
	case reflect.String:
		return "string", ""
	case reflect.Bool:
		return "boolean", ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer", ""
	case reflect.Float32, reflect.Float64:
		return "number", ""
	case reflect.Slice, reflect.Array:
		elemKind, _ := jsonSchemaType(t.Elem())
		return "array", elemKind
	default:
		return "object", ""
	}
}

// buildParams reflects over argsType's exported fields and builds one
// ParameterDescriptor per field, honoring the `mcp:"..."` tag and falling
// back to the field's json tag (or Go identifier) for its registered name.
func buildParams(argsType reflect.Type) ([]*ParameterDescriptor, error) {
	if argsType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("tool argument type must be a struct, got %s", argsType.Kind())
	}
	var params []*ParameterDescriptor
	for i := 0; i < argsType.NumField(); i++ {
		f := argsType.Field(i)
		if !f.IsExported() {
			continue
		}
		opt := parseTag(f.Tag.Get("mcp"))
		name := opt.name
		if name == "" {
			if jsonName, _, _ := strings.Cut(f.Tag.Get("json"), ","); jsonName != "" {
				name = jsonName
			} else {
				name = f.Name
			}
		}

		kind, itemKind := jsonSchemaType(f.Type)
		p := &ParameterDescriptor{
			Name:        name,
			Description: opt.description,
			Type:        kind,
			ItemType:    itemKind,
			Enum:        toAnySlice(opt.enum),
			Min:         opt.min,
			Max:         opt.max,
			fieldIndex:  f.Index,
			fieldType:   f.Type,
		}
		if kind == "object" && f.Type.Kind() == reflect.Struct {
			nested, err := buildParams(f.Type)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			p.Nested = nested
		}
		if opt.hasDefault {
			dv, err := coerceString(opt.defaultStr, f.Type)
			if err != nil {
				return nil, fmt.Errorf("field %s: invalid default %q: %w", f.Name, opt.defaultStr, err)
			}
			p.Default = dv.Interface()
		}
		if opt.required != nil {
			p.Required = *opt.required
		} else {
			p.Required = !opt.hasDefault
		}
		params = append(params, p)
	}
	return params, nil
}

func toAnySlice(ss []string) []any {
	if len(ss) == 0 {
		return nil
	}
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
