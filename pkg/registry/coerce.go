package registry

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ArgumentError reports a coercion failure for a single named parameter;
// the router surfaces it as CodeInvalidParams with the parameter name and
// target type.
type ArgumentError struct {
	Param  string
	Target string
	Err    error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("argument %q: %v (target type %s)", e.Param, e.Err, e.Target)
}

func (e *ArgumentError) Unwrap() error { return e.Err }

// coerce converts a generic JSON-decoded value (string, float64, bool, nil,
// []any, map[string]any) into a reflect.Value assignable to target.
// json.Number is not handled as a number.
func coerce(raw any, target reflect.Type) (reflect.Value, error) {
	switch target.Kind() {
	case reflect.String:
		return reflect.ValueOf(stringify(raw)).Convert(target), nil

	case reflect.Bool:
		return coerceBool(raw, target)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return coerceInt(raw, target)

	case reflect.Float32, reflect.Float64:
		return coerceFloat(raw, target)

	case reflect.Slice, reflect.Array:
		return coerceSlice(raw, target)

	default:
		return coerceObject(raw, target)
	}
}

// coerceString is used for default-value parsing, where the source is
// always a tag-literal string rather than a decoded JSON value.
func coerceString(s string, target reflect.Type) (reflect.Value, error) {
	switch target.Kind() {
	case reflect.String:
		return reflect.ValueOf(s).Convert(target), nil
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(b).Convert(target), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return reflect.Value{}, err
		}
		v := reflect.New(target).Elem()
		v.SetInt(n)
		return v, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return reflect.Value{}, err
		}
		v := reflect.New(target).Elem()
		v.SetUint(n)
		return v, nil
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return reflect.Value{}, err
		}
		v := reflect.New(target).Elem()
		v.SetFloat(f)
		return v, nil
	default:
		return reflect.Value{}, fmt.Errorf("defaults are not supported for type %s", target)
	}
}

func stringify(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func coerceBool(raw any, target reflect.Type) (reflect.Value, error) {
	var b bool
	switch v := raw.(type) {
	case bool:
		b = v
	case string:
		switch strings.ToLower(v) {
		case "true":
			b = true
		case "false":
			b = false
		default:
			return reflect.Value{}, fmt.Errorf("cannot interpret %q as boolean", v)
		}
	case float64:
		b = v != 0
	case int:
		b = v != 0
	default:
		return reflect.Value{}, fmt.Errorf("cannot interpret %T as boolean", raw)
	}
	return reflect.ValueOf(b).Convert(target), nil
}

func coerceInt(raw any, target reflect.Type) (reflect.Value, error) {
	f, err := numericValue(raw)
	if err != nil {
		return reflect.Value{}, err
	}
	// Round toward zero from floating input.
	n := int64(f)
	v := reflect.New(target).Elem()
	if target.Kind() == reflect.Uint || target.Kind() == reflect.Uint8 ||
		target.Kind() == reflect.Uint16 || target.Kind() == reflect.Uint32 || target.Kind() == reflect.Uint64 {
		if n < 0 {
			return reflect.Value{}, fmt.Errorf("value %v is negative for unsigned target", raw)
		}
		v.SetUint(uint64(n))
		return v, nil
	}
	v.SetInt(n)
	return v, nil
}

func coerceFloat(raw any, target reflect.Type) (reflect.Value, error) {
	f, err := numericValue(raw)
	if err != nil {
		return reflect.Value{}, err
	}
	v := reflect.New(target).Elem()
	v.SetFloat(f)
	return v, nil
}

func numericValue(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as a number", v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("cannot interpret %T as a number", raw)
	}
}

func coerceSlice(raw any, target reflect.Type) (reflect.Value, error) {
	list, ok := raw.([]any)
	if !ok {
		return reflect.Value{}, fmt.Errorf("expected an array, got %T", raw)
	}
	out := reflect.MakeSlice(target, len(list), len(list))
	for i, elem := range list {
		ev, err := coerce(elem, target.Elem())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
		}
		out.Index(i).Set(ev)
	}
	return out, nil
}

// validateObjectArgument checks raw against p's nested JSON schema before
// coercion runs, catching structural mismatches (missing nested required
// fields, wrong nested types) that field-by-field coercion wouldn't
// report as cleanly. Parameters without a nested schema are not checked
// here; their own coerce call is the only validation.
func validateObjectArgument(p *ParameterDescriptor, raw any) error {
	if p.Type != "object" || len(p.Nested) == 0 {
		return nil
	}

	schemaBytes, err := json.Marshal(p.Schema())
	if err != nil {
		return nil
	}

	var docBytes []byte
	switch v := raw.(type) {
	case string:
		docBytes = []byte(v)
	default:
		docBytes, err = json.Marshal(v)
		if err != nil {
			return fmt.Errorf("argument is not valid JSON: %w", err)
		}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaBytes),
		gojsonschema.NewBytesLoader(docBytes),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}

func coerceObject(raw any, target reflect.Type) (reflect.Value, error) {
	switch v := raw.(type) {
	case string:
		ptr := reflect.New(target)
		if err := json.Unmarshal([]byte(v), ptr.Interface()); err != nil {
			return reflect.Value{}, err
		}
		return ptr.Elem(), nil
	case map[string]any:
		ptr := reflect.New(target)
		if err := rebuildStruct(v, ptr.Elem()); err != nil {
			return reflect.Value{}, err
		}
		return ptr.Elem(), nil
	default:
		return reflect.Value{}, fmt.Errorf("expected an object or JSON string, got %T", raw)
	}
}

// rebuildStruct fills dst (a struct, addressable) from a decoded JSON
// object by matching field names case-insensitively against map keys,
// honoring json tags.
func rebuildStruct(m map[string]any, dst reflect.Value) error {
	if dst.Kind() != reflect.Struct {
		return fmt.Errorf("cannot rebuild non-struct type %s from object", dst.Type())
	}
	t := dst.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" {
			name = f.Name
		}
		val, ok := lookupCaseInsensitive(m, name)
		if !ok {
			continue
		}
		fv, err := coerce(val, f.Type)
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		dst.Field(i).Set(fv)
	}
	return nil
}

func lookupCaseInsensitive(m map[string]any, name string) (any, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}
