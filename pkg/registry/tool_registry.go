package registry

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/mcphost/bridge/pkg/logger"
)

var (
	ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType = reflect.TypeOf((*error)(nil)).Elem()
)

// ToolRegistry is the catalog of callable tools. A Recipe-flagged entry
// is registered the same way but excluded from JSON-schema publication:
// recipes stay invokable by name without appearing in tools/list.
type ToolRegistry struct {
	mu          sync.RWMutex
	tools       map[string]*ToolDescriptor
	initialized bool
}

// NewToolRegistry constructs an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]*ToolDescriptor)}
}

// RegisterOptions configures a tool registration.
type RegisterOptions struct {
	Description string
	Category    string
	Hints       ToolHints
	Recipe      bool
}

// Register adds a tool. fn must have the shape
// func(context.Context, Args) (Result, error) or func(context.Context) (Result, error)
// where Args is a struct and Result is any JSON-marshalable value (or a
// string, which the router wraps as a single text block). Duplicate names
// are skipped with a warning; the first registration wins.
func (r *ToolRegistry) Register(name string, fn any, opts RegisterOptions) error {
	desc, err := newToolDescriptor(name, fn, opts)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		logger.Warnf("registry: duplicate tool registration %q skipped; first registration wins", name)
		return nil
	}
	r.tools[name] = desc
	return nil
}

func newToolDescriptor(name string, fn any, opts RegisterOptions) (*ToolDescriptor, error) {
	v := reflect.ValueOf(fn)
	t := v.Type()
	if t.Kind() != reflect.Func {
		return nil, fmt.Errorf("tool %q: handler must be a function, got %s", name, t.Kind())
	}
	if t.NumIn() < 1 || t.NumIn() > 2 || !t.In(0).Implements(ctxType) {
		return nil, fmt.Errorf("tool %q: handler must take (context.Context[, Args])", name)
	}
	if t.NumOut() != 2 || !t.Out(1).Implements(errType) {
		return nil, fmt.Errorf("tool %q: handler must return (Result, error)", name)
	}

	var argsType reflect.Type
	var params []*ParameterDescriptor
	if t.NumIn() == 2 {
		argsType = t.In(1)
		var err error
		params, err = buildParams(argsType)
		if err != nil {
			return nil, fmt.Errorf("tool %q: %w", name, err)
		}
	}

	category := opts.Category
	if category == "" {
		category = "Uncategorized"
	}

	return &ToolDescriptor{
		Name:        name,
		Description: opts.Description,
		Category:    category,
		Hints:       opts.Hints,
		Recipe:      opts.Recipe,
		Params:      params,
		argsType:    argsType,
		handler:     v,
	}, nil
}

// Lookup returns the descriptor for name, or (nil, false).
func (r *ToolRegistry) Lookup(name string) (*ToolDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.tools[name]
	return d, ok
}

// List returns all non-Recipe descriptors ordered by category, then name.
func (r *ToolRegistry) List() []*ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ToolDescriptor, 0, len(r.tools))
	for _, d := range r.tools {
		if d.Recipe {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		oi, oj := orderKey(out[i].Category), orderKey(out[j].Category)
		if oi != oj {
			return oi < oj
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Reset clears the registry, the Go analogue of a full rescan: callers
// re-register everything afterward. initialized is false while empty.
func (r *ToolRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = make(map[string]*ToolDescriptor)
	r.initialized = false
}

// MarkInitialized flips the initialized flag once a full scan completes.
func (r *ToolRegistry) MarkInitialized() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initialized = true
}

// Initialized reports whether a scan has completed since the last Reset.
func (r *ToolRegistry) Initialized() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.initialized
}

// Invoke resolves arguments against the tool's parameter descriptors,
// coerces them, and calls the handler. A coercion failure never invokes
// the handler body.
func (t *ToolDescriptor) Invoke(ctx context.Context, args map[string]any) (any, error) {
	in := make([]reflect.Value, 0, 2)
	in = append(in, reflect.ValueOf(ctx))

	if t.argsType != nil {
		argsVal := reflect.New(t.argsType).Elem()
		for _, p := range t.Params {
			raw, present := args[p.Name]
			switch {
			case !present && p.Required:
				return nil, &ArgumentError{Param: p.Name, Target: p.Type, Err: fmt.Errorf("missing required argument")}
			case !present:
				if p.Default != nil {
					argsVal.FieldByIndex(p.fieldIndex).Set(reflect.ValueOf(p.Default).Convert(p.fieldType))
				}
				// else: leave the zero value.
			default:
				if err := validateObjectArgument(p, raw); err != nil {
					return nil, &ArgumentError{Param: p.Name, Target: p.Type, Err: err}
				}
				cv, err := coerce(raw, p.fieldType)
				if err != nil {
					return nil, &ArgumentError{Param: p.Name, Target: p.Type, Err: err}
				}
				if err := checkEnumAndBounds(p, raw); err != nil {
					return nil, &ArgumentError{Param: p.Name, Target: p.Type, Err: err}
				}
				argsVal.FieldByIndex(p.fieldIndex).Set(cv)
			}
		}
		in = append(in, argsVal)
	}

	return callHandler(t.handler, in)
}

func checkEnumAndBounds(p *ParameterDescriptor, raw any) error {
	if len(p.Enum) > 0 {
		s := stringify(raw)
		ok := false
		for _, e := range p.Enum {
			if es, isStr := e.(string); isStr && equalFoldOrEqual(es, s) {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("value %q is not one of the allowed values", s)
		}
	}
	if p.Min != nil || p.Max != nil {
		f, err := numericValue(raw)
		if err == nil { // bounds only apply to numeric-looking values
			if p.Min != nil && f < *p.Min {
				return fmt.Errorf("value %v is below minimum %v", f, *p.Min)
			}
			if p.Max != nil && f > *p.Max {
				return fmt.Errorf("value %v is above maximum %v", f, *p.Max)
			}
		}
	}
	return nil
}

func equalFoldOrEqual(a, b string) bool {
	if a == b {
		return true
	}
	return len(a) == len(b) && foldEqual(a, b)
}

func foldEqual(a, b string) bool {
	for i := range a {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
