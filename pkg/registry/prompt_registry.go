package registry

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/mcphost/bridge/pkg/logger"
)

// PromptArgDescriptor is one entry of a prompt's argument list. Prompt
// arguments are always string-valued.
type PromptArgDescriptor struct {
	Name        string
	Description string
	Required    bool
}

// PromptDescriptor is the immutable registration record for one prompt.
type PromptDescriptor struct {
	Name        string
	Description string
	Args        []*PromptArgDescriptor

	handler reflect.Value
}

// PromptRegistry is the catalog of prompt generators.
type PromptRegistry struct {
	mu          sync.RWMutex
	prompts     map[string]*PromptDescriptor
	initialized bool
}

// NewPromptRegistry constructs an empty registry.
func NewPromptRegistry() *PromptRegistry {
	return &PromptRegistry{prompts: make(map[string]*PromptDescriptor)}
}

// Register adds a prompt. fn must have the shape
// func(context.Context, map[string]string) (Result, error). The router
// renders Result (see toPromptGetResult in pkg/router): a
// protocol.PromptGetResult or []protocol.PromptMessage is used as is, a
// string becomes a single user message, and any other value becomes a
// single user message holding its JSON form.
func (r *PromptRegistry) Register(name, description string, args []*PromptArgDescriptor, fn any) error {
	v := reflect.ValueOf(fn)
	t := v.Type()
	if t.Kind() != reflect.Func || t.NumIn() != 2 || t.NumOut() != 2 {
		return fmt.Errorf("prompt %q: handler must be func(context.Context, map[string]string) (Result, error)", name)
	}
	if !t.In(0).Implements(ctxType) {
		return fmt.Errorf("prompt %q: first parameter must be context.Context", name)
	}
	if !reflect.TypeOf(map[string]string(nil)).AssignableTo(t.In(1)) {
		return fmt.Errorf("prompt %q: second parameter must be map[string]string", name)
	}
	if !t.Out(1).Implements(errType) {
		return fmt.Errorf("prompt %q: second return value must be error", name)
	}

	desc := &PromptDescriptor{Name: name, Description: description, Args: args, handler: v}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.prompts[name]; exists {
		logger.Warnf("registry: duplicate prompt registration %q skipped", name)
		return nil
	}
	r.prompts[name] = desc
	return nil
}

// Lookup returns the descriptor for name, or (nil, false).
func (r *PromptRegistry) Lookup(name string) (*PromptDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.prompts[name]
	return d, ok
}

// List returns all descriptors, sorted by name.
func (r *PromptRegistry) List() []*PromptDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*PromptDescriptor, 0, len(r.prompts))
	for _, d := range r.prompts {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Reset clears the registry for a rescan.
func (r *PromptRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts = make(map[string]*PromptDescriptor)
	r.initialized = false
}

func (r *PromptRegistry) MarkInitialized() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initialized = true
}

func (r *PromptRegistry) Initialized() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.initialized
}

// Invoke calls the prompt handler with the supplied string arguments,
// validating required arguments are present first.
func (d *PromptDescriptor) Invoke(ctx context.Context, args map[string]string) (any, error) {
	for _, a := range d.Args {
		if a.Required {
			if _, ok := args[a.Name]; !ok {
				return nil, &ArgumentError{Param: a.Name, Target: "string", Err: fmt.Errorf("missing required argument")}
			}
		}
	}
	return callHandler(d.handler, []reflect.Value{reflect.ValueOf(ctx), reflect.ValueOf(args)})
}
