package registry

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/mcphost/bridge/pkg/logger"
)

// placeholderPattern matches a single {name} template placeholder.
var placeholderPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// ResourceDescriptor is the immutable registration record for one
// resource, static or templated.
type ResourceDescriptor struct {
	URI         string
	Description string
	MimeType    string

	isTemplate   bool
	placeholders []string
	matcher      *regexp.Regexp

	paramNames []string // resolved handler parameter names, positional
	handler    reflect.Value
	ctxOnly    bool
}

// ResourceRegistry is the catalog of readable resources.
type ResourceRegistry struct {
	mu          sync.RWMutex
	statics     map[string]*ResourceDescriptor
	templates   []*ResourceDescriptor // first-registered-wins order
	initialized bool
}

// NewResourceRegistry constructs an empty registry.
func NewResourceRegistry() *ResourceRegistry {
	return &ResourceRegistry{statics: make(map[string]*ResourceDescriptor)}
}

// Register adds a resource. uri may contain {name} placeholders. Captured
// values are passed to the handler by position: the i-th string parameter
// receives the i-th placeholder's value. The handler's Go parameter names
// are not consulted, so handler argument order must follow placeholder
// order.
//
// fn must have the shape func(context.Context, p1, p2, ... string) (Result, error)
// with one string parameter per placeholder, in the order placeholders
// appear in uri, or func(context.Context) (Result, error) for a static
// resource.
func (r *ResourceRegistry) Register(uri, description, mimeType string, fn any) error {
	desc, err := newResourceDescriptor(uri, description, mimeType, fn)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if desc.isTemplate {
		for _, existing := range r.templates {
			if existing.URI == desc.URI {
				logger.Warnf("registry: duplicate resource template %q skipped", uri)
				return nil
			}
			if existing.matcher.MatchString(examplePlaceholderURI(desc)) ||
				desc.matcher.MatchString(examplePlaceholderURI(existing)) {
				logger.Warnf("registry: resource template %q overlaps with already-registered %q; first registered wins", uri, existing.URI)
			}
		}
		r.templates = append(r.templates, desc)
		return nil
	}

	if _, exists := r.statics[uri]; exists {
		logger.Warnf("registry: duplicate resource %q skipped", uri)
		return nil
	}
	r.statics[uri] = desc
	return nil
}

// examplePlaceholderURI renders a template with dummy values, solely to
// probe for overlap against other templates at discovery time.
func examplePlaceholderURI(d *ResourceDescriptor) string {
	out := d.URI
	for _, name := range d.placeholders {
		out = strings.Replace(out, "{"+name+"}", "x", 1)
	}
	return out
}

func newResourceDescriptor(uri, description, mimeType string, fn any) (*ResourceDescriptor, error) {
	v := reflect.ValueOf(fn)
	t := v.Type()
	if t.Kind() != reflect.Func {
		return nil, fmt.Errorf("resource %q: handler must be a function", uri)
	}
	if t.NumOut() != 2 || !t.Out(1).Implements(errType) {
		return nil, fmt.Errorf("resource %q: handler must return (Result, error)", uri)
	}
	if t.NumIn() < 1 || !t.In(0).Implements(ctxType) {
		return nil, fmt.Errorf("resource %q: handler must take context.Context first", uri)
	}

	placeholders := extractPlaceholders(uri)
	if len(placeholders) != t.NumIn()-1 {
		return nil, fmt.Errorf("resource %q: handler takes %d string params, uri has %d placeholders",
			uri, t.NumIn()-1, len(placeholders))
	}
	for i := 1; i < t.NumIn(); i++ {
		if t.In(i).Kind() != reflect.String {
			return nil, fmt.Errorf("resource %q: placeholder parameters must be strings", uri)
		}
	}

	desc := &ResourceDescriptor{
		URI:          uri,
		Description:  description,
		MimeType:     mimeType,
		isTemplate:   len(placeholders) > 0,
		placeholders: placeholders,
		paramNames:   placeholders,
		handler:      v,
		ctxOnly:      len(placeholders) == 0,
	}
	if desc.isTemplate {
		desc.matcher = compileTemplate(uri, placeholders)
	}
	return desc, nil
}

func extractPlaceholders(uri string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(uri, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// compileTemplate turns a URI template into a regular expression where
// each {name} placeholder captures `[^/]+`.
func compileTemplate(uri string, placeholders []string) *regexp.Regexp {
	pattern := regexp.QuoteMeta(uri)
	for _, name := range placeholders {
		escaped := regexp.QuoteMeta("{" + name + "}")
		pattern = strings.Replace(pattern, escaped, `([^/]+)`, 1)
	}
	return regexp.MustCompile("^" + pattern + "$")
}

// Resolve returns the descriptor matching uri and the placeholder values
// extracted from it. An exact static match always wins over a template
// match, even if a template would also match.
func (r *ResourceRegistry) Resolve(uri string) (*ResourceDescriptor, map[string]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if d, ok := r.statics[uri]; ok {
		return d, nil, true
	}
	for _, d := range r.templates {
		if m := d.matcher.FindStringSubmatch(uri); m != nil {
			params := make(map[string]string, len(d.placeholders))
			for i, name := range d.placeholders {
				params[name] = m[i+1]
			}
			return d, params, true
		}
	}
	return nil, nil, false
}

// ListStatic returns all statically-registered resources.
func (r *ResourceRegistry) ListStatic() []*ResourceDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ResourceDescriptor, 0, len(r.statics))
	for _, d := range r.statics {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out
}

// ListTemplates returns all registered templates, in registration order.
func (r *ResourceRegistry) ListTemplates() []*ResourceDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ResourceDescriptor, len(r.templates))
	copy(out, r.templates)
	return out
}

// Reset clears the registry for a rescan.
func (r *ResourceRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statics = make(map[string]*ResourceDescriptor)
	r.templates = nil
	r.initialized = false
}

func (r *ResourceRegistry) MarkInitialized() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initialized = true
}

func (r *ResourceRegistry) Initialized() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.initialized
}

// Invoke calls the resource's handler with the extracted placeholder
// values, in placeholder order.
func (d *ResourceDescriptor) Invoke(ctx context.Context, params map[string]string) (any, error) {
	in := make([]reflect.Value, 0, 1+len(d.paramNames))
	in = append(in, reflect.ValueOf(ctx))
	for _, name := range d.paramNames {
		in = append(in, reflect.ValueOf(params[name]))
	}
	return callHandler(d.handler, in)
}
