package registry

// Registries bundles the three catalogs the router dispatches against.
type Registries struct {
	Tools     *ToolRegistry
	Resources *ResourceRegistry
	Prompts   *PromptRegistry
}

// New constructs an empty set of registries.
func New() *Registries {
	return &Registries{
		Tools:     NewToolRegistry(),
		Resources: NewResourceRegistry(),
		Prompts:   NewPromptRegistry(),
	}
}

// Reset clears all three catalogs, the first half of a rescan; callers
// re-register content and then call MarkInitialized.
func (r *Registries) Reset() {
	r.Tools.Reset()
	r.Resources.Reset()
	r.Prompts.Reset()
}

// MarkInitialized flips all three catalogs' initialized flag, the second
// half of a rescan.
func (r *Registries) MarkInitialized() {
	r.Tools.MarkInitialized()
	r.Resources.MarkInitialized()
	r.Prompts.MarkInitialized()
}
