package app

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mcphost/bridge/pkg/registry"
)

// sceneState is a toy in-memory stand-in for the host's actual scene
// graph. A real embedding host would back these handlers with its own
// scene/asset APIs; hostsim exists to exercise the registries, router,
// and dispatcher end to end without one.
type sceneState struct {
	mu      sync.Mutex
	objects map[string]string // name -> component summary
	assets  map[string]string // path -> contents
}

func newSceneState() *sceneState {
	return &sceneState{
		objects: map[string]string{
			"Main Camera":       "Camera, Transform",
			"Directional Light": "Light, Transform",
		},
		assets: map[string]string{
			"Materials/Default.mat": "shader: Standard\ncolor: 1,1,1,1",
		},
	}
}

// createObjectArgs is the argument struct for the create_object tool. The
// `mcp` tag drives the published JSON schema the same way a real host's
// attribute-derived parameters would.
type createObjectArgs struct {
	Name      string `mcp:"name;description=Name for the new GameObject;required"`
	Primitive string `mcp:"primitive;description=Primitive shape to create;enum=Cube|Sphere|Plane|Empty;default=Empty"`
}

type listObjectsArgs struct {
	Filter string `mcp:"filter;description=Substring filter on object name;optional"`
}

// registerSceneTools wires the demo scene into regs.Tools, exercising the
// full argument-coercion path (required, enum, default).
func registerSceneTools(regs *registry.Registries, scene *sceneState) {
	must(regs.Tools.Register("create_object", func(_ context.Context, args createObjectArgs) (string, error) {
		scene.mu.Lock()
		defer scene.mu.Unlock()
		if _, exists := scene.objects[args.Name]; exists {
			return "", registry.NewProtocolError(-32010, fmt.Sprintf("an object named %q already exists", args.Name))
		}
		scene.objects[args.Name] = fmt.Sprintf("%s, Transform", args.Primitive)
		return fmt.Sprintf("created %q (%s)", args.Name, args.Primitive), nil
	}, registry.RegisterOptions{
		Description: "Creates a new GameObject in the active scene.",
		Category:    "GameObject",
		Hints:       registry.ToolHints{Title: "Create Object", Destructive: false, Idempotent: false},
	}))

	must(regs.Tools.Register("delete_object", func(_ context.Context, args struct {
		Name string `mcp:"name;description=Name of the GameObject to delete;required"`
	}) (string, error) {
		scene.mu.Lock()
		defer scene.mu.Unlock()
		if _, exists := scene.objects[args.Name]; !exists {
			return "", registry.NewProtocolError(-32011, fmt.Sprintf("no object named %q", args.Name))
		}
		delete(scene.objects, args.Name)
		return fmt.Sprintf("deleted %q", args.Name), nil
	}, registry.RegisterOptions{
		Description: "Removes a GameObject from the active scene.",
		Category:    "GameObject",
		Hints:       registry.ToolHints{Title: "Delete Object", Destructive: true, Idempotent: true},
	}))

	must(regs.Tools.Register("list_objects", func(_ context.Context, args listObjectsArgs) (string, error) {
		scene.mu.Lock()
		defer scene.mu.Unlock()
		names := make([]string, 0, len(scene.objects))
		for name := range scene.objects {
			if args.Filter != "" && !contains(name, args.Filter) {
				continue
			}
			names = append(names, name)
		}
		sort.Strings(names)
		out := ""
		for _, n := range names {
			out += fmt.Sprintf("%s: %s\n", n, scene.objects[n])
		}
		return out, nil
	}, registry.RegisterOptions{
		Description: "Lists GameObjects in the active scene, optionally filtered by name.",
		Category:    "Scene",
		Hints:       registry.ToolHints{Title: "List Objects", ReadOnly: true, Idempotent: true},
	}))
}

// registerSceneResources wires the demo scene's static and templated
// resources, exercising both resolution paths in pkg/registry.
func registerSceneResources(regs *registry.Registries, scene *sceneState) {
	must(regs.Resources.Register("scene://active", "The active scene's GameObject hierarchy", "text/plain",
		func(_ context.Context) (string, error) {
			scene.mu.Lock()
			defer scene.mu.Unlock()
			names := make([]string, 0, len(scene.objects))
			for name := range scene.objects {
				names = append(names, name)
			}
			sort.Strings(names)
			out := ""
			for _, n := range names {
				out += n + "\n"
			}
			return out, nil
		}))

	must(regs.Resources.Register("asset://{folder}/{file}", "Reads an asset's raw contents by project-relative path", "text/plain",
		func(_ context.Context, folder, file string) (string, error) {
			scene.mu.Lock()
			defer scene.mu.Unlock()
			path := folder + "/" + file
			contents, ok := scene.assets[path]
			if !ok {
				return "", registry.NewProtocolError(-32012, fmt.Sprintf("no asset at %q", path))
			}
			return contents, nil
		}))
}

// registerScenePrompts wires a single demo prompt that summarizes the
// scene, exercising the prompts/get required-argument path.
func registerScenePrompts(regs *registry.Registries, scene *sceneState) {
	must(regs.Prompts.Register("summarize_scene", "Summarizes the active scene's objects for a given audience",
		[]*registry.PromptArgDescriptor{
			{Name: "audience", Description: "Who the summary is for", Required: true},
		},
		func(_ context.Context, args map[string]string) (string, error) {
			scene.mu.Lock()
			defer scene.mu.Unlock()
			return fmt.Sprintf("Summarize the following %d scene objects for %s.", len(scene.objects), args["audience"]), nil
		}))
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
