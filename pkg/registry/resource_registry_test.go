package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveStaticResource(t *testing.T) {
	r := NewResourceRegistry()
	require.NoError(t, r.Register("scene://active", "active scene", "text/plain",
		func(_ context.Context) (string, error) { return "MainScene", nil }))

	d, params, ok := r.Resolve("scene://active")
	require.True(t, ok)
	assert.Nil(t, params)

	result, err := d.Invoke(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "MainScene", result)
}

func TestResolveTemplateExtractsPlaceholders(t *testing.T) {
	r := NewResourceRegistry()
	require.NoError(t, r.Register("scene://gameobject/{id}", "a gameobject", "application/json",
		func(_ context.Context, id string) (string, error) { return "object " + id, nil }))

	d, params, ok := r.Resolve("scene://gameobject/42")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"id": "42"}, params)

	result, err := d.Invoke(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, "object 42", result)
}

func TestTemplatePlaceholderIsNotPercentDecoded(t *testing.T) {
	r := NewResourceRegistry()
	require.NoError(t, r.Register("asset://{name}", "an asset", "",
		func(_ context.Context, name string) (string, error) { return name, nil }))

	// The core performs no percent-decoding; the capture reaches the
	// handler byte-for-byte as it appeared in the URI.
	d, params, ok := r.Resolve("asset://My%20Material")
	require.True(t, ok)
	assert.Equal(t, "My%20Material", params["name"])

	result, err := d.Invoke(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, "My%20Material", result)
}

func TestPlaceholderDoesNotCrossSlash(t *testing.T) {
	r := NewResourceRegistry()
	require.NoError(t, r.Register("scene://gameobject/{id}", "", "",
		func(_ context.Context, id string) (string, error) { return id, nil }))

	_, _, ok := r.Resolve("scene://gameobject/a/b")
	assert.False(t, ok, "{id} must capture [^/]+ only")
}

func TestMultiplePlaceholders(t *testing.T) {
	r := NewResourceRegistry()
	require.NoError(t, r.Register("scene://gameobject/{id}/component/{kind}", "", "",
		func(_ context.Context, id, kind string) (string, error) { return id + ":" + kind, nil }))

	d, params, ok := r.Resolve("scene://gameobject/7/component/Light")
	require.True(t, ok)
	assert.Equal(t, "7", params["id"])
	assert.Equal(t, "Light", params["kind"])

	result, err := d.Invoke(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, "7:Light", result)
}

func TestStaticWinsOverTemplate(t *testing.T) {
	r := NewResourceRegistry()
	require.NoError(t, r.Register("scene://{name}", "templated", "",
		func(_ context.Context, name string) (string, error) { return "template:" + name, nil }))
	require.NoError(t, r.Register("scene://active", "static", "",
		func(_ context.Context) (string, error) { return "static", nil }))

	d, _, ok := r.Resolve("scene://active")
	require.True(t, ok)
	result, err := d.Invoke(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "static", result)
}

func TestFirstRegisteredTemplateWinsOnOverlap(t *testing.T) {
	r := NewResourceRegistry()
	require.NoError(t, r.Register("asset://{a}", "", "",
		func(_ context.Context, a string) (string, error) { return "first", nil }))
	require.NoError(t, r.Register("asset://{b}", "", "",
		func(_ context.Context, b string) (string, error) { return "second", nil }))

	d, _, ok := r.Resolve("asset://thing")
	require.True(t, ok)
	result, err := d.Invoke(context.Background(), map[string]string{"a": "thing"})
	require.NoError(t, err)
	assert.Equal(t, "first", result)
}

func TestRegisterRejectsPlaceholderArityMismatch(t *testing.T) {
	r := NewResourceRegistry()
	err := r.Register("scene://gameobject/{id}", "", "",
		func(_ context.Context) (string, error) { return "", nil })
	assert.Error(t, err)

	err = r.Register("scene://static", "", "",
		func(_ context.Context, extra string) (string, error) { return "", nil })
	assert.Error(t, err)

	err = r.Register("scene://gameobject/{id}", "", "",
		func(_ context.Context, id int) (string, error) { return "", nil })
	assert.Error(t, err, "placeholder parameters must be strings")
}

func TestResourceInvokeRecoversHandlerPanic(t *testing.T) {
	r := NewResourceRegistry()
	require.NoError(t, r.Register("scene://broken", "", "",
		func(_ context.Context) (string, error) { panic("scene graph corrupted") }))

	d, _, ok := r.Resolve("scene://broken")
	require.True(t, ok)

	_, err := d.Invoke(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestResourceListsAreSeparate(t *testing.T) {
	r := NewResourceRegistry()
	require.NoError(t, r.Register("scene://active", "", "",
		func(_ context.Context) (string, error) { return "", nil }))
	require.NoError(t, r.Register("asset://{path}", "", "",
		func(_ context.Context, path string) (string, error) { return "", nil }))

	statics := r.ListStatic()
	require.Len(t, statics, 1)
	assert.Equal(t, "scene://active", statics[0].URI)

	templates := r.ListTemplates()
	require.Len(t, templates, 1)
	assert.Equal(t, "asset://{path}", templates[0].URI)
}
