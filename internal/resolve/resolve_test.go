package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WuLonghui/nise-bosh/internal/foundation/errors"
)

type graph map[string][]string

func (g graph) Dependencies(name string) ([]string, error) {
	deps, ok := g[name]
	if !ok {
		return nil, errors.NotFoundError("package not found").WithContext("package", name).Build()
	}
	return deps, nil
}

var release = graph{
	"miku":  nil,
	"luca":  nil,
	"tako":  {"miku", "luca"},
	"kaito": {"tako"},
	"meiko": {"miku", "tako"},
}

func TestResolveLinear(t *testing.T) {
	got, err := Resolve(release, []string{"tako", "kaito"})
	require.NoError(t, err)
	assert.Equal(t, []string{"miku", "luca", "tako", "kaito"}, got)
}

func TestResolvePartAndRejoin(t *testing.T) {
	got, err := Resolve(release, []string{"meiko"})
	require.NoError(t, err)
	assert.Equal(t, []string{"miku", "luca", "tako", "meiko"}, got)
}

func TestResolveIsIdempotent(t *testing.T) {
	first, err := Resolve(release, []string{"meiko", "kaito", "tako"})
	require.NoError(t, err)
	second, err := Resolve(release, first)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolveSharedDependencyOnce(t *testing.T) {
	got, err := Resolve(release, []string{"kaito", "meiko", "miku"})
	require.NoError(t, err)
	assert.Equal(t, []string{"miku", "luca", "tako", "kaito", "meiko"}, got)
}

func TestResolveCycle(t *testing.T) {
	cyclic := graph{"ren": {"rin"}, "rin": {"len"}, "len": {"ren"}, "miku": nil}

	for _, start := range []string{"ren", "rin", "len"} {
		t.Run(start, func(t *testing.T) {
			_, err := Resolve(cyclic, []string{"miku", start})
			require.Error(t, err)
			assert.True(t, errors.HasCategory(err, errors.CategoryDependency))
		})
	}

	_, err := Resolve(cyclic, []string{"ren"})
	classified, ok := errors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, "cyclic dependency detected: ren -> rin -> len -> ren", classified.Message())
}

func TestResolveSelfDependency(t *testing.T) {
	_, err := Resolve(graph{"a": {"a"}}, []string{"a"})
	assert.True(t, errors.HasCategory(err, errors.CategoryDependency))
}

func TestResolveUnknownPackage(t *testing.T) {
	_, err := Resolve(release, []string{"tako", "nope"})
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
}
