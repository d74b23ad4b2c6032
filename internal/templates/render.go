package templates

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/WuLonghui/nise-bosh/internal/foundation/errors"
	"github.com/WuLonghui/nise-bosh/internal/manifest"
)

// Defaults supplies property defaults declared by a release job.
type Defaults interface {
	PropertyDefault(path string) (any, bool)
}

// Bindings is the data a job template is rendered against.
type Bindings struct {
	// Name is the deployment job name.
	Name string
	// JobName is the release job that owns the template.
	JobName    string
	Index      int
	IP         string
	Properties map[string]any
	Defaults   Defaults
}

// data is what templates see as dot.
type data struct {
	Name       string
	JobName    string
	Index      int
	IP         string
	Properties map[string]any
	Spec       map[string]any
}

func (b Bindings) data() data {
	props := b.Properties
	if props == nil {
		props = map[string]any{}
	}
	return data{
		Name:       b.Name,
		JobName:    b.JobName,
		Index:      b.Index,
		IP:         b.IP,
		Properties: props,
		Spec: map[string]any{
			"index":      b.Index,
			"ip":         b.IP,
			"job":        map[string]any{"name": b.Name},
			"networks":   map[string]any{"default": map[string]any{"ip": b.IP}},
			"properties": props,
		},
	}
}

// lookup resolves a property from the manifest, then from the job defaults.
func (b Bindings) lookup(path string) (any, bool) {
	if v, ok := manifest.Lookup(b.Properties, path); ok {
		return v, true
	}
	if b.Defaults != nil {
		return b.Defaults.PropertyDefault(path)
	}
	return nil, false
}

func (b Bindings) funcs() template.FuncMap {
	funcs := sprigFuncs()
	funcs["p"] = func(path string, fallback ...any) (any, error) {
		if v, ok := b.lookup(path); ok {
			return v, nil
		}
		if len(fallback) > 0 {
			return fallback[0], nil
		}
		return nil, fmt.Errorf("can't find property %q", path)
	}
	funcs["if_p"] = func(paths ...string) bool {
		for _, path := range paths {
			if _, ok := b.lookup(path); !ok {
				return false
			}
		}
		return len(paths) > 0
	}
	return funcs
}

// Render renders source against the bindings. Rendering has no side effects.
func Render(name, source string, b Bindings) (string, error) {
	tpl, err := template.New(name).Funcs(b.funcs()).Option("missingkey=error").Parse(source)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryTemplate, "parse template").
			WithContext("template", name).
			WithContext("job", b.JobName).Build()
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, b.data()); err != nil {
		return "", errors.WrapError(err, errors.CategoryTemplate, "render template").
			WithContext("template", name).
			WithContext("job", b.JobName).Build()
	}
	return buf.String(), nil
}
