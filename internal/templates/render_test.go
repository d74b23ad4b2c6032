package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WuLonghui/nise-bosh/internal/foundation/errors"
)

type defaults map[string]any

func (d defaults) PropertyDefault(path string) (any, bool) {
	v, ok := d[path]
	return v, ok
}

func bindings() Bindings {
	return Bindings{
		Name:    "legna",
		JobName: "angel",
		Properties: map[string]any{
			"miku": map[string]any{"name": "tenshi", "ports": []any{80, 443}},
		},
		Defaults: defaults{"angel.mode": "manual"},
	}
}

func TestRenderIndexAndIP(t *testing.T) {
	src := "{{ p \"miku.name\" }}\n{{ .Index }}\n{{ .IP }}\n"

	b := bindings()
	b.Index, b.IP = 39, "39.39.39.39"
	out, err := Render("miku.conf", src, b)
	require.NoError(t, err)
	assert.Equal(t, "tenshi\n39\n39.39.39.39\n", out)

	out, err = Render("miku.conf", src, bindings())
	require.NoError(t, err)
	assert.Equal(t, "tenshi\n0\n\n", out)
}

func TestRenderPropertyResolution(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"manifest value", `{{ p "miku.name" }}`, "tenshi"},
		{"job default", `{{ p "angel.mode" }}`, "manual"},
		{"inline default", `{{ p "luca.name" "megurine" }}`, "megurine"},
		{"manifest beats inline default", `{{ p "miku.name" "x" }}`, "tenshi"},
		{"if_p present", `{{ if if_p "miku.name" }}yes{{ else }}no{{ end }}`, "yes"},
		{"if_p absent", `{{ if if_p "miku.name" "luca.name" }}yes{{ else }}no{{ end }}`, "no"},
		{"sprig join", `{{ p "miku.ports" | join "," }}`, "80,443"},
		{"spec bindings", `{{ .Spec.job.name }}/{{ .JobName }}/{{ .Spec.index }}`, "legna/angel/0"},
		{"toYAML", `{{ toYAML .Properties.miku.ports }}`, "- 80\n- 443"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Render(tt.name, tt.src, bindings())
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestRenderDeterministic(t *testing.T) {
	src := `{{ range $k, $v := .Properties.miku }}{{ $k }}={{ $v }};{{ end }}`
	first, err := Render("t", src, bindings())
	require.NoError(t, err)
	for range 5 {
		again, err := Render("t", src, bindings())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRenderErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"missing property", `{{ p "luca.name" }}`},
		{"missing field", `{{ .Properties.luca }}`},
		{"required ip", `{{ required "ip is required" .IP }}`},
		{"parse error", `{{ p "miku.name" `},
		{"disallowed func", `{{ now }}`},
		{"env access", `{{ env "HOME" }}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Render(tt.name, tt.src, bindings())
			require.Error(t, err)
			assert.True(t, errors.HasCategory(err, errors.CategoryTemplate))
		})
	}
}
