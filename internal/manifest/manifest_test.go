package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WuLonghui/nise-bosh/internal/foundation/errors"
)

const sample = `
name: nise
jobs:
- name: legna
  template:
  - angel
  - yellows
  instances: 1
  networks:
  - name: default
    static_ips: [10.0.0.5]
  properties:
    miku:
      mode: live
- name: yellows
  template: yellows
properties:
  miku:
    name: tenshi
    mode: studio
  nats:
    port: 4222
`

func TestParse(t *testing.T) {
	m, err := Parse([]byte(sample))
	require.NoError(t, err)

	legna, ok := m.Job("legna")
	require.True(t, ok)
	assert.Equal(t, TemplateList{"angel", "yellows"}, legna.Templates)
	assert.Equal(t, "10.0.0.5", legna.StaticIP())

	yellows, ok := m.Job("yellows")
	require.True(t, ok)
	assert.Equal(t, TemplateList{"yellows"}, yellows.Templates)
	assert.Empty(t, yellows.StaticIP())

	_, ok = m.Job("missing")
	assert.False(t, ok)
}

func TestJobPropertiesDeepMerge(t *testing.T) {
	m, err := Parse([]byte(sample))
	require.NoError(t, err)

	props := m.JobProperties("legna")
	v, ok := Lookup(props, "miku.mode")
	require.True(t, ok)
	assert.Equal(t, "live", v)
	v, ok = Lookup(props, "miku.name")
	require.True(t, ok)
	assert.Equal(t, "tenshi", v)

	// Global properties stay untouched.
	v, _ = Lookup(m.Properties, "miku.mode")
	assert.Equal(t, "studio", v)

	v, _ = Lookup(m.JobProperties("yellows"), "nats.port")
	assert.Equal(t, 4222, v)
}

func TestLookupMisses(t *testing.T) {
	props := map[string]any{"a": map[string]any{"b": "c"}}
	for _, path := range []string{"", "x", "a.x", "a.b.c"} {
		_, ok := Lookup(props, path)
		assert.False(t, ok, path)
	}
}

func TestParseRejectsDuplicateJobs(t *testing.T) {
	_, err := Parse([]byte("jobs:\n- name: a\n- name: a\n"))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestLoad(t *testing.T) {
	p := filepath.Join(t.TempDir(), "manifest.yml")
	require.NoError(t, os.WriteFile(p, []byte(sample), 0o600))

	m, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, p, m.Path())
	assert.Equal(t, "nise", m.Name)

	_, err = Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}
