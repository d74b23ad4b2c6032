// Package manifest parses BOSH v1 deploy manifests.
package manifest

import (
	"fmt"
	"maps"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/WuLonghui/nise-bosh/internal/foundation/errors"
)

// Manifest is a parsed deploy manifest.
type Manifest struct {
	Name       string         `yaml:"name"`
	Releases   []Release      `yaml:"releases,omitempty"`
	Jobs       []Job          `yaml:"jobs"`
	Properties map[string]any `yaml:"properties"`

	path string
}

// Release names a release the deployment uses.
type Release struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// Job is a deployment job: a named list of release jobs ("templates").
type Job struct {
	Name       string         `yaml:"name"`
	Templates  TemplateList   `yaml:"template"`
	Instances  int            `yaml:"instances"`
	Networks   []Network      `yaml:"networks,omitempty"`
	Properties map[string]any `yaml:"properties,omitempty"`
}

// Network is a job network assignment.
type Network struct {
	Name      string   `yaml:"name"`
	StaticIPs []string `yaml:"static_ips,omitempty"`
}

// TemplateList accepts either a single release job name or a list of names.
type TemplateList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *TemplateList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value == "" {
			*t = nil
			return nil
		}
		*t = TemplateList{node.Value}
		return nil
	case yaml.SequenceNode:
		var names []string
		if err := node.Decode(&names); err != nil {
			return err
		}
		*t = names
		return nil
	default:
		return fmt.Errorf("line %d: template must be a string or a list of strings", node.Line)
	}
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied manifest
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "cannot read deploy manifest").
			WithContext("path", path).Build()
	}
	m, err := Parse(data)
	if err != nil {
		return nil, err
	}
	m.path = path
	return m, nil
}

// Parse decodes a manifest document.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "invalid deploy manifest").Build()
	}
	seen := make(map[string]struct{}, len(m.Jobs))
	for _, j := range m.Jobs {
		if j.Name == "" {
			return nil, errors.ConfigError("deploy manifest has a job without a name").Build()
		}
		if _, dup := seen[j.Name]; dup {
			return nil, errors.ConfigError("deploy manifest declares a job twice").
				WithContext("job", j.Name).Build()
		}
		seen[j.Name] = struct{}{}
	}
	if m.Properties == nil {
		m.Properties = map[string]any{}
	}
	return &m, nil
}

// Path returns the file the manifest was loaded from.
func (m *Manifest) Path() string { return m.path }

// Job returns the deployment job named name.
func (m *Manifest) Job(name string) (Job, bool) {
	for _, j := range m.Jobs {
		if j.Name == name {
			return j, true
		}
	}
	return Job{}, false
}

// JobProperties returns the global properties with the job's own properties
// deep-merged over them.
func (m *Manifest) JobProperties(name string) map[string]any {
	j, ok := m.Job(name)
	if !ok {
		return DeepMerge(nil, m.Properties)
	}
	return DeepMerge(DeepMerge(nil, m.Properties), j.Properties)
}

// StaticIP returns the first static IP assigned to the job, if any.
func (j Job) StaticIP() string {
	for _, n := range j.Networks {
		if len(n.StaticIPs) > 0 {
			return n.StaticIPs[0]
		}
	}
	return ""
}

// DeepMerge merges src into a copy of dst. Nested maps are merged recursively,
// every other value in src replaces the one in dst.
func DeepMerge(dst, src map[string]any) map[string]any {
	out := make(map[string]any, len(dst)+len(src))
	maps.Copy(out, dst)
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]any)
		dstMap, dstIsMap := out[k].(map[string]any)
		if srcIsMap && dstIsMap {
			out[k] = DeepMerge(dstMap, srcMap)
			continue
		}
		if srcIsMap {
			out[k] = DeepMerge(nil, srcMap)
			continue
		}
		out[k] = v
	}
	return out
}

// Lookup resolves a dotted property path such as "nats.port".
func Lookup(props map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	var cur any = props
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
