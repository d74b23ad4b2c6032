package release

import (
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/WuLonghui/nise-bosh/internal/foundation/errors"
)

const (
	jobManifestFile = "job.MF"
	monitFile       = "monit"
	templatesDir    = "templates"
)

type jobManifest struct {
	Name       string                 `yaml:"name"`
	Templates  yaml.Node              `yaml:"templates"`
	Packages   []string               `yaml:"packages"`
	Properties map[string]PropertyDef `yaml:"properties"`
}

// parseJobArtifact builds a JobSpec from the members of a job build artifact.
func parseJobArtifact(record JobRecord, files map[string][]byte) (*JobSpec, error) {
	raw, ok := files[jobManifestFile]
	if !ok {
		return nil, errors.RepositoryError("job artifact has no job.MF").
			WithContext("job", record.Name).Build()
	}

	var mf jobManifest
	if err := yaml.Unmarshal(raw, &mf); err != nil {
		return nil, errors.WrapError(err, errors.CategoryRepository, "invalid job.MF").
			WithContext("job", record.Name).Build()
	}

	spec := &JobSpec{
		Name:       record.Name,
		Version:    record.Version,
		Packages:   mf.Packages,
		Properties: mf.Properties,
		sources:    make(map[string]string),
	}
	if mf.Name != "" {
		spec.Name = mf.Name
	}
	if m, ok := files[monitFile]; ok {
		spec.Monit = string(m)
	}

	templates, err := templateSpecs(&mf.Templates)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "invalid templates in job.MF").
			WithContext("job", spec.Name).Build()
	}

	seen := make(map[string]string, len(templates))
	for _, tpl := range templates {
		if prev, dup := seen[tpl.Destination]; dup {
			return nil, errors.ValidationError("templates share an install path").
				WithContext("job", spec.Name).
				WithContext("destination", tpl.Destination).
				WithContext("templates", []string{prev, tpl.Source}).
				Build()
		}
		seen[tpl.Destination] = tpl.Source

		src, ok := files[path.Join(templatesDir, tpl.Source)]
		if !ok {
			return nil, errors.RepositoryError("template source missing from job artifact").
				WithContext("job", spec.Name).
				WithContext("template", tpl.Source).Build()
		}
		spec.sources[tpl.Source] = string(src)
	}
	spec.Templates = templates
	return spec, nil
}

// templateSpecs reads the templates mapping keeping document order.
func templateSpecs(node *yaml.Node) ([]TemplateSpec, error) {
	if node.Kind == 0 || node.ShortTag() == "!!null" {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: templates must be a mapping", node.Line)
	}
	out := make([]TemplateSpec, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		src, dst := node.Content[i].Value, node.Content[i+1].Value
		if src == "" || dst == "" {
			return nil, fmt.Errorf("line %d: empty template mapping", node.Content[i].Line)
		}
		if path.IsAbs(dst) || path.Clean(dst) != dst || dst == ".." || strings.HasPrefix(dst, "../") {
			return nil, fmt.Errorf("line %d: install path %q must be relative and clean", node.Content[i+1].Line, dst)
		}
		out = append(out, TemplateSpec{Source: src, Destination: dst})
	}
	return out, nil
}
