// Package resolve computes package installation order.
package resolve

import (
	"slices"
	"strings"

	"github.com/WuLonghui/nise-bosh/internal/foundation/errors"
	"github.com/WuLonghui/nise-bosh/internal/util/sets"
)

// Lookup returns the declared dependencies of a package.
type Lookup interface {
	Dependencies(name string) ([]string, error)
}

// traversal holds the state of one Resolve call.
type traversal struct {
	lookup     Lookup
	done       sets.Set[string]
	inProgress sets.Set[string]
	path       []string
	order      []string
}

// Resolve returns the dependency-closed installation order of requested.
// Each package appears once, after all of its dependencies, at the position
// where it was first reached.
func Resolve(lookup Lookup, requested []string) ([]string, error) {
	tr := &traversal{
		lookup:     lookup,
		done:       sets.New[string](),
		inProgress: sets.New[string](),
	}
	for _, name := range requested {
		if err := tr.visit(name); err != nil {
			return nil, err
		}
	}
	return tr.order, nil
}

func (tr *traversal) visit(name string) error {
	if tr.done.Has(name) {
		return nil
	}
	if tr.inProgress.Has(name) {
		start := slices.Index(tr.path, name)
		cycle := append(slices.Clone(tr.path[start:]), name)
		return errors.CyclicDependencyError("cyclic dependency detected: "+strings.Join(cycle, " -> ")).
			WithContext("cycle", cycle).Build()
	}

	deps, err := tr.lookup.Dependencies(name)
	if err != nil {
		return err
	}

	tr.inProgress.Add(name)
	tr.path = append(tr.path, name)
	for _, dep := range deps {
		if err := tr.visit(dep); err != nil {
			return err
		}
	}
	tr.path = tr.path[:len(tr.path)-1]
	tr.inProgress.Delete(name)

	tr.done.Add(name)
	tr.order = append(tr.order, name)
	return nil
}
