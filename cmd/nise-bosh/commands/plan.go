package commands

import (
	"fmt"
	"io"

	"github.com/disiqueira/gotree"

	"github.com/WuLonghui/nise-bosh/internal/builder"
)

func newPlanTree(plan builder.Plan) gotree.Tree {
	tree := gotree.New("Job " + plan.Job)
	for _, t := range plan.Templates {
		node := tree.Add("# " + t.Name)
		for _, p := range t.Packages {
			node.Add("* " + p)
		}
	}
	return tree
}

func newPackageTree(packages []string) gotree.Tree {
	tree := gotree.New("Packages")
	for _, p := range packages {
		tree.Add("* " + p)
	}
	return tree
}

func printTree(w io.Writer, header string, tree gotree.Tree) error {
	_, err := fmt.Fprintf(w, "%s\n%s", header, tree.Print())
	return err
}
