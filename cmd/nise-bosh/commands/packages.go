package commands

import (
	"context"
	"fmt"

	"github.com/WuLonghui/nise-bosh/internal/builder"
	"github.com/WuLonghui/nise-bosh/internal/foundation/errors"
)

// PackagesCmd implements the 'packages' command.
type PackagesCmd struct {
	NoDependency bool     `name:"no-dependency" help:"Install no dependency packages"`
	ReleaseRepo  string   `arg:"" name:"RELEASE_REPOSITORY" help:"Release repository directory" type:"path"`
	PackageNames []string `arg:"" name:"PACKAGE_NAME" help:"Packages to install"`
}

func (c *PackagesCmd) Run(g *Global, root *CLI) error {
	s, err := root.openSession(c.ReleaseRepo, "")
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.InitializeEnvironment(); err != nil {
		return err
	}
	for _, name := range c.PackageNames {
		if !s.PackageExists(name) {
			return errors.NotFoundError(fmt.Sprintf("Given package %s does not exist!", name)).
				WithContext("package", name).Build()
		}
	}

	packages := c.PackageNames
	if !c.NoDependency {
		if packages, err = s.ResolveDependency(c.PackageNames); err != nil {
			return err
		}
	}
	if err := printTree(g.Out, "The following packages will be installed:", newPackageTree(packages)); err != nil {
		return err
	}

	ok, err := g.confirmOrAbort(root.Yes)
	if err != nil || !ok {
		return err
	}

	if _, err := s.run(context.Background(), builder.Request{
		Mode:         builder.ModeInstallPackages,
		Packages:     c.PackageNames,
		NoDependency: c.NoDependency,
	}); err != nil {
		return err
	}
	_, err = fmt.Fprintln(g.Out, "Done!")
	return err
}
