package commands

import (
	"context"
	"fmt"

	"github.com/WuLonghui/nise-bosh/internal/builder"
	"github.com/WuLonghui/nise-bosh/internal/foundation/errors"
)

// InstallCmd implements the 'install' command.
type InstallCmd struct {
	TemplateOnly   bool   `short:"t" name:"template-only" help:"Install only template files"`
	ReleaseRepo    string `arg:"" name:"RELEASE_REPOSITORY" help:"Release repository directory" type:"path"`
	DeployManifest string `arg:"" name:"DEPLOY_MANIFEST" help:"Deploy manifest file" type:"path"`
	JobName        string `arg:"" name:"JOB_NAME" help:"Deployment job to install"`
}

func (c *InstallCmd) Run(g *Global, root *CLI) error {
	s, err := root.openSession(c.ReleaseRepo, c.DeployManifest)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.InitializeEnvironment(); err != nil {
		return err
	}
	if !s.JobExists(c.JobName) {
		return errors.NotFoundError("Given job does not exist!").
			WithContext("job", c.JobName).Build()
	}

	if c.TemplateOnly {
		if _, err := fmt.Fprintf(g.Out, "Template files for the job %s will be installed.\n", c.JobName); err != nil {
			return err
		}
	} else {
		plan, err := s.Plan(c.JobName)
		if err != nil {
			return err
		}
		header := fmt.Sprintf("The following templates and packages for job %s will be installed.", c.JobName)
		if err := printTree(g.Out, header, newPlanTree(plan)); err != nil {
			return err
		}
	}

	ok, err := g.confirmOrAbort(root.Yes)
	if err != nil || !ok {
		return err
	}

	if _, err := s.run(context.Background(), builder.Request{
		Mode:         builder.ModeInstallJob,
		Job:          c.JobName,
		TemplateOnly: c.TemplateOnly,
	}); err != nil {
		return err
	}
	_, err = fmt.Fprintln(g.Out, "Done!")
	return err
}
