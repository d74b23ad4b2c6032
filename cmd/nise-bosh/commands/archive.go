package commands

import (
	"context"
	"fmt"

	"github.com/WuLonghui/nise-bosh/internal/builder"
)

// ArchiveCmd implements the 'archive' command.
type ArchiveCmd struct {
	ReleaseRepo    string `arg:"" name:"RELEASE_REPOSITORY" help:"Release repository directory" type:"path"`
	DeployManifest string `arg:"" name:"DEPLOY_MANIFEST" help:"Deploy manifest file" type:"path"`
	JobName        string `arg:"" name:"JOB_NAME" help:"Deployment job to archive"`
	OutputPath     string `arg:"" optional:"" name:"OUTPUT_PATH" help:"Archive file or directory (default: current directory)"`
}

func (c *ArchiveCmd) Run(g *Global, root *CLI) error {
	s, err := root.openSession(c.ReleaseRepo, c.DeployManifest)
	if err != nil {
		return err
	}
	res, err := s.run(context.Background(), builder.Request{
		Mode:   builder.ModeArchive,
		Job:    c.JobName,
		Output: c.OutputPath,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(g.Out, res.ArchivePath)
	return err
}
