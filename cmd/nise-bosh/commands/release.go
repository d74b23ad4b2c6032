package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/WuLonghui/nise-bosh/internal/builder"
)

// ReleaseCmd implements the 'release' command.
type ReleaseCmd struct {
	Summary     bool   `short:"s" help:"Also print a summary of the release"`
	ReleaseRepo string `arg:"" name:"RELEASE_REPOSITORY" help:"Release repository directory" type:"path"`
}

func (c *ReleaseCmd) Run(g *Global, root *CLI) error {
	s, err := root.openSession(c.ReleaseRepo, "")
	if err != nil {
		return err
	}
	res, err := s.run(context.Background(), builder.Request{Mode: builder.ModeShowRelease})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(g.Out, res.ReleaseFile); err != nil {
		return err
	}
	if !c.Summary {
		return nil
	}

	sum := res.Summary
	commit := sum.Commit
	if sum.Dirty {
		commit += "+"
	}
	if sum.Branch != "" {
		commit += " (" + sum.Branch + ")"
	}
	out, err := pterm.DefaultTable.WithData(pterm.TableData{
		{"name", sum.Name},
		{"version", sum.Version},
		{"jobs", listing(sum.Jobs)},
		{"packages", listing(sum.Packages)},
		{"commit", commit},
	}).WithSeparator("  ").Srender()
	if err != nil {
		return fmt.Errorf("rendering summary: %w", err)
	}
	_, err = fmt.Fprintln(g.Out, out)
	return err
}

// listing renders names as "N (a, b, c)".
func listing(names []string) string {
	return strconv.Itoa(len(names)) + " (" + strings.Join(names, ", ") + ")"
}
