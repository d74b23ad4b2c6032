package commands

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/pterm/pterm"
)

const confirmQuestion = "Do you want to continue?"

func init() {
	pterm.DisableColor()
}

// confirm asks before installing. An empty answer or "y" continues.
func (g *Global) confirm(assumeYes bool) (bool, error) {
	if assumeYes {
		return true, nil
	}
	if g.Interactive {
		return pterm.DefaultInteractiveConfirm.WithDefaultValue(true).Show(confirmQuestion)
	}

	if _, err := fmt.Fprintf(g.Out, "%s [Y/n]", confirmQuestion); err != nil {
		return false, err
	}
	line, err := bufio.NewReader(g.In).ReadString('\n')
	if err != nil && line == "" {
		return false, nil
	}
	answer := strings.TrimSpace(line)
	return answer == "" || strings.EqualFold(answer, "y"), nil
}

// confirmOrAbort prints "Abort." when the user declines.
func (g *Global) confirmOrAbort(assumeYes bool) (bool, error) {
	ok, err := g.confirm(assumeYes)
	if err != nil {
		return false, err
	}
	if !ok {
		_, err = fmt.Fprintln(g.Out, "Abort.")
	}
	return ok, err
}
