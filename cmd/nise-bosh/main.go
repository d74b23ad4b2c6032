package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/WuLonghui/nise-bosh/cmd/nise-bosh/commands"
	"github.com/WuLonghui/nise-bosh/internal/config"
	"github.com/WuLonghui/nise-bosh/internal/foundation/errors"
	"github.com/WuLonghui/nise-bosh/internal/version"
)

func main() {
	if _, err := config.LoadEnvFiles(config.DefaultEnvFiles...); err != nil {
		fmt.Fprintf(os.Stderr, "Note: %v\n", err)
	}

	cli := &commands.CLI{}
	ctx := kong.Parse(cli,
		kong.Name("nise-bosh"),
		kong.Description("Install BOSH release jobs and packages on the local machine."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	if err := ctx.Run(commands.NewGlobal(), cli); err != nil {
		errors.NewCLIErrorAdapter(cli.Verbose, cli.Logger()).HandleError(err)
	}
}
