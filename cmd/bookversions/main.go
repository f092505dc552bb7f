package main

import (
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/bookversions/cmd/bookversions/commands"
	"git.home.luguber.info/inful/bookversions/internal/errors"
	"git.home.luguber.info/inful/bookversions/internal/version"
)

func main() {
	var cli commands.CLI
	parser := kong.Parse(&cli,
		kong.Name("bookversions"),
		kong.Description("Versioned books and libraries: publish, preview and maintain collection versions."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(&commands.Global{Out: os.Stdout}),
	)

	if err := parser.Run(&cli); err != nil {
		errors.NewCLIErrorAdapter(cli.Verbose, nil).HandleError(err)
	}
}
