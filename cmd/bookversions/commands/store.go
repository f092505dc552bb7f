package commands

import (
	"context"
	"fmt"
	"os"

	"git.home.luguber.info/inful/bookversions/internal/errors"
	"git.home.luguber.info/inful/bookversions/internal/repository"
)

// ImportCmd implements the 'import' command.
type ImportCmd struct {
	Fixture string `arg:"" help:"YAML fixture file" type:"existingfile"`
}

func (c *ImportCmd) Run(g *Global, root *CLI) error {
	ctx := context.Background()
	rt, closeRuntime, err := openRuntime(ctx, root)
	if err != nil {
		return err
	}
	defer closeRuntime()

	ctx = repository.WithAuthor(ctx, root.user(rt.Config))
	n, err := repository.LoadFixtureFile(ctx, rt.Store, c.Fixture)
	if err != nil {
		return errors.Wrap(err, errors.CategoryStorage, errors.SeverityError, "import failed").
			WithContext("fixture", c.Fixture)
	}
	fmt.Fprintf(g.out(), "Imported %d documents from %s\n", n, c.Fixture)
	return nil
}

// ExportCmd implements the 'export' command.
type ExportCmd struct {
	File    string   `arg:"" optional:"" help:"Output file (stdout when omitted)"`
	Include []string `help:"Only export references matching these globs (e.g. 'Books.Guide.**')"`
	Exclude []string `help:"Skip references matching these globs"`
}

func (c *ExportCmd) Run(g *Global, root *CLI) error {
	ctx := context.Background()
	filter, err := repository.NewFilter(c.Include, c.Exclude)
	if err != nil {
		return errors.ValidationFailed("include", err.Error())
	}
	rt, closeRuntime, err := openRuntime(ctx, root)
	if err != nil {
		return err
	}
	defer closeRuntime()

	w := g.out()
	if c.File != "" {
		f, err := os.Create(c.File)
		if err != nil {
			return errors.WriteFailed(c.File, err)
		}
		defer f.Close()
		w = f
	}
	n, err := repository.DumpFixture(ctx, rt.Store, w, filter)
	if err != nil {
		return errors.StoreUnavailable("export", err)
	}
	if c.File != "" {
		fmt.Fprintf(g.out(), "Exported %d documents to %s\n", n, c.File)
	}
	return nil
}
