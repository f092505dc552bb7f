package commands

import (
	"context"
	"fmt"
	"os"

	"git.home.luguber.info/inful/bookversions/internal/errors"
	"git.home.luguber.info/inful/bookversions/internal/model"
	"git.home.luguber.info/inful/bookversions/internal/richtext"
)

// MarkDeletedCmd implements the 'mark-deleted' command.
type MarkDeletedCmd struct {
	Reference string `arg:"" help:"Document reference"`
}

func (c *MarkDeletedCmd) Run(g *Global, root *CLI) error {
	ref, err := parseRef("reference", c.Reference)
	if err != nil {
		return err
	}
	ctx := context.Background()
	rt, closeRuntime, err := openRuntime(ctx, root)
	if err != nil {
		return err
	}
	defer closeRuntime()

	marked, err := rt.Hooks.SwitchDeletedMark(ctx, ref, root.user(rt.Config))
	if err != nil {
		return err
	}
	if marked {
		fmt.Fprintf(g.out(), "Marked %s as deleted\n", ref)
	} else {
		fmt.Fprintf(g.out(), "Unmarked %s as deleted\n", ref)
	}
	return nil
}

// CreatePageCmd implements the 'create-page' command.
type CreatePageCmd struct {
	Page        string `arg:"" help:"Page reference (e.g. Books.Guide.Install.WebHome)"`
	Title       string `help:"Page title (defaults to the page name)"`
	Content     string `help:"Initial content" xor:"content"`
	ContentFile string `name:"content-file" help:"Read the initial content from a file" type:"existingfile" xor:"content"`
	Unversioned bool   `help:"Keep the content on the page instead of a version fork"`
	Version     string `help:"Version receiving the content (defaults to the first version)"`
}

func (c *CreatePageCmd) Run(g *Global, root *CLI) error {
	ref, err := parseRef("page", c.Page)
	if err != nil {
		return err
	}
	var selected model.DocumentRef
	if c.Version != "" {
		if selected, err = parseRef("version", c.Version); err != nil {
			return err
		}
	}
	content := c.Content
	if c.ContentFile != "" {
		data, err := os.ReadFile(c.ContentFile)
		if err != nil {
			return errors.Wrap(err, errors.CategoryValidation, errors.SeverityError, "failed to read content file").
				WithContext("path", c.ContentFile)
		}
		content = string(data)
	}

	page := model.NewDocument(ref)
	page.Title = c.Title
	if page.Title == "" {
		page.Title = ref.PageName()
	}
	page.Syntax = richtext.MarkdownSyntaxID
	page.Content = content
	page.AddObject(model.ClassBookPage).SetBool(model.PropUnversioned, c.Unversioned)

	ctx := context.Background()
	rt, closeRuntime, err := openRuntime(ctx, root)
	if err != nil {
		return err
	}
	defer closeRuntime()

	fork, err := rt.Hooks.PageCreated(ctx, page, selected, root.user(rt.Config))
	if err != nil {
		return err
	}
	fmt.Fprintf(g.out(), "Created %s\n", ref)
	if !fork.IsZero() {
		fmt.Fprintf(g.out(), "Content stored in %s\n", fork)
	}
	return nil
}

// SetLibraryCmd implements the 'set-library' command.
type SetLibraryCmd struct {
	Book           string `arg:"" help:"Book reference"`
	Library        string `arg:"" help:"Library reference"`
	LibraryVersion string `arg:"" optional:"" help:"Library version (defaults to the library's first version)"`
}

func (c *SetLibraryCmd) Run(g *Global, root *CLI) error {
	book, err := parseRef("book", c.Book)
	if err != nil {
		return err
	}
	library, err := parseRef("library", c.Library)
	if err != nil {
		return err
	}
	var version model.DocumentRef
	if c.LibraryVersion != "" {
		if version, err = parseRef("libraryVersion", c.LibraryVersion); err != nil {
			return err
		}
	}
	ctx := context.Background()
	rt, closeRuntime, err := openRuntime(ctx, root)
	if err != nil {
		return err
	}
	defer closeRuntime()

	if err := rt.Hooks.SetLibrary(ctx, book, library, version, root.user(rt.Config)); err != nil {
		return err
	}
	fmt.Fprintf(g.out(), "Book %s now uses library %s\n", book, library)
	return nil
}
