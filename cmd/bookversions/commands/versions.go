package commands

import (
	"context"
	stderrors "errors"
	"fmt"

	"git.home.luguber.info/inful/bookversions/internal/auth"
	"git.home.luguber.info/inful/bookversions/internal/errors"
	"git.home.luguber.info/inful/bookversions/internal/model"
	"git.home.luguber.info/inful/bookversions/internal/repository"
)

// DeleteVersionCmd implements the 'delete-version' command.
type DeleteVersionCmd struct {
	Version string `arg:"" help:"Version reference (e.g. Books.Guide.Versions.v2)"`
}

func (c *DeleteVersionCmd) Run(g *Global, root *CLI) error {
	ref, err := parseRef("version", c.Version)
	if err != nil {
		return err
	}
	ctx := context.Background()
	rt, closeRuntime, err := openRuntime(ctx, root)
	if err != nil {
		return err
	}
	defer closeRuntime()

	user := root.user(rt.Config)
	if err := rt.Authorizer.Check(ctx, user, auth.RightDelete, ref); err != nil {
		return err
	}
	doc, err := rt.Store.Get(ctx, ref)
	if stderrors.Is(err, repository.ErrNotFound) {
		return errors.NotFound(ref.String())
	} else if err != nil {
		return errors.StoreUnavailable("get", err)
	}
	if !doc.HasObject(model.ClassVersion) {
		return errors.ValidationFailed("version", fmt.Sprintf("%s is not a version", ref))
	}
	if err := rt.Store.Delete(repository.WithAuthor(ctx, user), ref); err != nil {
		return errors.WriteFailed(ref.String(), err)
	}

	id, err := rt.Hooks.VersionDeleted(ctx, doc, user)
	if err != nil {
		return err
	}
	fmt.Fprintf(g.out(), "Deleted %s\n", ref)
	if id == "" {
		return nil
	}
	job, err := waitJob(ctx, rt, id)
	if err != nil {
		return err
	}
	printJob(g.out(), job)
	return nil
}

// RenameVersionCmd implements the 'rename-version' command.
type RenameVersionCmd struct {
	Version string `arg:"" help:"Version reference"`
	Name    string `arg:"" help:"New version name"`
}

func (c *RenameVersionCmd) Run(g *Global, root *CLI) error {
	oldRef, err := parseRef("version", c.Version)
	if err != nil {
		return err
	}
	if c.Name == "" {
		return errors.ValidationFailed("name", "required")
	}
	newRef := oldRef.Sibling(c.Name)

	ctx := context.Background()
	rt, closeRuntime, err := openRuntime(ctx, root)
	if err != nil {
		return err
	}
	defer closeRuntime()

	user := root.user(rt.Config)
	if err := rt.Authorizer.Check(ctx, user, auth.RightEdit, oldRef); err != nil {
		return err
	}
	switch err := rt.Store.Rename(repository.WithAuthor(ctx, user), oldRef, newRef); {
	case stderrors.Is(err, repository.ErrNotFound):
		return errors.NotFound(oldRef.String())
	case stderrors.Is(err, repository.ErrAlreadyExists):
		return errors.ValidationFailed("name", fmt.Sprintf("%s already exists", newRef))
	case err != nil:
		return errors.WriteFailed(oldRef.String(), err)
	}

	res, err := rt.Hooks.VersionRenamed(ctx, oldRef, newRef, user)
	if err != nil {
		return err
	}
	w := g.out()
	fmt.Fprintf(w, "Renamed %s to %s\n", oldRef, newRef)
	for _, ref := range res.Renamed {
		fmt.Fprintf(w, "  content %s\n", ref)
	}
	for _, ref := range res.Denied {
		fmt.Fprintf(w, "  kept %s (denied)\n", ref)
	}
	return nil
}
