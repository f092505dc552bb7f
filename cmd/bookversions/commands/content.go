package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/bookversions/internal/jobs"
	"git.home.luguber.info/inful/bookversions/internal/model"
)

// RemoveVersionContentCmd implements the 'remove-version-content' command.
type RemoveVersionContentCmd struct {
	Version string `arg:"" help:"Version reference (e.g. Books.Guide.Versions.v1)"`
}

func (c *RemoveVersionContentCmd) Run(g *Global, root *CLI) error {
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

	id, err := rt.Jobs.RemoveVersionContent(ctx, ref, root.user(rt.Config))
	if err != nil {
		return err
	}
	job, err := waitJob(ctx, rt, id)
	if err != nil {
		return err
	}
	printJob(g.out(), job)
	return nil
}

// SetStatusCmd implements the 'set-status' command.
type SetStatusCmd struct {
	Status string   `arg:"" enum:"draft,review,complete" help:"New status (draft, review, complete)"`
	Pages  []string `arg:"" help:"Page references"`
	Scope  string   `help:"selected: only the given pages; children: their versioned content too" enum:"selected,children" default:"selected"`
}

func (c *SetStatusCmd) Run(g *Global, root *CLI) error {
	pages, err := parseRefs("pages", c.Pages)
	if err != nil {
		return err
	}
	ctx := context.Background()
	rt, closeRuntime, err := openRuntime(ctx, root)
	if err != nil {
		return err
	}
	defer closeRuntime()

	id, err := rt.Jobs.SetPagesStatus(ctx, jobs.StatusRequest{
		Pages:  pages,
		Scope:  jobs.Scope(c.Scope),
		Status: model.PageStatus(c.Status),
		User:   root.user(rt.Config),
	})
	if err != nil {
		return err
	}
	job, err := waitJob(ctx, rt, id)
	if err != nil {
		return err
	}
	w := g.out()
	printJob(w, job)
	if res, ok := job.Result.(*jobs.StatusResult); ok {
		fmt.Fprintf(w, "Changed %d pages to %s\n", len(res.Changed), res.Status)
		for _, ref := range res.Denied {
			fmt.Fprintf(w, "  denied %s\n", ref)
		}
	}
	return nil
}
