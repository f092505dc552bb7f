package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"

	"git.home.luguber.info/inful/bookversions/internal/publication"
)

// PublishCmd implements the 'publish' command. The run completes before the command
// returns; use the HTTP API of 'serve' for fire-and-forget publications.
type PublishCmd struct {
	Configuration string `arg:"" help:"Publication configuration reference (e.g. Publications.Guide.WebHome)"`
	Format        string `help:"Result format" enum:"text,json" default:"text"`
}

func (c *PublishCmd) Run(g *Global, root *CLI) error {
	ref, err := parseRef("configuration", c.Configuration)
	if err != nil {
		return err
	}
	ctx := context.Background()
	rt, closeRuntime, err := openRuntime(ctx, root)
	if err != nil {
		return err
	}
	defer closeRuntime()

	id, err := rt.Jobs.Publish(ctx, ref, root.user(rt.Config))
	if err != nil {
		return err
	}
	job, err := waitJob(ctx, rt, id)
	if err != nil {
		return err
	}
	w := g.out()
	res, _ := job.Result.(*publication.Result)
	if c.Format == "json" {
		return writeJSON(w, job)
	}
	printJob(w, job)
	if res != nil {
		printResult(w, res)
	}
	return nil
}

func printResult(w io.Writer, res *publication.Result) {
	if res.Cancelled {
		fmt.Fprintf(w, "Cancelled: %s is already used by another publication\n", res.Destination)
		return
	}
	fmt.Fprintf(w, "Destination: %s\n", res.Destination)
	fmt.Fprintf(w, "Published %d, unchanged %d, skipped %d, failed %d, removed %d\n",
		res.Published, res.Unchanged, res.Skipped, res.Failed, res.Removed)
	for _, f := range res.Failures {
		fmt.Fprintf(w, "  failed %s: %s\n", f.Page, f.Error)
	}
}

// PreviewCmd implements the 'preview' command.
type PreviewCmd struct {
	Configuration string `arg:"" help:"Publication configuration reference"`
	Format        string `help:"Output format" enum:"text,json" default:"text"`
}

func (c *PreviewCmd) Run(g *Global, root *CLI) error {
	ref, err := parseRef("configuration", c.Configuration)
	if err != nil {
		return err
	}
	ctx := context.Background()
	rt, closeRuntime, err := openRuntime(ctx, root)
	if err != nil {
		return err
	}
	defer closeRuntime()

	lines, err := rt.Jobs.Preview(ctx, ref, root.user(rt.Config))
	if err != nil {
		return err
	}
	if c.Format == "json" {
		return writeJSON(g.out(), lines)
	}
	for _, l := range lines {
		fmt.Fprintln(g.out(), formatLine(l))
	}
	return nil
}

func formatLine(l publication.Line) string {
	var b strings.Builder
	if l.Action != "" {
		b.WriteString(l.Action)
	} else {
		b.WriteString("! ")
		b.WriteString(l.Message)
		if l.Variable != "" {
			b.WriteString(" (")
			b.WriteString(l.Variable)
			b.WriteString(")")
		}
	}
	for _, f := range l.Fields {
		fmt.Fprintf(&b, " %s=%s", f.Key, f.Value)
	}
	return b.String()
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
