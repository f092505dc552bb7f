package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/bookversions/internal/config"
	"git.home.luguber.info/inful/bookversions/internal/daemon"
	"git.home.luguber.info/inful/bookversions/internal/errors"
	"git.home.luguber.info/inful/bookversions/internal/jobs"
	"git.home.luguber.info/inful/bookversions/internal/model"
)

// Global is shared state bound into every command.
type Global struct {
	Out io.Writer
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"bookversions.yaml" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	User    string           `short:"u" help:"User the operation runs as (defaults to auth.default_user)" env:"BOOKVERSIONS_USER"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Init                 InitCmd                 `cmd:"" help:"Initialize a new configuration file"`
	Import               ImportCmd               `cmd:"" help:"Load documents from a YAML fixture into the store"`
	Export               ExportCmd               `cmd:"" help:"Write store documents as a YAML fixture"`
	Publish              PublishCmd              `cmd:"" help:"Run a publication configuration"`
	Preview              PreviewCmd              `cmd:"" help:"Show what a publication configuration would do"`
	RemoveVersionContent RemoveVersionContentCmd `cmd:"" name:"remove-version-content" help:"Delete every content fork of a version"`
	SetStatus            SetStatusCmd            `cmd:"" name:"set-status" help:"Set the status of versioned pages"`
	MarkDeleted          MarkDeletedCmd          `cmd:"" name:"mark-deleted" help:"Toggle the deletion marker of a document"`
	CreatePage           CreatePageCmd           `cmd:"" name:"create-page" help:"Create a page inside a book or library"`
	SetLibrary           SetLibraryCmd           `cmd:"" name:"set-library" help:"Make every version of a book use a library version"`
	DeleteVersion        DeleteVersionCmd        `cmd:"" name:"delete-version" help:"Delete a version and repair the version chain"`
	RenameVersion        RenameVersionCmd        `cmd:"" name:"rename-version" help:"Rename a version and its content forks"`
	Tree                 TreeCmd                 `cmd:"" help:"Print the versions and pages of a collection"`
	History              HistoryCmd              `cmd:"" help:"List journaled publication runs"`
	Serve                ServeCmd                `cmd:"" help:"Run the HTTP API, job workers and scheduled publications"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// user resolves the acting user: --user, then the configured default.
func (c *CLI) user(cfg *config.Config) string {
	if c.User != "" {
		return c.User
	}
	return cfg.Auth.DefaultUser
}

// openRuntime loads the configuration and wires a runtime with running job workers.
// The returned func stops the workers and closes the store.
func openRuntime(ctx context.Context, root *CLI) (*daemon.Runtime, func(), error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.CategoryConfig, errors.SeverityFatal, "failed to load configuration").
			WithContext("path", root.Config)
	}
	rt, err := daemon.NewRuntime(ctx, cfg, slog.Default())
	if err != nil {
		return nil, nil, err
	}
	rt.Queue.Start(ctx)
	return rt, func() {
		rt.Queue.Stop(context.Background())
		rt.Close()
	}, nil
}

// waitJob blocks until id finishes and returns its error, if any.
func waitJob(ctx context.Context, rt *daemon.Runtime, id string) (*jobs.Job, error) {
	job, err := rt.Jobs.Wait(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status == jobs.StatusFailed {
		if jerr := job.Err(); jerr != nil {
			return job, jerr
		}
		return job, errors.New(errors.CategoryRuntime, errors.SeverityError, job.Error).WithContext("job_id", id)
	}
	return job, nil
}

func parseRef(field, value string) (model.DocumentRef, error) {
	ref, err := model.ParseDocumentRef(value, model.DocumentRef{})
	if err != nil {
		return model.DocumentRef{}, errors.ValidationFailed(field, err.Error())
	}
	return ref, nil
}

func parseRefs(field string, values []string) ([]model.DocumentRef, error) {
	refs := make([]model.DocumentRef, 0, len(values))
	for _, v := range values {
		ref, err := parseRef(field, v)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func printJob(w io.Writer, job *jobs.Job) {
	fmt.Fprintf(w, "Job %s %s", job.ID, job.Status)
	if job.Duration > 0 {
		fmt.Fprintf(w, " in %s", job.Duration.Round(time.Millisecond))
	}
	fmt.Fprintln(w)
}
