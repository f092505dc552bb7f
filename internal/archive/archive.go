// Package archive keeps a git history of published spaces. After each publication run the
// destination space is exported as page files into a git working tree and committed.
package archive

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"git.home.luguber.info/inful/bookversions/internal/config"
	"git.home.luguber.info/inful/bookversions/internal/errors"
	"git.home.luguber.info/inful/bookversions/internal/frontmatterops"
	"git.home.luguber.info/inful/bookversions/internal/logfields"
	"git.home.luguber.info/inful/bookversions/internal/model"
	"git.home.luguber.info/inful/bookversions/internal/publication"
	"git.home.luguber.info/inful/bookversions/internal/repository"
)

// GitArchiver commits published spaces into a git repository.
type GitArchiver struct {
	store  repository.Store
	dir    string
	author object.Signature
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	repo *git.Repository
}

var _ publication.Archiver = (*GitArchiver)(nil)

// New opens the repository at cfg.Directory, initializing it when missing.
func New(store repository.Store, cfg config.ArchiveConfig, logger *slog.Logger) (*GitArchiver, error) {
	if cfg.Directory == "" {
		return nil, errors.ConfigRequired("archive.directory")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.Directory, 0o750); err != nil {
		return nil, errors.Wrap(err, errors.CategoryStorage, errors.SeverityError, "failed to create archive directory").
			WithContext("path", cfg.Directory)
	}
	repo, err := git.PlainOpen(cfg.Directory)
	if stderrors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = git.PlainInit(cfg.Directory, false)
		if err == nil {
			logger.Info("Initialized publication archive", slog.String("path", cfg.Directory))
		}
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryStorage, errors.SeverityError, "failed to open archive repository").
			WithContext("path", cfg.Directory)
	}
	return &GitArchiver{
		store:  store,
		dir:    cfg.Directory,
		author: object.Signature{Name: cfg.AuthorName, Email: cfg.AuthorEmail},
		logger: logger,
		now:    time.Now,
		repo:   repo,
	}, nil
}

// Archive exports the destination space of snap and commits it. Nothing is committed when
// the exported files did not change since the previous snapshot.
func (a *GitArchiver) Archive(ctx context.Context, snap publication.Snapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	root := filepath.Join(a.dir, spacePath(snap.Destination))
	if err := os.RemoveAll(root); err != nil {
		return fmt.Errorf("clear %s: %w", root, err)
	}
	refs, err := a.store.Query(ctx, repository.Query{Under: snap.Destination})
	if err != nil {
		return errors.StoreUnavailable("query", err)
	}
	for _, ref := range refs {
		if err := a.export(ctx, ref); err != nil {
			return err
		}
	}

	wt, err := a.repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return fmt.Errorf("stage snapshot: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	if status.IsClean() {
		a.logger.Debug("Archive unchanged", logfields.Space(snap.Destination.String()))
		return nil
	}

	sig := a.author
	sig.When = a.now()
	hash, err := wt.Commit(CommitMessage(snap), &git.CommitOptions{Author: &sig, Committer: &sig})
	if err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	a.logger.Info("Archived published space",
		logfields.Space(snap.Destination.String()),
		logfields.Config(snap.Configuration.String()),
		slog.Int("documents", len(refs)),
		slog.String("commit", hash.String()[:8]))
	return nil
}

func (a *GitArchiver) export(ctx context.Context, ref model.DocumentRef) error {
	doc, err := a.store.Get(ctx, ref)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return errors.StoreUnavailable("get", err)
	}
	data, err := frontmatterops.Encode(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ref, err)
	}
	path := filepath.Join(a.dir, FilePath(ref))
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// CommitMessage describes a run: "Publish <config> (<version>[/<variant>][, <language>])".
func CommitMessage(snap publication.Snapshot) string {
	scope := snap.VersionName
	if snap.VariantName != "" {
		scope += "/" + snap.VariantName
	}
	if snap.Language != "" {
		if scope != "" {
			scope += ", "
		}
		scope += snap.Language
	}
	msg := "Publish " + snap.Configuration.String()
	if scope != "" {
		msg += " (" + scope + ")"
	}
	if snap.User != "" {
		msg += "\n\nPublished-by: " + snap.User
	}
	return msg
}

// FilePath is the slash separated location of ref's page file inside the archive.
func FilePath(ref model.DocumentRef) string {
	return filepath.ToSlash(filepath.Join(spacePath(ref.Space), fileName(ref.Name)+".md"))
}

func spacePath(space model.SpaceRef) string {
	parts := make([]string, len(space))
	for i, name := range space {
		parts[i] = fileName(name)
	}
	return filepath.Join(parts...)
}

var unsafeNames = strings.NewReplacer("/", "_", "\\", "_", "..", "__")

func fileName(name string) string {
	return unsafeNames.Replace(name)
}
