package archive

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"git.home.luguber.info/inful/bookversions/internal/config"
	"git.home.luguber.info/inful/bookversions/internal/model"
	"git.home.luguber.info/inful/bookversions/internal/publication"
	"git.home.luguber.info/inful/bookversions/internal/repository"
)

func savePage(t *testing.T, store repository.Store, ref, content string) {
	t.Helper()
	doc := model.NewDocument(model.MustDocumentRef(ref))
	doc.Title = ref
	doc.Content = content
	if err := store.Save(t.Context(), doc, ""); err != nil {
		t.Fatalf("save %s: %v", ref, err)
	}
}

func commits(t *testing.T, dir string) []*object.Commit {
	t.Helper()
	repo, err := git.PlainOpen(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	head, err := repo.Head()
	if err != nil {
		return nil
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	var out []*object.Commit
	_ = iter.ForEach(func(c *object.Commit) error {
		out = append(out, c)
		return nil
	})
	return out
}

func TestArchiveCommitsPublishedSpace(t *testing.T) {
	dir := t.TempDir()
	store := repository.NewMemoryStore()
	savePage(t, store, "Pub.Guide.WebHome", "home")
	savePage(t, store, "Pub.Guide.Intro.WebHome", "intro")
	savePage(t, store, "Other.WebHome", "not archived")

	a, err := New(store, config.ArchiveConfig{Directory: dir, AuthorName: "bookversions", AuthorEmail: "bv@example.com"}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	a.now = func() time.Time { return time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC) }

	snap := publication.Snapshot{
		Configuration: model.MustDocumentRef("Publications.Guide"),
		Destination:   model.SpaceRef{"Pub", "Guide"},
		VersionName:   "v1",
		VariantName:   "Pro",
		Language:      "fr",
		User:          "alice",
	}
	if err := a.Archive(t.Context(), snap); err != nil {
		t.Fatalf("archive: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "Pub", "Guide", "Intro", "WebHome.md"))
	if err != nil {
		t.Fatalf("read page file: %v", err)
	}
	if !strings.HasSuffix(string(data), "intro") {
		t.Errorf("page file does not end with the content: %q", data)
	}
	if !strings.Contains(string(data), "Pub.Guide.Intro.WebHome") {
		t.Errorf("page file does not carry its reference: %q", data)
	}
	if _, err := os.Stat(filepath.Join(dir, "Other", "WebHome.md")); !os.IsNotExist(err) {
		t.Errorf("documents outside the destination must not be archived, stat err=%v", err)
	}

	log := commits(t, dir)
	if len(log) != 1 {
		t.Fatalf("expected 1 commit, got %d", len(log))
	}
	if want := "Publish Publications.Guide (v1/Pro, fr)\n\nPublished-by: alice"; strings.TrimSpace(log[0].Message) != want {
		t.Errorf("commit message = %q, want %q", log[0].Message, want)
	}
	if log[0].Author.Email != "bv@example.com" {
		t.Errorf("author = %q", log[0].Author.Email)
	}

	// unchanged destination: no new commit
	if err := a.Archive(t.Context(), snap); err != nil {
		t.Fatalf("archive again: %v", err)
	}
	if got := len(commits(t, dir)); got != 1 {
		t.Fatalf("expected no new commit, got %d commits", got)
	}

	if err := store.Delete(t.Context(), model.MustDocumentRef("Pub.Guide.Intro.WebHome")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := a.Archive(t.Context(), snap); err != nil {
		t.Fatalf("archive after removal: %v", err)
	}
	if got := len(commits(t, dir)); got != 2 {
		t.Fatalf("expected 2 commits, got %d", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "Pub", "Guide", "Intro", "WebHome.md")); !os.IsNotExist(err) {
		t.Errorf("removed page is still archived, stat err=%v", err)
	}
}

func TestCommitMessage(t *testing.T) {
	cfg := model.MustDocumentRef("Publications.Guide")
	tests := []struct {
		snap publication.Snapshot
		want string
	}{
		{publication.Snapshot{Configuration: cfg, VersionName: "v1"}, "Publish Publications.Guide (v1)"},
		{publication.Snapshot{Configuration: cfg, VersionName: "v1", Language: "de"}, "Publish Publications.Guide (v1, de)"},
		{publication.Snapshot{Configuration: cfg}, "Publish Publications.Guide"},
	}
	for _, tt := range tests {
		if got := CommitMessage(tt.snap); got != tt.want {
			t.Errorf("CommitMessage(%+v) = %q, want %q", tt.snap, got, tt.want)
		}
	}
}

func TestFilePath(t *testing.T) {
	ref := model.DocumentRef{Space: model.SpaceRef{"Pub", "a/b"}, Name: "WebHome"}
	if got := FilePath(ref); got != "Pub/a_b/WebHome.md" {
		t.Errorf("FilePath = %q", got)
	}
}

func TestNewRequiresDirectory(t *testing.T) {
	if _, err := New(repository.NewMemoryStore(), config.ArchiveConfig{}, nil); err == nil {
		t.Fatal("expected an error without a directory")
	}
}
