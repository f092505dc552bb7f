package commands

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/disiqueira/gotree/v3"

	"git.home.luguber.info/inful/bookversions/internal/collection"
	"git.home.luguber.info/inful/bookversions/internal/errors"
	"git.home.luguber.info/inful/bookversions/internal/model"
	"git.home.luguber.info/inful/bookversions/internal/repository"
	"git.home.luguber.info/inful/bookversions/internal/richtext"
	"git.home.luguber.info/inful/bookversions/internal/translation"
	"git.home.luguber.info/inful/bookversions/internal/versioning"
)

// TreeCmd implements the 'tree' command.
type TreeCmd struct {
	Collection string `arg:"" help:"Book or library reference (e.g. Books.Guide.WebHome)"`
	Language   string `short:"l" help:"Show page titles in this language (defaults to publication.default_language)"`
}

func (c *TreeCmd) Run(g *Global, root *CLI) error {
	ref, err := parseRef("collection", c.Collection)
	if err != nil {
		return err
	}
	ctx := context.Background()
	rt, closeRuntime, err := openRuntime(ctx, root)
	if err != nil {
		return err
	}
	defer closeRuntime()

	lang := c.Language
	if lang == "" {
		lang = rt.Config.Publication.DefaultLanguage
	}
	out, err := RenderTree(ctx, rt.Store, ref, lang)
	if err != nil {
		return err
	}
	fmt.Fprint(g.out(), out)
	return nil
}

// RenderTree draws a collection: its versions with their preceding version, its
// variants, and its pages with the content fork each version resolves to.
func RenderTree(ctx context.Context, store repository.Store, ref model.DocumentRef, lang string) (string, error) {
	nav := collection.NewNavigator(store, slog.Default()).Cached()
	versions := versioning.NewResolver(nav)
	syntaxes := richtext.DefaultRegistry()

	kind, err := nav.Kind(ctx, ref)
	if err != nil {
		return "", errors.StoreUnavailable("kind", err)
	}
	if !kind.Any(model.KindBook | model.KindLibrary) {
		return "", errors.ValidationFailed("collection", fmt.Sprintf("%s is not a book or library", ref))
	}
	title, err := nav.Title(ctx, ref)
	if err != nil {
		return "", errors.StoreUnavailable("get", err)
	}
	tree := gotree.New(fmt.Sprintf("%s (%s)", title, ref))

	versionRefs, err := nav.Versions(ctx, ref)
	if err != nil {
		return "", errors.StoreUnavailable("query", err)
	}
	if len(versionRefs) > 0 {
		node := tree.Add("Versions")
		for _, v := range versionRefs {
			label := collection.VersionName(v)
			prev, ok, err := versions.PreviousVersion(ctx, v)
			if err != nil {
				return "", err
			}
			if ok {
				label += " <- " + collection.VersionName(prev)
			}
			node.Add(label)
		}
	}

	variantRefs, err := nav.Variants(ctx, ref)
	if err != nil {
		return "", errors.StoreUnavailable("query", err)
	}
	if len(variantRefs) > 0 {
		node := tree.Add("Variants")
		for _, v := range variantRefs {
			node.Add(v.PageName())
		}
	}

	pages, err := nav.PageTree(ctx, ref)
	if err != nil {
		return "", errors.StoreUnavailable("query", err)
	}
	if len(pages) > 1 {
		node := tree.Add("Pages")
		// parents before children
		pages = pages[1:]
		slices.SortFunc(pages, func(a, b model.DocumentRef) int {
			return strings.Compare(a.Space.String(), b.Space.String())
		})
		spaces := map[string]gotree.Tree{}
		for _, page := range pages {
			label, err := pageLabel(ctx, nav, versions, syntaxes, page, versionRefs, lang)
			if err != nil {
				return "", err
			}
			parent := node
			if up, ok := page.ParentHome(); ok {
				if t, found := spaces[up.Space.String()]; found {
					parent = t
				}
			}
			spaces[page.Space.String()] = parent.Add(label)
		}
	}
	return tree.Print(), nil
}

func pageLabel(ctx context.Context, nav *collection.Navigator, versions *versioning.Resolver,
	syntaxes *richtext.Registry, page model.DocumentRef, versionRefs []model.DocumentRef, lang string,
) (string, error) {
	doc, err := nav.Document(ctx, page)
	if err != nil {
		return "", errors.StoreUnavailable("get", err)
	}
	title := page.PageName()
	if doc != nil {
		if t, err := translation.TranslatedTitle(doc, syntaxes, lang); err == nil && t != "" {
			title = t
		}
	}
	kind := model.KindOf(doc)
	if !kind.Has(model.KindVersionedPage) {
		return title + " (unversioned)", nil
	}

	parts := make([]string, 0, len(versionRefs))
	for _, v := range versionRefs {
		name := collection.VersionName(v)
		fork, ok, err := versions.ResolveContent(ctx, page, v)
		if err != nil {
			return "", err
		}
		switch {
		case !ok:
			parts = append(parts, name+": -")
		case fork.Name == name:
			parts = append(parts, name+": "+forkStatus(ctx, nav, fork))
		default:
			parts = append(parts, name+": from "+fork.Name)
		}
	}
	if len(parts) == 0 {
		return title, nil
	}
	return title + " [" + strings.Join(parts, ", ") + "]", nil
}

func forkStatus(ctx context.Context, nav *collection.Navigator, fork model.DocumentRef) string {
	doc, err := nav.Document(ctx, fork)
	if err != nil || doc == nil {
		return "?"
	}
	if doc.HasObject(model.ClassDeletedContent) {
		return "deleted"
	}
	if status := doc.Object(model.ClassPageStatus).String(model.PropStatus); status != "" {
		return status
	}
	return "no status"
}
