package repository

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/bookversions/internal/model"
)

// Fixture is the YAML import/export format: documents keyed by serialized reference.
type Fixture struct {
	Documents map[string]*model.Document `yaml:"documents"`
}

// LoadFixture decodes a YAML fixture from r and saves every document into store.
func LoadFixture(ctx context.Context, store Store, r io.Reader) (int, error) {
	var fx Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil {
		if err == io.EOF {
			return 0, nil
		}
		return 0, fmt.Errorf("decode fixture: %w", err)
	}

	keys := make([]string, 0, len(fx.Documents))
	for k := range fx.Documents {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		ref, err := model.ParseDocumentRef(key, model.DocumentRef{})
		if err != nil {
			return 0, fmt.Errorf("fixture reference %q: %w", key, err)
		}
		doc := fx.Documents[key]
		if doc == nil {
			doc = &model.Document{}
		}
		doc.Ref = ref
		if err := store.Save(ctx, doc, "Imported from fixture"); err != nil {
			return 0, fmt.Errorf("save %s: %w", key, err)
		}
	}
	return len(keys), nil
}

// LoadFixtureFile is LoadFixture for a file path.
func LoadFixtureFile(ctx context.Context, store Store, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()
	return LoadFixture(ctx, store, f)
}

// DumpFixture writes every document accepted by filter (nil = all) as a YAML fixture.
func DumpFixture(ctx context.Context, store Store, w io.Writer, filter *Filter) (int, error) {
	refs, err := store.Query(ctx, Query{})
	if err != nil {
		return 0, err
	}
	fx := Fixture{Documents: make(map[string]*model.Document, len(refs))}
	for _, ref := range refs {
		if ok, _ := filter.Include(ref); !ok {
			continue
		}
		doc, err := store.Get(ctx, ref)
		if err != nil {
			return 0, err
		}
		fx.Documents[ref.String()] = doc
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&fx); err != nil {
		return 0, fmt.Errorf("encode fixture: %w", err)
	}
	if err := enc.Close(); err != nil {
		return 0, fmt.Errorf("encode fixture: %w", err)
	}
	return len(fx.Documents), nil
}
