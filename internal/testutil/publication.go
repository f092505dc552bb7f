package testutil

import (
	"testing"

	"git.home.luguber.info/inful/bookversions/internal/model"
	"git.home.luguber.info/inful/bookversions/internal/repository"
)

// PublicationConfig stores a publication configuration document at ref carrying props
// and returns its reference.
func PublicationConfig(t *testing.T, store repository.Store, ref string, props map[string]string) model.DocumentRef {
	t.Helper()
	doc := model.NewDocument(model.MustDocumentRef(ref))
	doc.Title = doc.Ref.PageName()
	obj := doc.AddObject(model.ClassPublicationConfiguration)
	for k, v := range props {
		obj.Set(k, v)
	}
	if err := store.Save(t.Context(), doc, "test fixture"); err != nil {
		t.Fatalf("save %s: %v", ref, err)
	}
	return doc.Ref
}
