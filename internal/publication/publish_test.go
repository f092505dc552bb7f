package publication

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bookversions/internal/events"
	"git.home.luguber.info/inful/bookversions/internal/model"
	"git.home.luguber.info/inful/bookversions/internal/repository"
	"git.home.luguber.info/inful/bookversions/internal/testutil"
)

type fixture struct {
	store  *repository.MemoryStore
	book   *testutil.CollectionBuilder
	common *testutil.CollectionBuilder
}

// Books.Guide has v1 and v2 (inheriting v1), a Pro variant and English and French.
// Both versions use the Common library at Lv1, published to Pub.Common.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	common := testutil.NewLibrary(t, store, "Libs.Common", "Common").
		Version("Lv1", "").
		UnversionedPage("Intro", "library intro")
	common.Published("Lv1", model.SpaceRef{"Pub", "Common"})

	book := testutil.NewBook(t, store, "Books.Guide", "Guide").
		Version("v1", "").
		Version("v2", "v1").
		Variant("Pro", true).
		Languages("en", "fr").
		Page("Intro").
		Content("Intro", "v1", "intro v1").
		Content("Intro", "v2", "intro v2 [setup](Books.Guide.Setup.WebHome)", testutil.WithStatus(model.StatusComplete)).
		Page("Setup").
		Content("Setup", "v1", "setup", testutil.WithStatus(model.StatusComplete)).
		Page("Draft").
		Content("Draft", "v2", "draft", testutil.WithStatus(model.StatusDraft)).
		Page("Old").
		Content("Old", "v1", "old").
		UnversionedPage("Notes", `notes {{includeLibrary keyReference="Libs.Common.Intro.WebHome"/}}`).
		UseLibrary("v1", common.Ref(), common.VersionRef("Lv1")).
		UseLibrary("v2", common.Ref(), common.VersionRef("Lv1"))
	book.Page("ProOnly").
		Content("ProOnly", "v1", "pro", testutil.WithStatus(model.StatusComplete), testutil.WithVariants(book.VariantRef("Pro")))

	return &fixture{store: store, book: book, common: common}
}

func (f *fixture) config(t *testing.T, name string, behaviour Behaviour, extra map[string]string) model.DocumentRef {
	t.Helper()
	props := map[string]string{
		model.PropConfigSource:           f.book.Ref().String(),
		model.PropConfigDestinationSpace: "Pub.Guide",
		model.PropConfigVersion:          f.book.VersionRef("v2").String(),
		model.PropConfigPublishBehaviour: string(behaviour),
	}
	for k, v := range extra {
		props[k] = v
	}
	return testutil.PublicationConfig(t, f.store, "Publications."+name, props)
}

func (f *fixture) doc(t *testing.T, ref string) *model.Document {
	t.Helper()
	doc, err := f.store.Get(t.Context(), model.MustDocumentRef(ref))
	require.NoError(t, err, "get %s", ref)
	return doc
}

func (f *fixture) exists(t *testing.T, ref string) bool {
	t.Helper()
	ok, err := f.store.Exists(t.Context(), model.MustDocumentRef(ref))
	require.NoError(t, err)
	return ok
}

func publish(t *testing.T, p *Publisher, cfg model.DocumentRef) *Result {
	t.Helper()
	res, err := p.Publish(t.Context(), Request{Configuration: cfg, User: "alice", JobID: "job-1"})
	require.NoError(t, err)
	return res
}

func TestPublishCopiesEligiblePages(t *testing.T) {
	f := newFixture(t)
	evts := events.NewMemoryPublisher()
	p := New(f.store, WithEvents(evts))
	cfg := f.config(t, "Guide", BehaviourCancel, nil)

	var steps []int
	res, err := p.Publish(t.Context(), Request{
		Configuration: cfg,
		User:          "alice",
		Progress:      func(step, total int, _ model.DocumentRef) { steps = append(steps, step, total) },
	})
	require.NoError(t, err)

	assert.False(t, res.Cancelled)
	assert.Equal(t, 5, res.Published)
	assert.Equal(t, 1, res.Skipped, "ProOnly belongs to a variant")
	assert.Zero(t, res.Failed)
	assert.Equal(t, []int{1, 7, 2, 7, 3, 7, 4, 7, 5, 7, 6, 7, 7, 7}, steps)

	intro := f.doc(t, "Pub.Guide.Intro.WebHome")
	assert.Equal(t, "intro v2 [setup](doc:Pub.Guide.Setup.WebHome)", intro.Content)
	assert.False(t, intro.Hidden)
	assert.False(t, intro.HasObject(model.ClassVersionedContent))
	assert.False(t, intro.HasObject(model.ClassPageStatus))
	assert.NotEmpty(t, intro.Fingerprint)
	assert.Equal(t, "alice", intro.Author)

	assert.Equal(t, "setup", f.doc(t, "Pub.Guide.Setup.WebHome").Content, "inherited from v1")
	assert.Equal(t, `notes {{include reference="Pub.Common.Intro.WebHome"/}}`, f.doc(t, "Pub.Guide.Notes.WebHome").Content)
	assert.False(t, f.doc(t, "Pub.Guide.Notes.WebHome").HasObject(model.ClassBookPage))
	assert.False(t, f.exists(t, "Pub.Guide.ProOnly.WebHome"))

	master := f.doc(t, "Books.Guide.WebHome").Object(model.ClassPublication)
	require.NotNil(t, master)
	assert.Equal(t, "v2", master.String(model.PropPublicationID))
	assert.Equal(t, "Books.Guide.WebHome", master.String(model.PropPublicationSource))
	assert.Equal(t, "Pub.Guide.WebHome", master.String(model.PropPublicationPublishedSpace))

	top := f.doc(t, "Pub.Guide.WebHome")
	assert.Equal(t, "Guide", top.Title)
	rec := top.Object(model.ClassPublishedCollection)
	require.NotNil(t, rec)
	assert.Equal(t, "Guide", rec.String(model.PropPublishedMasterName))
	assert.Equal(t, "v2", rec.String(model.PropPublishedBookVersionName))
	assert.Empty(t, rec.String(model.PropPublishedVariantName))
	assert.Equal(t, []string{"en", "fr"}, rec.List(model.PropPublishedLanguages))

	assert.Len(t, evts.OfType(events.PublicationStarted), 1)
	assert.Len(t, evts.OfType(events.PagePublished), 5)
	completed := evts.OfType(events.PublicationCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, 5, completed[0].Data["published"])

	history, err := f.store.History(t.Context(), intro.Ref)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Published from [Guide], version [v2].", history[0].Comment)
}

func TestPublishFromContentForkSource(t *testing.T) {
	f := newFixture(t)
	cfg := f.config(t, "Intro", BehaviourUpdate, map[string]string{
		model.PropConfigSource: f.book.ContentRef("Intro", "v2").String(),
	})

	res := publish(t, New(f.store), cfg)
	assert.Positive(t, res.Published)
	assert.Zero(t, res.Failed)
}

func TestPublishCancelLeavesUsedDestinationUntouched(t *testing.T) {
	f := newFixture(t)
	unrelated := model.NewDocument(model.MustDocumentRef("Pub.Guide.Unrelated.WebHome"))
	require.NoError(t, f.store.Save(t.Context(), unrelated, ""))
	cfg := f.config(t, "Guide", BehaviourCancel, nil)
	before := f.store.Len()

	res := publish(t, New(f.store), cfg)
	assert.True(t, res.Cancelled)
	assert.Zero(t, res.Published)
	assert.Equal(t, before, f.store.Len())
	assert.False(t, f.exists(t, "Pub.Guide.Intro.WebHome"))
	assert.False(t, f.doc(t, "Books.Guide.WebHome").HasObject(model.ClassPublication))
}

func TestPublishCancelAcceptsHomeAndPreferences(t *testing.T) {
	f := newFixture(t)
	for _, ref := range []string{"Pub.Guide.WebHome", "Pub.Guide.WebPreferences"} {
		require.NoError(t, f.store.Save(t.Context(), model.NewDocument(model.MustDocumentRef(ref)), ""))
	}
	res := publish(t, New(f.store), f.config(t, "Guide", BehaviourCancel, nil))
	assert.False(t, res.Cancelled)
	assert.Equal(t, 5, res.Published)
}

func TestPublishUpdateAndRepublishDeletedPage(t *testing.T) {
	f := newFixture(t)
	p := New(f.store)
	update := f.config(t, "Update", BehaviourUpdate, nil)

	publish(t, p, update)
	require.True(t, f.exists(t, "Pub.Guide.Old.WebHome"))

	f.book.Modify(f.book.ContentRef("Old", "v1"), func(d *model.Document) { d.AddObject(model.ClassDeletedContent) })

	res := publish(t, p, update)
	assert.Equal(t, 1, res.Removed)
	assert.Equal(t, 2, res.Skipped, "ProOnly and Old")
	assert.Equal(t, 4, res.Unchanged, "nothing else changed since the first run")
	assert.Zero(t, res.Published)
	assert.False(t, f.exists(t, "Pub.Guide.Old.WebHome"))

	// Republishing clears the destination first, so the deleted page is never recreated.
	stray := model.NewDocument(model.MustDocumentRef("Pub.Guide.Stray.WebHome"))
	require.NoError(t, f.store.Save(t.Context(), stray, ""))
	res = publish(t, p, f.config(t, "Republish", BehaviourRepublish, nil))
	assert.Positive(t, res.Cleared)
	assert.Equal(t, 4, res.Published)
	assert.Zero(t, res.Removed)
	assert.False(t, f.exists(t, "Pub.Guide.Old.WebHome"))
	assert.False(t, f.exists(t, "Pub.Guide.Stray.WebHome"))
	assert.True(t, f.exists(t, "Pub.Guide.WebHome"), "metadata is written again")
}

func TestPublishVariantOnlyComplete(t *testing.T) {
	f := newFixture(t)
	cfg := f.config(t, "Pro", BehaviourCancel, map[string]string{
		model.PropConfigVariant:             f.book.VariantRef("Pro").String(),
		model.PropConfigPublishOnlyComplete: "1",
		model.PropConfigTitle:               "Guide for Pro",
	})

	res := publish(t, New(f.store), cfg)
	assert.Equal(t, 3, res.Published, "Intro, Setup and ProOnly are complete")
	assert.Equal(t, 3, res.Skipped, "Draft, Old and Notes have no complete status")
	assert.True(t, f.exists(t, "Pub.Guide.ProOnly.WebHome"))
	assert.False(t, f.exists(t, "Pub.Guide.Draft.WebHome"))

	master := f.doc(t, "Books.Guide.WebHome").Object(model.ClassPublication)
	assert.Equal(t, "v2-Pro", master.String(model.PropPublicationID))
	top := f.doc(t, "Pub.Guide.WebHome")
	assert.Equal(t, "Guide for Pro", top.Title)
	assert.Equal(t, "Pro", top.Object(model.ClassPublishedCollection).String(model.PropPublishedVariantName))
}

func TestPublishLanguageMergesTranslations(t *testing.T) {
	f := newFixture(t)
	f.book.Page("World").Content("World", "v2",
		`{{contentTranslation language="en" status="translated"}}Hello{{/contentTranslation}}`+
			`{{contentTranslation language="fr" status="translated"}}Bonjour{{/contentTranslation}}`)
	p := New(f.store)

	res := publish(t, p, f.config(t, "English", BehaviourCancel, map[string]string{model.PropConfigLanguage: "en"}))
	assert.Equal(t, 1, res.Published, "only World has an English translation")
	en := `{{contentTranslation language="en" status="translated"}}Hello{{/contentTranslation}}`
	assert.Equal(t, en, f.doc(t, "Pub.Guide.World.WebHome").Content)

	res = publish(t, p, f.config(t, "French", BehaviourUpdate, map[string]string{model.PropConfigLanguage: "fr"}))
	assert.Equal(t, 1, res.Published)
	fr := `{{contentTranslation language="fr" status="translated"}}Bonjour{{/contentTranslation}}`
	assert.Equal(t, en+"\n"+fr, f.doc(t, "Pub.Guide.World.WebHome").Content)
	langs := f.doc(t, "Pub.Guide.WebHome").Object(model.ClassPublishedCollection).List(model.PropPublishedLanguages)
	assert.Equal(t, []string{"en", "fr"}, langs)

	res = publish(t, p, f.config(t, "French", BehaviourUpdate, map[string]string{model.PropConfigLanguage: "fr"}))
	assert.Zero(t, res.Published)
	assert.Equal(t, 1, res.Unchanged)
}

func TestPublishCopiesPageOrder(t *testing.T) {
	f := newFixture(t)
	prefs := model.NewDocument(f.book.Space().Doc(model.WebPreferences))
	prefs.AddObject(model.ClassPinnedChildPages).SetList(model.PropPinnedChildPages, []string{"Setup/", "ProOnly/", "Intro/"})
	require.NoError(t, f.store.Save(t.Context(), prefs, ""))

	res := publish(t, New(f.store), f.config(t, "Ordered", BehaviourCancel, map[string]string{
		model.PropConfigPublishPageOrder: "1",
	}))
	assert.Zero(t, res.PageOrderErrors)

	published := f.doc(t, "Pub.Guide.WebPreferences")
	assert.True(t, published.Hidden)
	assert.True(t, published.HasObject(model.ClassPreferences))
	assert.Equal(t, []string{"Setup/", "Intro/"}, published.Object(model.ClassPinnedChildPages).List(model.PropPinnedChildPages))
}

// failingStore refuses to save one document.
type failingStore struct {
	*repository.MemoryStore
	refuse string
}

func (s *failingStore) Save(ctx context.Context, doc *model.Document, comment string) error {
	if doc.Ref.String() == s.refuse {
		return stderrors.New("disk full")
	}
	return s.MemoryStore.Save(ctx, doc, comment)
}

func TestPublishIsolatesPageWriteFailures(t *testing.T) {
	f := newFixture(t)
	store := &failingStore{MemoryStore: f.store, refuse: "Pub.Guide.Intro.WebHome"}
	evts := events.NewMemoryPublisher()

	res, err := New(store, WithEvents(evts)).Publish(t.Context(), Request{Configuration: f.config(t, "Guide", BehaviourCancel, nil)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 4, res.Published)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "Pub.Guide.Intro.WebHome", res.Failures[0].Page.String())
	assert.Contains(t, res.Failures[0].Error, "disk full")
	assert.Len(t, evts.OfType(events.PageFailed), 1)
	assert.True(t, f.exists(t, "Pub.Guide.Setup.WebHome"))
}

func TestPublishConfigurationErrorsWriteNothing(t *testing.T) {
	f := newFixture(t)
	before := f.store.Len()
	cfg := testutil.PublicationConfig(t, f.store, "Publications.Broken", map[string]string{
		model.PropConfigSource:           f.book.Ref().String(),
		model.PropConfigDestinationSpace: "Pub.Guide",
		model.PropConfigPublishBehaviour: "cancel",
	})

	_, err := New(f.store).Publish(t.Context(), Request{Configuration: cfg})
	require.Error(t, err)
	assert.Equal(t, before+1, f.store.Len(), "only the configuration itself was stored")
	assert.False(t, f.exists(t, "Pub.Guide.WebHome"))
}

type recordingArchiver struct{ snaps []Snapshot }

func (a *recordingArchiver) Archive(_ context.Context, snap Snapshot) error {
	a.snaps = append(a.snaps, snap)
	return nil
}

func TestPublishArchivesDestination(t *testing.T) {
	f := newFixture(t)
	arch := &recordingArchiver{}
	cfg := f.config(t, "Guide", BehaviourCancel, map[string]string{model.PropConfigVariant: f.book.VariantRef("Pro").String()})

	publish(t, New(f.store, WithArchiver(arch)), cfg)
	require.Len(t, arch.snaps, 1)
	assert.Equal(t, "Pub.Guide", arch.snaps[0].Destination.String())
	assert.Equal(t, "v2", arch.snaps[0].VersionName)
	assert.Equal(t, "Pro", arch.snaps[0].VariantName)
	assert.Equal(t, "alice", arch.snaps[0].User)
}
