package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	doc := NewDocument(MustDocumentRef("Book.Page.WebHome"))
	assert.Equal(t, Kind(0), KindOf(doc))

	doc.AddObject(ClassBookPage)
	k := KindOf(doc)
	assert.True(t, k.Has(KindPage))
	assert.True(t, k.Has(KindVersionedPage))

	doc.Object(ClassBookPage).SetBool(PropUnversioned, true)
	k = KindOf(doc)
	assert.True(t, k.Has(KindPage))
	assert.False(t, k.Has(KindVersionedPage))

	doc.AddObject(ClassDeletedContent)
	assert.True(t, KindOf(doc).Has(KindMarkedDeleted))
	assert.Equal(t, "page|deleted", KindOf(doc).String())

	assert.True(t, KindOf(&Document{Objects: []Object{{Class: ClassLibrary}}}).IsCollection())
	assert.Equal(t, Kind(0), KindOf(nil))
}

func TestObjectAccessors(t *testing.T) {
	doc := NewDocument(MustDocumentRef("Book.Page.WebHome"))
	obj := doc.AddObject(ClassVariantsList)
	obj.SetList(PropVariantsList, []string{"Book.Variants.A", "Book.Variants.B"})
	assert.Equal(t, []string{"Book.Variants.A", "Book.Variants.B"}, doc.Object(ClassVariantsList).List(PropVariantsList))

	obj = doc.AddObject(ClassVariant)
	obj.Set(PropExcludePagesOutsideVariant, "true")
	assert.True(t, doc.Object(ClassVariant).Bool(PropExcludePagesOutsideVariant))

	var missing *Object
	assert.Equal(t, "", missing.String("x"))
	assert.Nil(t, missing.List("x"))
}

func TestCloneIsDeep(t *testing.T) {
	doc := NewDocument(MustDocumentRef("Book.Page.WebHome"))
	doc.AddObject(ClassPageStatus).Set(PropStatus, "draft")
	doc.Attachments = []Attachment{{Name: "a.txt", Data: "x"}}

	c := doc.Clone()
	c.Object(ClassPageStatus).Set(PropStatus, "complete")
	c.Attachments[0].Data = "y"
	c.Ref.Space[0] = "Other"

	assert.Equal(t, "draft", doc.Object(ClassPageStatus).String(PropStatus))
	assert.Equal(t, "x", doc.Attachments[0].Data)
	assert.Equal(t, "Book", doc.Ref.Space[0])
}

func TestRemoveObjects(t *testing.T) {
	doc := NewDocument(MustDocumentRef("Book.Page.WebHome"))
	doc.AddObject(ClassBookPage)
	doc.AddObject(ClassPageStatus)
	doc.AddObject(ClassComments)
	doc.AddObject(ClassComments)
	doc.AddObject(ClassPinnedChildPages)

	removed := doc.RemoveObjects(ExcludedFromPublication...)
	require.Equal(t, 4, removed)
	assert.Equal(t, []string{ClassPinnedChildPages}, doc.Classes())
}
