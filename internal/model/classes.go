package model

// Record classes attached to documents.
const (
	ClassBook                     = "BookVersions.Code.BookClass"
	ClassLibrary                  = "BookVersions.Code.LibraryClass"
	ClassVersion                  = "BookVersions.Code.VersionClass"
	ClassVariant                  = "BookVersions.Code.VariantClass"
	ClassVariantsList             = "BookVersions.Code.VariantsListClass"
	ClassBookPage                 = "BookVersions.Code.BookPageClass"
	ClassVersionedContent         = "BookVersions.Code.BookVersionedContentClass"
	ClassPageStatus               = "BookVersions.Code.PageStatusClass"
	ClassLibraryReference         = "BookVersions.Code.LibraryReferenceClass"
	ClassMultilingual             = "BookVersions.Code.MultilingualClass"
	ClassDeletedContent           = "BookVersions.Code.DeletedContentClass"
	ClassPublicationConfiguration = "BookVersions.Code.PublicationConfigurationClass"
	ClassPageTranslation          = "BookVersions.Code.PageTranslationClass"
	ClassPublication              = "BookVersions.Code.PublicationClass"
	ClassPublishedCollection      = "BookVersions.Code.PublishedBookClass"

	ClassComments         = "XWiki.XWikiComments"
	ClassPinnedChildPages = "XWiki.PinnedChildPagesClass"
	ClassPreferences      = "XWiki.XWikiPreferences"
)

// Record properties.
const (
	PropPrecedingVersion           = "precedingVersionReference"
	PropExcludePagesOutsideVariant = "excludePagesOutsideVariant"
	PropVariantsList               = "variantsList"
	PropUnversioned                = "unversioned"
	PropStatus                     = "status"
	PropLibrary                    = "libraryReference"
	PropLibraryVersion             = "libraryVersionReference"
	PropSupportedLanguages         = "supportedLanguages"
	PropPinnedChildPages           = "pinnedChildPages"

	PropPublicationID             = "id"
	PropPublicationSource         = "source"
	PropPublicationPublishedSpace = "publishedSpace"

	PropPublishedMasterName      = "masterName"
	PropPublishedBookVersionName = "bookVersionName"
	PropPublishedVariantName     = "variantName"
	PropPublishedLanguages       = "languages"

	PropConfigSource              = "source"
	PropConfigDestinationSpace    = "destinationSpace"
	PropConfigVersion             = "version"
	PropConfigVariant             = "variant"
	PropConfigLanguage            = "language"
	PropConfigPublishOnlyComplete = "publishOnlyComplete"
	PropConfigPublishPageOrder    = "publishPageOrder"
	PropConfigPublishBehaviour    = "publishBehaviour"
	PropConfigTitle               = "title"

	PropTranslationLanguage  = "language"
	PropTranslationTitle     = "title"
	PropTranslationStatus    = "status"
	PropTranslationIsDefault = "isDefault"
)

// Well known space names inside a collection.
const (
	SpaceVersions  = "Versions"
	SpaceVariants  = "Variants"
	SpaceLibraries = "Libraries"
	SpaceLanguages = "Languages"
)

// PageStatus is the editorial status of a versioned content fork.
type PageStatus string

const (
	StatusDraft    PageStatus = "draft"
	StatusReview   PageStatus = "review"
	StatusComplete PageStatus = "complete"
)

// Valid reports whether s is a known status.
func (s PageStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusReview, StatusComplete:
		return true
	}
	return false
}

// ExcludedFromPublication lists the bookkeeping records stripped from published copies.
var ExcludedFromPublication = []string{
	ClassBook,
	ClassLibrary,
	ClassVersionedContent,
	ClassPageStatus,
	ClassBookPage,
	ClassDeletedContent,
	ClassVariantsList,
	ClassPublication,
	ClassComments,
}
