// Package publication copies one version of a book or library into a destination
// space, rewriting references so that the copy is self-contained.
package publication

import (
	"context"
	stderrors "errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"git.home.luguber.info/inful/bookversions/internal/collection"
	"git.home.luguber.info/inful/bookversions/internal/errors"
	"git.home.luguber.info/inful/bookversions/internal/model"
	"git.home.luguber.info/inful/bookversions/internal/translation"
)

// Behaviour selects what happens when the destination already holds pages.
type Behaviour string

const (
	// BehaviourCancel stops the run without writing when the destination is not empty.
	BehaviourCancel Behaviour = "cancel"
	// BehaviourUpdate overwrites published pages and removes the ones marked deleted.
	BehaviourUpdate Behaviour = "update"
	// BehaviourRepublish clears the destination first.
	BehaviourRepublish Behaviour = "republish"
)

// Configuration is a publish request as stored on a configuration document.
type Configuration struct {
	Ref         model.DocumentRef
	Source      model.DocumentRef
	Destination model.SpaceRef
	Version     model.DocumentRef
	Variant     model.DocumentRef
	// Language is canonical BCP 47, empty for a run that is not language scoped.
	Language     string
	Behaviour    Behaviour
	OnlyComplete bool
	PageOrder    bool
	Title        string
}

// configRecord mirrors the string properties of a configuration record for validation.
type configRecord struct {
	Source      string `prop:"source" validate:"required"`
	Destination string `prop:"destinationSpace" validate:"required"`
	Version     string `prop:"version" validate:"required"`
	Variant     string `prop:"variant"`
	Language    string `prop:"language" validate:"omitempty,bcp47_language_tag"`
	Behaviour   string `prop:"publishBehaviour" validate:"required,oneof=cancel update republish"`
	Title       string `prop:"title" validate:"max=768"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func recordValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			return f.Tag.Get("prop")
		})
	})
	return validate
}

// LoadConfiguration reads and validates the configuration stored on ref. Blank
// required fields are reported as configuration errors naming the property.
func LoadConfiguration(ctx context.Context, nav *collection.Navigator, ref model.DocumentRef) (*Configuration, error) {
	doc, err := nav.Document(ctx, ref)
	if err != nil {
		return nil, errors.StoreUnavailable("read configuration", err)
	}
	if doc == nil {
		return nil, errors.NotFound(ref.String())
	}
	obj := doc.Object(model.ClassPublicationConfiguration)
	if obj == nil {
		return nil, errors.ConfigRequired(model.ClassPublicationConfiguration).WithContext("configuration", ref.String())
	}
	cfg, err := ParseConfiguration(ref, obj)
	if err != nil {
		return nil, err
	}
	// A content fork shares its page's space: publish from the page.
	source, _ := model.ParseDocumentRef(strings.TrimSpace(obj.String(model.PropConfigSource)), ref)
	if !source.IsWebHome() {
		k, err := nav.Kind(ctx, source)
		if err != nil {
			return nil, errors.StoreUnavailable("read source", err)
		}
		if k.Has(model.KindVersionedContent) {
			cfg.Source = collection.PageOf(source)
		}
	}
	return cfg, nil
}

// ParseConfiguration validates a configuration record. References are resolved
// relative to the configuration document; a source that is not a home is taken as a
// page name. LoadConfiguration also recognizes content forks.
func ParseConfiguration(ref model.DocumentRef, obj *model.Object) (*Configuration, error) {
	rec := configRecord{
		Source:      strings.TrimSpace(obj.String(model.PropConfigSource)),
		Destination: strings.TrimSpace(obj.String(model.PropConfigDestinationSpace)),
		Version:     strings.TrimSpace(obj.String(model.PropConfigVersion)),
		Variant:     strings.TrimSpace(obj.String(model.PropConfigVariant)),
		Language:    strings.TrimSpace(obj.String(model.PropConfigLanguage)),
		Behaviour:   strings.ToLower(strings.TrimSpace(obj.String(model.PropConfigPublishBehaviour))),
		Title:       strings.TrimSpace(obj.String(model.PropConfigTitle)),
	}
	if err := recordValidator().Struct(rec); err != nil {
		return nil, validationError(err)
	}

	cfg := &Configuration{
		Ref:          ref,
		Behaviour:    Behaviour(rec.Behaviour),
		OnlyComplete: obj.Bool(model.PropConfigPublishOnlyComplete),
		PageOrder:    obj.Bool(model.PropConfigPublishPageOrder),
		Title:        rec.Title,
	}
	var err error
	if cfg.Source, err = model.ParseDocumentRef(rec.Source, ref); err != nil {
		return nil, errors.ValidationFailed(model.PropConfigSource, err.Error())
	}
	if !cfg.Source.IsWebHome() {
		cfg.Source = cfg.Source.Space.Child(cfg.Source.Name).Home()
	}
	if cfg.Destination, err = model.ParseSpaceRef(rec.Destination); err != nil {
		return nil, errors.ValidationFailed(model.PropConfigDestinationSpace, err.Error())
	}
	if cfg.Version, err = model.ParseDocumentRef(rec.Version, ref); err != nil {
		return nil, errors.ValidationFailed(model.PropConfigVersion, err.Error())
	}
	if rec.Variant != "" {
		if cfg.Variant, err = model.ParseDocumentRef(rec.Variant, ref); err != nil {
			return nil, errors.ValidationFailed(model.PropConfigVariant, err.Error())
		}
	}
	if rec.Language != "" {
		if cfg.Language, err = translation.Canonicalize(rec.Language); err != nil {
			return nil, errors.ValidationFailed(model.PropConfigLanguage, err.Error())
		}
	}
	return cfg, nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errors.InternalError("validate configuration", err)
	}
	fe := fieldErrs[0]
	if fe.Tag() == "required" {
		return errors.ConfigRequired(fe.Field())
	}
	return errors.ValidationFailed(fe.Field(), fe.Tag()+" "+fe.Param())
}

// PublicationID is the key of the Publication record written on the source
// collection: the version name, suffixed with "-<variant>" for a variant run.
func (c *Configuration) PublicationID() string {
	id := collection.VersionName(c.Version)
	if !c.Variant.IsZero() {
		id += "-" + collection.VersionName(c.Variant)
	}
	return id
}

// Record writes c onto obj, the inverse of ParseConfiguration.
func (c *Configuration) Record(obj *model.Object) {
	obj.Set(model.PropConfigSource, c.Source.String())
	obj.Set(model.PropConfigDestinationSpace, c.Destination.String())
	obj.Set(model.PropConfigVersion, c.Version.String())
	if !c.Variant.IsZero() {
		obj.Set(model.PropConfigVariant, c.Variant.String())
	}
	if c.Language != "" {
		obj.Set(model.PropConfigLanguage, c.Language)
	}
	obj.Set(model.PropConfigPublishBehaviour, string(c.Behaviour))
	obj.SetBool(model.PropConfigPublishOnlyComplete, c.OnlyComplete)
	obj.SetBool(model.PropConfigPublishPageOrder, c.PageOrder)
	if c.Title != "" {
		obj.Set(model.PropConfigTitle, c.Title)
	}
}
