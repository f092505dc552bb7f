package publication

import (
	"context"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/bookversions/internal/errors"
	"git.home.luguber.info/inful/bookversions/internal/library"
	"git.home.luguber.info/inful/bookversions/internal/model"
)

// Preview actions.
const (
	ActionStart             = "StartPublicationJob"
	ActionCancelNotEmpty    = "CancelPublicationSpaceNotEmpty"
	ActionRepublishNotEmpty = "RepublishSpaceNotEmpty"
	ActionLibraryNoVersion  = "LibraryNoVersionConfigured"
	ActionLibraryNotPub     = "LibraryNotPublished"
	ActionLibraryOK         = "LibraryPublishedOK"
	ActionStartPage         = "StartPagePublication"
	ActionCopyPage          = "CopyPage"
	ActionSkipPage          = "SkipPage"
	ActionEndPage           = "EndPagePublication"
)

// Preview messages.
const (
	MessageConfigurationInvalid = "ConfigurationInvalid"
	MessageSourceUnavailable    = "SourceUnavailable"
)

// Field is one key/value pair of a preview line.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Line is one step of a preview: either an action with its fields, or a message about
// a variable.
type Line struct {
	Action   string  `json:"action,omitempty"`
	Message  string  `json:"message,omitempty"`
	Variable string  `json:"variable,omitempty"`
	Fields   []Field `json:"fields,omitempty"`
}

func action(name string, kv ...string) Line {
	l := Line{Action: name}
	for i := 0; i+1 < len(kv); i += 2 {
		l.Fields = append(l.Fields, Field{Key: kv[i], Value: kv[i+1]})
	}
	return l
}

// Get returns the value of key.
func (l Line) Get(key string) string {
	for _, f := range l.Fields {
		if f.Key == key {
			return f.Value
		}
	}
	return ""
}

func (l Line) String() string {
	var b strings.Builder
	if l.Action != "" {
		b.WriteString(l.Action)
	} else {
		b.WriteString(l.Message)
		if l.Variable != "" {
			b.WriteString(" " + l.Variable)
		}
	}
	for _, f := range l.Fields {
		b.WriteString(" " + f.Key + "=" + strconv.Quote(f.Value))
	}
	return b.String()
}

// Preview describes what Publish would do for configRef without writing anything.
func (p *Publisher) Preview(ctx context.Context, configRef model.DocumentRef) ([]Line, error) {
	lines := []Line{action(ActionStart, "configurationReference", configRef.String())}

	preview := p.readOnly()
	cfg, err := LoadConfiguration(ctx, preview.nav, configRef)
	if err != nil {
		if errors.IsCategory(err, errors.CategoryStorage) {
			return lines, err
		}
		return append(lines, problem(MessageConfigurationInvalid, err)), nil
	}

	_, inUse, err := p.destinationInUse(ctx, cfg.Destination)
	if err != nil {
		return lines, err
	}
	switch {
	case inUse && cfg.Behaviour == BehaviourCancel:
		return append(lines, action(ActionCancelNotEmpty, "destinationSpace", cfg.Destination.String())), nil
	case inUse && cfg.Behaviour == BehaviourRepublish:
		lines = append(lines, action(ActionRepublishNotEmpty, "destinationSpace", cfg.Destination.String()))
	}

	r, err := preview.prepare(ctx, cfg)
	if err != nil {
		if errors.IsCategory(err, errors.CategoryStorage) {
			return lines, err
		}
		return append(lines, problem(MessageSourceUnavailable, err)), nil
	}
	lines = append(lines, libraryLines(r.collection, r.libraries)...)

	total := strconv.Itoa(len(r.pages))
	for i, page := range r.pages {
		lines = append(lines, action(ActionStartPage,
			"pageIndex", strconv.Itoa(i+1),
			"totalPages", total,
			"pageStringReference", page.String()))
		plan, err := preview.planPage(ctx, r, page)
		if err != nil {
			return lines, err
		}
		if plan.included() {
			lines = append(lines, action(ActionCopyPage,
				"copyFrom", plan.Content.Ref.String(),
				"copyTo", plan.Published.String()))
		} else {
			skip := action(ActionSkipPage,
				"pageStringReference", page.String(),
				"reason", string(plan.Decision.Reason),
				"message", plan.Decision.Message())
			if plan.Decision.Deleted && cfg.Behaviour == BehaviourUpdate {
				skip.Fields = append(skip.Fields, Field{Key: "remove", Value: plan.Published.String()})
			}
			lines = append(lines, skip)
		}
		lines = append(lines, action(ActionEndPage, "pageStringReference", page.String()))
	}
	return lines, nil
}

// problem reports err as a message line whose variable is the offending field, when known.
func problem(msg string, err error) Line {
	l := Line{Message: msg, Fields: []Field{{Key: "error", Value: err.Error()}}}
	if e, ok := errors.As(err); ok {
		for _, key := range []string{"field", "reference"} {
			if v, ok := e.Context[key].(string); ok {
				l.Variable = v
				break
			}
		}
	}
	return l
}

func libraryLines(book model.DocumentRef, table *library.Table) []Line {
	if table == nil {
		return nil
	}
	var lines []Line
	for _, name := range table.Versions {
		for _, b := range table.ByVersion[name] {
			switch b.Status {
			case library.StatusNotConfigured:
				lines = append(lines, action(ActionLibraryNoVersion,
					"libraryReference", b.Library.String(),
					"bookReference", book.String(),
					"bookVersion", name))
			case library.StatusNotPublished:
				lines = append(lines, action(ActionLibraryNotPub,
					"libraryReference", b.Library.String(),
					"bookReference", book.String(),
					"libraryVersion", b.LibraryVersion.String()))
			case library.StatusPublished:
				lines = append(lines, action(ActionLibraryOK,
					"libraryReference", b.Library.String(),
					"bookReference", book.String(),
					"libraryVersion", b.LibraryVersion.String(),
					"publishedSpace", b.PublishedSpace.String()))
			}
		}
	}
	return lines
}
