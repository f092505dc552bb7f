package repository

import (
	"fmt"
	"regexp"
	"strings"

	"git.home.luguber.info/inful/bookversions/internal/model"
)

// Filter selects documents by glob patterns over their serialized reference.
// '*' matches within one name, '**' matches across names.
type Filter struct {
	include []*regexp.Regexp
	exclude []*regexp.Regexp
}

// NewFilter builds a Filter. An empty include list means include all (unless excluded).
func NewFilter(includeGlobs, excludeGlobs []string) (*Filter, error) {
	compile := func(globs []string) ([]*regexp.Regexp, error) {
		out := make([]*regexp.Regexp, 0, len(globs))
		for _, g := range globs {
			if strings.TrimSpace(g) == "" {
				continue
			}
			r, err := regexp.Compile(globToRegex(g))
			if err != nil {
				return nil, fmt.Errorf("compile glob %s: %w", g, err)
			}
			out = append(out, r)
		}
		return out, nil
	}
	incs, err := compile(includeGlobs)
	if err != nil {
		return nil, err
	}
	excs, err := compile(excludeGlobs)
	if err != nil {
		return nil, err
	}
	return &Filter{include: incs, exclude: excs}, nil
}

// Include reports whether ref passes the filter, with a reason when it does not.
func (f *Filter) Include(ref model.DocumentRef) (bool, string) {
	if f == nil {
		return true, ""
	}
	name := ref.String()
	for _, rx := range f.exclude {
		if rx.MatchString(name) {
			return false, "excluded_by_pattern"
		}
	}
	if len(f.include) == 0 {
		return true, ""
	}
	for _, rx := range f.include {
		if rx.MatchString(name) {
			return true, ""
		}
	}
	return false, "not_in_includes"
}

// globToRegex converts a glob over dotted references to an anchored regex.
func globToRegex(glob string) string {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(glob); i++ {
		c := glob[i]
		switch c {
		case '*':
			if i+1 < len(glob) && glob[i+1] == '*' {
				b.WriteString(".*")
				i++
				continue
			}
			b.WriteString(`[^.]*`)
		case '?':
			b.WriteString(`[^.]`)
		case '.', '+', '(', ')', '|', '^', '$', '{', '}', '[', ']', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteString("$")
	return b.String()
}
