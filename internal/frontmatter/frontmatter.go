// Package frontmatter splits and joins the YAML header of exported page files.
package frontmatter

import (
	"bytes"
	"errors"

	"gopkg.in/yaml.v3"
)

const delimiter = "---"

// ErrMissingClosingDelimiter is returned when a header is opened but never closed.
var ErrMissingClosingDelimiter = errors.New("front matter start delimiter found but closing delimiter is missing")

// Style records the newline convention of a file so rewrites keep it.
type Style struct {
	Newline string
}

func (s Style) newline() string {
	if s.Newline == "" {
		return "\n"
	}
	return s.Newline
}

// Split separates the YAML header from the body. Without a header, had is false and
// body is the whole input.
func Split(content []byte) (header, body []byte, had bool, style Style, err error) {
	style = detectStyle(content)
	nl := style.newline()

	open := []byte(delimiter + nl)
	if !bytes.HasPrefix(content, open) {
		return nil, content, false, style, nil
	}
	rest := content[len(open):]
	if bytes.HasPrefix(rest, open) {
		return []byte{}, rest[len(open):], true, style, nil
	}

	closing := []byte(nl + delimiter + nl)
	idx := bytes.Index(rest, closing)
	if idx < 0 {
		return nil, nil, false, style, ErrMissingClosingDelimiter
	}
	return rest[:idx+len(nl)], rest[idx+len(closing):], true, style, nil
}

// Join writes header between delimiters followed by body.
func Join(header, body []byte, style Style) []byte {
	nl := style.newline()
	out := make([]byte, 0, len(header)+len(body)+2*(len(delimiter)+len(nl)))
	out = append(out, delimiter+nl...)
	out = append(out, header...)
	out = append(out, delimiter+nl...)
	return append(out, body...)
}

// ParseYAML decodes a header into a map. An empty header yields an empty map.
func ParseYAML(header []byte) (map[string]any, error) {
	fields := map[string]any{}
	if len(header) == 0 {
		return fields, nil
	}
	if err := yaml.Unmarshal(header, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

func detectStyle(content []byte) Style {
	if i := bytes.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		return Style{Newline: "\r\n"}
	}
	return Style{Newline: "\n"}
}
