// Package frontmatterops converts documents to and from page files (YAML front matter
// followed by the content) and fingerprints them.
package frontmatterops

import (
	"strings"

	"github.com/inful/mdfp"

	"git.home.luguber.info/inful/bookversions/internal/frontmatter"
	"git.home.luguber.info/inful/bookversions/internal/model"
)

// Front matter keys.
const (
	KeyReference   = "reference"
	KeyTitle       = "title"
	KeySyntax      = "syntax"
	KeyHidden      = "hidden"
	KeyRecords     = "records"
	KeyAttachments = "attachments"
)

// Fields returns the front matter describing doc: title, syntax, visibility, records
// and attachment names. Authoring metadata and the fingerprint are left out.
func Fields(doc *model.Document) map[string]any {
	fields := map[string]any{
		KeyTitle:  doc.Title,
		KeySyntax: doc.Syntax,
		KeyHidden: doc.Hidden,
	}
	if len(doc.Objects) > 0 {
		records := make([]any, 0, len(doc.Objects))
		for _, o := range doc.Objects {
			rec := map[string]any{"class": o.Class}
			if len(o.Props) > 0 {
				rec["props"] = o.Props
			}
			records = append(records, rec)
		}
		fields[KeyRecords] = records
	}
	if len(doc.Attachments) > 0 {
		names := make([]string, len(doc.Attachments))
		for i, a := range doc.Attachments {
			names[i] = a.Name + "#" + mdfp.CalculateFingerprintFromParts(a.MediaType, a.Data)
		}
		fields[KeyAttachments] = names
	}
	return fields
}

// ComputeFingerprint hashes doc's front matter fields together with its content.
// Two documents that would publish identically have the same fingerprint.
func ComputeFingerprint(doc *model.Document) (string, error) {
	serialized, err := frontmatter.SerializeYAML(Fields(doc), frontmatter.Style{Newline: "\n"})
	if err != nil {
		return "", err
	}
	return mdfp.CalculateFingerprintFromParts(trimSingleTrailingNewline(string(serialized)), doc.Content), nil
}

// UpsertFingerprint stores doc's current fingerprint on it and reports whether it
// differs from the previously stored one.
func UpsertFingerprint(doc *model.Document) (fingerprint string, changed bool, err error) {
	fingerprint, err = ComputeFingerprint(doc)
	if err != nil {
		return "", false, err
	}
	changed = strings.TrimSpace(doc.Fingerprint) != fingerprint
	doc.Fingerprint = fingerprint
	return fingerprint, changed, nil
}

func trimSingleTrailingNewline(s string) string {
	if before, ok := strings.CutSuffix(s, "\r\n"); ok {
		return before
	}
	if before, ok := strings.CutSuffix(s, "\n"); ok {
		return before
	}
	return s
}
