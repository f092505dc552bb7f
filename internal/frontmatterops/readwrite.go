package frontmatterops

import (
	"fmt"

	"github.com/inful/mdfp"

	"git.home.luguber.info/inful/bookversions/internal/frontmatter"
	"git.home.luguber.info/inful/bookversions/internal/model"
)

// Encode renders doc as a page file. The header carries the reference and the
// fingerprint in addition to Fields.
func Encode(doc *model.Document) ([]byte, error) {
	fingerprint, err := ComputeFingerprint(doc)
	if err != nil {
		return nil, err
	}
	fields := Fields(doc)
	fields[KeyReference] = doc.Ref.String()
	fields[mdfp.FingerprintField] = fingerprint

	style := frontmatter.Style{Newline: "\n"}
	header, err := frontmatter.SerializeYAML(fields, style)
	if err != nil {
		return nil, err
	}
	return frontmatter.Join(header, []byte(doc.Content), style), nil
}

// Decode reads a page file written by Encode. Attachment data is not part of page
// files, so the decoded document has no attachments.
func Decode(data []byte) (*model.Document, error) {
	header, body, had, _, err := frontmatter.Split(data)
	if err != nil {
		return nil, err
	}
	if !had {
		return nil, fmt.Errorf("page file has no front matter")
	}
	fields, err := frontmatter.ParseYAML(header)
	if err != nil {
		return nil, err
	}

	raw, _ := fields[KeyReference].(string)
	ref, err := model.ParseDocumentRef(raw, model.DocumentRef{})
	if err != nil {
		return nil, fmt.Errorf("page file reference: %w", err)
	}
	doc := model.NewDocument(ref)
	doc.Content = string(body)
	doc.Title, _ = fields[KeyTitle].(string)
	doc.Syntax, _ = fields[KeySyntax].(string)
	doc.Hidden, _ = fields[KeyHidden].(bool)
	doc.Fingerprint, _ = fields[mdfp.FingerprintField].(string)

	records, _ := fields[KeyRecords].([]any)
	for i, r := range records {
		rec, ok := r.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("record %d: unexpected %T", i, r)
		}
		class, _ := rec["class"].(string)
		if class == "" {
			return nil, fmt.Errorf("record %d: missing class", i)
		}
		obj := doc.AddObject(class)
		props, _ := rec["props"].(map[string]any)
		for k, v := range props {
			obj.Set(k, fmt.Sprint(v))
		}
	}
	return doc, nil
}
