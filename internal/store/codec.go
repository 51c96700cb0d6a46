package store

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/loykin/servctl/internal/errs"
	"github.com/loykin/servctl/internal/service"
)

// codec writes sorted keys without HTML or non-ASCII escaping so hand edits
// stay readable.
var codec = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

const servicesField = "services"

// Decode parses a registry document. A missing or malformed "services" field
// yields an empty registry. Records decode leniently; an entry that is not a
// JSON object is kept aside in Invalid instead of failing the whole document.
func Decode(b []byte) (Document, error) {
	doc := NewDocument()
	var top map[string]jsoniter.RawMessage
	if err := codec.Unmarshal(b, &top); err != nil {
		return doc, errs.New(errs.ConfigurationError, "registry document is not a JSON object: %v", err)
	}

	var raw map[string]jsoniter.RawMessage
	if msg, ok := top[servicesField]; ok {
		if err := codec.Unmarshal(msg, &raw); err != nil {
			raw = nil
		}
		delete(top, servicesField)
	}
	for key, msg := range raw {
		var rec service.Record
		if err := codec.Unmarshal(msg, &rec); err != nil {
			if doc.Invalid == nil {
				doc.Invalid = map[string]jsoniter.RawMessage{}
			}
			doc.Invalid[key] = msg
			continue
		}
		rec.Normalize()
		doc.Services[key] = rec
	}
	if len(top) > 0 {
		doc.Extra = top
	}
	return doc, nil
}

// Encode renders doc as indented JSON with a trailing newline.
func Encode(doc Document) ([]byte, error) {
	out := make(map[string]any, len(doc.Extra)+1)
	for k, v := range doc.Extra {
		out[k] = v
	}
	services := make(map[string]any, len(doc.Services)+len(doc.Invalid))
	for k, v := range doc.Invalid {
		services[k] = v
	}
	for k, v := range doc.Services {
		services[k] = v
	}
	out[servicesField] = services

	b, err := codec.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode registry: %w", err)
	}
	return append(b, '\n'), nil
}

// Pretty renders v the way the registry is written: two-space indent, sorted
// keys and unescaped non-ASCII text.
func Pretty(v any) (string, error) {
	b, err := codec.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Fields flattens v into a generic object so callers can add keys before
// rendering it with Pretty.
func Fields(v any) (map[string]any, error) {
	b, err := codec.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := codec.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
