// Package store persists the service registry as one JSON document. The only
// contract is read-all / write-all of the full document.
package store

import (
	"context"
	"sort"

	jsoniter "github.com/json-iterator/go"

	"github.com/loykin/servctl/internal/service"
)

// Document is the registry: service records keyed by canonical key. Extra
// keeps unknown top-level fields and Invalid keeps service entries that are
// not JSON objects, so a save does not drop either.
type Document struct {
	Services map[string]service.Record
	Invalid  map[string]jsoniter.RawMessage
	Extra    map[string]jsoniter.RawMessage
}

// NewDocument returns an empty registry.
func NewDocument() Document {
	return Document{Services: map[string]service.Record{}}
}

// Keys returns the service keys in sorted order.
func (d Document) Keys() []string {
	keys := make([]string, 0, len(d.Services))
	for k := range d.Services {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// InvalidKeys returns the keys of unusable service entries in sorted order.
func (d Document) InvalidKeys() []string {
	keys := make([]string, 0, len(d.Invalid))
	for k := range d.Invalid {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Drop removes key from both the usable and the invalid entries. It reports
// whether anything was removed.
func (d *Document) Drop(key string) bool {
	_, ok := d.Services[key]
	_, bad := d.Invalid[key]
	delete(d.Services, key)
	delete(d.Invalid, key)
	return ok || bad
}

// Store loads and saves the registry document.
type Store interface {
	Load(ctx context.Context) (Document, error)
	Save(ctx context.Context, doc Document) error
}
