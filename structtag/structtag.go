// Package structtag builds a generic sync tag entry for arbitrary Go
// structs: a value folds to a map[string]interface{} payload keyed by each
// field's "tson" struct tag (falling back to the field name; "mapstructure"
// tags are not consulted), and unfolds back into a fresh struct of the same type. Grounded on
// loader.serialization.go's toMap/fromMap pair, generalized from one
// hand-written struct to any struct via reflection-driven mapstructure
// decoding in both directions. Exported for use by any Go program that
// embeds a tson.Session and wants its own struct types to round-trip as
// tagged values instead of as plain maps; cmd/cmd/encode.go and decode.go
// wire it in behind the --envelope flag as a worked example.
package structtag

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/copystructure"
	"github.com/mitchellh/mapstructure"

	"github.com/streamson-io/tson"
)

// NewEntry returns a sync Entry for key that matches values assignable to
// sample's type (sample is typically a zero value, e.g. MyStruct{}). Folding
// produces a defensive copy of the struct's fields as a map; unfolding
// produces a defensive copy of the decoded struct, so neither side can
// observe later mutation of the other's value (grounded on builder.go's use
// of copystructure for the same reason, one layer up, on whole pipelines).
func NewEntry(key string, sample interface{}) *tson.Entry {
	typ := reflect.TypeOf(sample)
	if typ != nil && typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}

	return &tson.Entry{
		Key:  key,
		Kind: tson.KindSync,
		Test: func(value interface{}) bool {
			vt := reflect.TypeOf(value)
			if vt == nil {
				return false
			}
			if vt.Kind() == reflect.Ptr {
				vt = vt.Elem()
			}
			return vt == typ
		},
		Sync: &tson.SyncFuncs{
			Serialize:   func(value interface{}) (interface{}, error) { return fold(value) },
			Deserialize: func(payload interface{}) (interface{}, error) { return unfold(payload, typ) },
		},
	}
}

// fold decodes a struct value into a map[string]interface{} keyed by "tson"
// tags (or field names), then defensively copies the result so later
// mutation of value's fields cannot leak into an already-emitted payload.
func fold(value interface{}) (interface{}, error) {
	m := map[string]interface{}{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "tson",
		Result:  &m,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(value); err != nil {
		return nil, fmt.Errorf("structtag: folding %T: %w", value, err)
	}

	copied, err := copystructure.Copy(m)
	if err != nil {
		return nil, fmt.Errorf("structtag: copying folded %T: %w", value, err)
	}
	return copied, nil
}

// unfold decodes payload (expected to be a map[string]interface{}, as
// produced by fold on the other side of the wire) into a fresh value of typ,
// honoring the same "tson" tags, then returns a defensive copy.
func unfold(payload interface{}, typ reflect.Type) (interface{}, error) {
	m, ok := payload.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("structtag: expected object payload for %s, got %T", typ, payload)
	}

	out := reflect.New(typ)
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "tson",
		Result:           out.Interface(),
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(m); err != nil {
		return nil, fmt.Errorf("structtag: unfolding %s: %w", typ, err)
	}

	copied, err := copystructure.Copy(out.Elem().Interface())
	if err != nil {
		return nil, fmt.Errorf("structtag: copying unfolded %s: %w", typ, err)
	}
	return copied, nil
}
