// Package refs materializes documents stored as graphs of loosely-coupled
// references. Which fields hold references is declared up front per entity
// kind in a Schema; nothing is discovered at run time.
package refs

import (
	"bytes"
	"encoding/json"
)

// Kind names an entity collection ("orders", "products", ...).
type Kind string

// Document is the stored, JSON-shaped form of an entity.
type Document map[string]any

// Mode says how a field carries references.
type Mode int

const (
	// One is a single reference: the field holds an id.
	One Mode = iota
	// Many is a list of references: the field holds a list of ids.
	Many
	// Embedded is a nested value object with reference fields of its own.
	Embedded
	// EmbeddedList is a list of nested value objects.
	EmbeddedList
)

type Field struct {
	Name   string
	Mode   Mode
	Target Kind    // One, Many
	Fields []Field // Embedded, EmbeddedList
}

func Ref(name string, target Kind) Field {
	return Field{Name: name, Mode: One, Target: target}
}

func RefList(name string, target Kind) Field {
	return Field{Name: name, Mode: Many, Target: target}
}

func Nested(name string, fields ...Field) Field {
	return Field{Name: name, Mode: Embedded, Fields: fields}
}

func NestedList(name string, fields ...Field) Field {
	return Field{Name: name, Mode: EmbeddedList, Fields: fields}
}

// Schema declares the reference fields of every entity kind. Kinds absent
// from the schema have no references.
type Schema map[Kind][]Field

func (s Schema) Fields(kind Kind) []Field {
	return s[kind]
}

// Decode parses raw JSON into a Document, keeping numbers as json.Number so
// that integers and money survive a round trip untouched.
func Decode(raw []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ToDocument converts any JSON-encodable value into a Document.
func ToDocument(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Decode(raw)
}

// FromDocument decodes a Document into dst.
func FromDocument(doc Document, dst any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// Clone returns a deep copy of doc.
func Clone(doc Document) (Document, error) {
	if doc == nil {
		return nil, nil
	}
	return ToDocument(doc)
}
