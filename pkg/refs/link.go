package refs

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Link is a typed reference to another entity. Stored documents carry only
// the id; a materialized document carries the whole entity in Value.
type Link[T any] struct {
	ID    string
	Value *T
}

// To returns an unresolved link to id.
func To[T any](id string) Link[T] {
	return Link[T]{ID: id}
}

// Of returns a resolved link.
func Of[T any](id string, v *T) Link[T] {
	return Link[T]{ID: id, Value: v}
}

func (l Link[T]) Resolved() bool {
	return l.Value != nil
}

func (l Link[T]) IsZero() bool {
	return l.ID == "" && l.Value == nil
}

func (l Link[T]) MarshalJSON() ([]byte, error) {
	if l.Value != nil {
		return json.Marshal(l.Value)
	}
	if l.ID == "" {
		return []byte("null"), nil
	}
	return json.Marshal(l.ID)
}

func (l *Link[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*l = Link[T]{}
		return nil
	case b[0] == '"':
		var id string
		if err := json.Unmarshal(b, &id); err != nil {
			return err
		}
		*l = Link[T]{ID: id}
		return nil
	case b[0] == '{':
		var head struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(b, &head); err != nil {
			return err
		}
		v := new(T)
		if err := json.Unmarshal(b, v); err != nil {
			return err
		}
		*l = Link[T]{ID: head.ID, Value: v}
		return nil
	default:
		return fmt.Errorf("refs: cannot decode link from %s", string(b))
	}
}
