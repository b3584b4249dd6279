// Package optional provides a JSON field wrapper that distinguishes an absent
// field from an explicit null, used by partial update requests.
package optional

import (
	"bytes"
	"encoding/json"
)

type Value[T any] struct {
	Set   bool
	Null  bool
	Value T
}

func Of[T any](v T) Value[T] {
	return Value[T]{Set: true, Value: v}
}

func (v *Value[T]) UnmarshalJSON(data []byte) error {
	v.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		v.Null = true
		var zero T
		v.Value = zero
		return nil
	}
	v.Null = false
	return json.Unmarshal(data, &v.Value)
}

func (v Value[T]) MarshalJSON() ([]byte, error) {
	if !v.Set || v.Null {
		return []byte("null"), nil
	}
	return json.Marshal(v.Value)
}

// Present reports whether the field carries a non-null value.
func (v Value[T]) Present() bool {
	return v.Set && !v.Null
}

// Apply overwrites dst only when a non-null value was provided.
func (v Value[T]) Apply(dst *T) {
	if v.Present() {
		*dst = v.Value
	}
}

// ApplyNullable handles pointer columns: a value sets the pointer and an
// explicit null clears it.
func (v Value[T]) ApplyNullable(dst **T) {
	if !v.Set {
		return
	}
	if v.Null {
		*dst = nil
		return
	}
	val := v.Value
	*dst = &val
}
