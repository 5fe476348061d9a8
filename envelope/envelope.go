// Package envelope implements the encode/decode/dedup scheme used to ship
// argument tuples and results across a process or wire boundary.
//
// Envelopes are value objects: once built by Encode, the byte content never
// changes. Encoding uses encoding/gob, since the engine must round-trip
// arbitrary caller-supplied Go values rather than values bound to a fixed
// schema.
package envelope

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"reflect"

	"github.com/joeycumines/starmap/taskerr"
)

// Envelope is the serialized byte form of a value, carrying its encoded
// length and the originating value's type name for diagnostics.
type Envelope struct {
	data     []byte
	typeName string
}

// Size returns the byte length of the envelope's contents.
func (e Envelope) Size() int { return len(e.data) }

// TypeName returns the originating value's dynamic type name, for
// diagnostics only.
func (e Envelope) TypeName() string { return e.typeName }

// Bytes returns the encoded byte content. Callers must not mutate the
// returned slice; envelopes are never mutated after creation.
func (e Envelope) Bytes() []byte { return e.data }

// FromBytes reconstructs an Envelope from previously-encoded bytes, e.g.
// after receiving it from a socket. typeName is informational only and may
// be left empty.
func FromBytes(data []byte, typeName string) Envelope {
	return Envelope{data: data, typeName: typeName}
}

// wireForm is the exported shadow of Envelope used only to let gob traverse
// its unexported fields when an Envelope is itself nested inside a larger
// gob-encoded wire message (remotefleet's task and result frames).
type wireForm struct {
	Data     []byte
	TypeName string
}

func (e Envelope) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(wireForm{Data: e.data, TypeName: e.typeName}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *Envelope) GobDecode(b []byte) error {
	var w wireForm
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&w); err != nil {
		return err
	}
	e.data, e.typeName = w.Data, w.TypeName
	return nil
}

// Encode serializes value into an Envelope. It fails with
// *taskerr.NotSerializable when value (or a value nested within it)
// contains a type gob cannot encode; the error message names the
// enclosing type.
func Encode(value any) (Envelope, error) {
	var buf bytes.Buffer
	typeName := fmt.Sprintf("%T", value)
	if err := gob.NewEncoder(&buf).Encode(&value); err != nil {
		return Envelope{}, &taskerr.NotSerializable{TypeName: typeName, Err: err}
	}
	return Envelope{data: buf.Bytes(), typeName: typeName}, nil
}

// Decode reconstructs the original value from an Envelope. It fails with
// *taskerr.Corrupt when the byte string is malformed.
func Decode(env Envelope) (any, error) {
	var out any
	if err := gob.NewDecoder(bytes.NewReader(env.data)).Decode(&out); err != nil {
		return nil, &taskerr.Corrupt{Err: err}
	}
	return out, nil
}

// DecodeInto decodes env into v, which must be a non-nil pointer. Used on
// the receiving side of the remote-fleet wire contract, where the expected
// shape (a task's argument tuple) is known ahead of time rather than `any`.
// It fails with *taskerr.Corrupt when the decoded value is not assignable
// to *v.
func DecodeInto(env Envelope, v any) error {
	out, err := Decode(env)
	if err != nil {
		return err
	}
	dst := reflect.ValueOf(v)
	if dst.Kind() != reflect.Pointer || dst.IsNil() {
		return fmt.Errorf("envelope: DecodeInto requires a non-nil pointer, got %T", v)
	}
	src := reflect.ValueOf(out)
	if !src.IsValid() || !src.Type().AssignableTo(dst.Elem().Type()) {
		return &taskerr.Corrupt{Err: fmt.Errorf("envelope holds %T, cannot decode into %s", out, dst.Elem().Type())}
	}
	dst.Elem().Set(src)
	return nil
}

// EncodeSequence encodes each value in values at most once: two input
// positions whose identity is the same (same pointer, same interface
// holding an identical pointer, or — for non-addressable values — byte-
// identical encodings) share one output Envelope. This exists because
// users frequently reuse one large shared input (e.g. a site grid) across
// every task in a submission; re-encoding it per task would dominate
// submission cost.
//
// Already-encoded inputs (values of type Envelope) pass through unchanged,
// mirroring pickle_sequence's handling of already-Pickled objects.
func EncodeSequence(values []any) ([]Envelope, error) {
	out := make([]Envelope, len(values))
	byIdentity := make(map[uintptr]int, len(values))
	byValue := make(map[string]int, len(values))

	for i, v := range values {
		if env, ok := v.(Envelope); ok {
			out[i] = env
			continue
		}

		if id, ok := identityOf(v); ok {
			if j, seen := byIdentity[id]; seen {
				out[i] = out[j]
				continue
			}
			env, err := Encode(v)
			if err != nil {
				return nil, err
			}
			byIdentity[id] = i
			out[i] = env
			continue
		}

		// Not a reference type we can key by pointer identity (e.g. a
		// plain int, string, or struct passed by value): dedup on the
		// encoded bytes instead, which still collapses exact repeats.
		env, err := Encode(v)
		if err != nil {
			return nil, err
		}
		key := string(env.data)
		if j, seen := byValue[key]; seen {
			out[i] = out[j]
			continue
		}
		byValue[key] = i
		out[i] = env
	}

	return out, nil
}

// Size returns the byte length of env. Exposed as a package function in
// addition to the Envelope.Size method, for symmetry with Encode/Decode.
func Size(env Envelope) int { return env.Size() }

// Sizes is a diagnostic helper: it returns the encoded size of v as a
// whole, plus the encoded size of each of v's direct exported fields, keyed
// by field name, when v is a struct or pointer-to-struct. The remote-fleet
// backend uses the per-field sizes for its "sent" bytes accounting.
func Sizes(v any) (total int, perField map[string]int, err error) {
	env, err := Encode(v)
	if err != nil {
		return 0, nil, err
	}
	total = env.Size()

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return total, nil, nil
	}

	perField = make(map[string]int, rv.NumField())
	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		fv := rv.Field(i).Interface()
		fenv, ferr := Encode(fv)
		if ferr != nil {
			continue // unencodable fields are simply omitted from the diagnostic
		}
		perField[field.Name] = fenv.Size()
	}
	return total, perField, nil
}

// identityOf returns a stable identity key for values that carry pointer
// semantics (non-nil pointers, maps, chans, unsafe pointers, and non-empty
// slices), so EncodeSequence can
// dedup by reference rather than by content. ok is false for value types,
// where content-based dedup (see EncodeSequence) is used instead.
func identityOf(v any) (uintptr, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.UnsafePointer:
		if rv.IsNil() {
			return 0, false
		}
		return rv.Pointer(), true
	case reflect.Slice:
		if rv.IsNil() || rv.Len() == 0 {
			return 0, false
		}
		return rv.Pointer(), true
	default:
		return 0, false
	}
}
