// Package codec implements the self-describing binary codec from spec.md §4.1:
// a type-directed serializer/deserializer driven by a descriptor.Descriptor
// tree, with a single leading nullability tag byte per value slot and no
// other type information on the wire.
package codec

import (
	"encoding/binary"
	"fmt"
	"io"
	"reflect"
	"unicode/utf8"

	"github.com/marmos91/wirerpc/internal/descriptor"
)

// Encode appends v, shaped as d, to w. v's Go representation must match
// goTypeFor(d): a flat value for primitives, *string for Utf8String, a
// slice for Array, a struct pointer for Record.
func Encode(w io.Writer, d *descriptor.Descriptor, v any) error {
	rv := reflect.ValueOf(v)
	return encodeSlot(w, d, rv, 0)
}

func encodeSlot(w io.Writer, d *descriptor.Descriptor, rv reflect.Value, depth int) error {
	if depth > maxDepth {
		return newErr(ErrDepthExceeded, "encode recursion too deep", nil)
	}

	null := isNull(d, rv)
	if null {
		return writeTag(w, 1)
	}
	if err := writeTag(w, 0); err != nil {
		return err
	}

	switch {
	case d.Kind.IsPrimitive():
		return encodePrimitiveBody(w, d.Kind, derefToConcrete(rv))
	case d.Kind == descriptor.KindUtf8String:
		s := derefToConcrete(rv).String()
		return encodeStringBody(w, s)
	case d.Kind == descriptor.KindArray:
		return encodeArrayBody(w, d, derefToConcrete(rv), depth)
	case d.Kind == descriptor.KindRecord:
		return encodeRecordBody(w, d, derefToConcrete(rv), depth)
	default:
		return fmt.Errorf("codec: cannot encode descriptor kind %s", d.Kind)
	}
}

// isNull reports whether rv represents the null value for d's slot
// representation (nil pointer for Utf8String/Record, nil slice for Array).
func isNull(d *descriptor.Descriptor, rv reflect.Value) bool {
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		return rv.IsNil()
	case reflect.Slice:
		return d.Kind == descriptor.KindArray && rv.IsNil()
	default:
		return false
	}
}

// derefToConcrete follows pointers/interfaces down to the concrete value.
func derefToConcrete(rv reflect.Value) reflect.Value {
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return rv
		}
		rv = rv.Elem()
	}
	return rv
}

func writeTag(w io.Writer, tag byte) error {
	_, err := w.Write([]byte{tag})
	if err != nil {
		return fmt.Errorf("codec: write null tag: %w", err)
	}
	return nil
}

func encodePrimitiveBody(w io.Writer, k descriptor.Kind, rv reflect.Value) error {
	switch k {
	case descriptor.KindBool:
		var b byte
		if rv.Bool() {
			b = 1
		}
		_, err := w.Write([]byte{b})
		return err
	case descriptor.KindI8:
		_, err := w.Write([]byte{byte(rv.Int())})
		return err
	case descriptor.KindU16Char:
		return binary.Write(w, binary.BigEndian, uint16(rv.Uint()))
	case descriptor.KindI16:
		return binary.Write(w, binary.BigEndian, int16(rv.Int()))
	case descriptor.KindI32:
		return binary.Write(w, binary.BigEndian, int32(rv.Int()))
	case descriptor.KindI64:
		return binary.Write(w, binary.BigEndian, int64(rv.Int()))
	case descriptor.KindF32:
		return binary.Write(w, binary.BigEndian, float32(rv.Float()))
	case descriptor.KindF64:
		return binary.Write(w, binary.BigEndian, rv.Float())
	default:
		return fmt.Errorf("codec: not a primitive kind %s", k)
	}
}

func encodeStringBody(w io.Writer, s string) error {
	if !utf8.ValidString(s) {
		return newErr(ErrInvalidText, "string is not valid UTF-8", nil)
	}
	if err := binary.Write(w, binary.BigEndian, int32(len(s))); err != nil {
		return fmt.Errorf("codec: write string length: %w", err)
	}
	_, err := io.WriteString(w, s)
	return err
}

func encodeArrayBody(w io.Writer, d *descriptor.Descriptor, rv reflect.Value, depth int) error {
	n := rv.Len()
	if err := binary.Write(w, binary.BigEndian, int32(n)); err != nil {
		return fmt.Errorf("codec: write array length: %w", err)
	}
	if d.Elem.Kind.IsPrimitive() {
		for i := 0; i < n; i++ {
			if err := encodePrimitiveBody(w, d.Elem.Kind, rv.Index(i)); err != nil {
				return err
			}
		}
		return nil
	}
	for i := 0; i < n; i++ {
		if err := encodeSlot(w, d.Elem, rv.Index(i), depth+1); err != nil {
			return err
		}
	}
	return nil
}

func encodeRecordBody(w io.Writer, d *descriptor.Descriptor, rv reflect.Value, depth int) error {
	for _, f := range d.Fields {
		if f.Immutable {
			continue
		}
		fv := rv.FieldByName(exportedName(f.Name, rv))
		if err := encodeSlot(w, f.Desc, fv, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// exportedName resolves a wire field name back to the exported Go struct
// field name. Describe walks StructField by position, but records are
// addressed here by name, so we search the struct type for a field whose
// `wire` tag matches.
func exportedName(wireName string, rv reflect.Value) string {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag, ok := sf.Tag.Lookup("wire")
		if !ok {
			continue
		}
		name := tag
		if idx := indexComma(tag); idx >= 0 {
			name = tag[:idx]
		}
		if name == "" {
			name = sf.Name
		}
		if name == wireName {
			return sf.Name
		}
	}
	return wireName
}

func indexComma(s string) int {
	for i, c := range s {
		if c == ',' {
			return i
		}
	}
	return -1
}
