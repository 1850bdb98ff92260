// Package descriptor provides the value-descriptor tree that drives
// internal/codec's type-directed encoding, and the reflection-based
// introspection that builds a descriptor from a Go value.
//
// This stands in for the host-collaborator contract in spec.md §6: in the
// original system a build-time code generator hands the codec a
// (descriptor, getter, setter, factory) tuple per type. Here the same
// contract is satisfied by walking the Go type with reflect and a small
// `wire` struct tag, so no generator is needed for a first implementation.
package descriptor

import (
	"fmt"
	"reflect"
	"strings"
)

// Kind identifies a descriptor variant.
type Kind int

const (
	KindBool Kind = iota
	KindI8
	KindU16Char
	KindI16
	KindI32
	KindI64
	KindF32
	KindF64
	KindUtf8String
	KindArray
	KindRecord
	KindVoid
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "Bool"
	case KindI8:
		return "I8"
	case KindU16Char:
		return "U16Char"
	case KindI16:
		return "I16"
	case KindI32:
		return "I32"
	case KindI64:
		return "I64"
	case KindF32:
		return "F32"
	case KindF64:
		return "F64"
	case KindUtf8String:
		return "Utf8String"
	case KindArray:
		return "Array"
	case KindRecord:
		return "Record"
	case KindVoid:
		return "Void"
	default:
		return "Unknown"
	}
}

// IsPrimitive reports whether k is one of the fixed-width primitive kinds.
func (k Kind) IsPrimitive() bool {
	return k >= KindBool && k <= KindF64
}

// PrimitiveSize returns the wire size in bytes of a primitive kind.
// It panics if k is not primitive; callers must check IsPrimitive first.
func (k Kind) PrimitiveSize() int {
	switch k {
	case KindBool, KindI8:
		return 1
	case KindU16Char, KindI16:
		return 2
	case KindI32, KindF32:
		return 4
	case KindI64, KindF64:
		return 8
	default:
		panic(fmt.Sprintf("descriptor: PrimitiveSize called on non-primitive kind %s", k))
	}
}

// Field describes one record field in declared order.
type Field struct {
	Name      string
	Desc      *Descriptor
	Immutable bool
}

// Descriptor is a node of the wire-shape tree described in spec.md §3.
type Descriptor struct {
	Kind Kind

	// Elem is set when Kind == KindArray: the element descriptor.
	Elem *Descriptor

	// Fields is set when Kind == KindRecord: fields in declared order.
	Fields []Field

	// goType is the concrete Go type this descriptor was inferred from,
	// used by the factory to allocate a fresh zero-value instance.
	goType reflect.Type
}

// Void is the distinguished return descriptor that suppresses any reply.
var Void = &Descriptor{Kind: KindVoid}

// New allocates a zero-value instance for a Record descriptor.
// Returns ErrUnconstructibleRecord if goType is unavailable (the
// descriptor wasn't built by Describe).
func (d *Descriptor) New() (reflect.Value, error) {
	if d.Kind != KindRecord {
		return reflect.Value{}, fmt.Errorf("descriptor: New called on non-record kind %s", d.Kind)
	}
	if d.goType == nil {
		return reflect.Value{}, ErrUnconstructibleRecord
	}
	return reflect.New(d.goType), nil
}

// ErrUnconstructibleRecord is returned when a record descriptor carries no
// factory capable of producing a zero-argument instance.
var ErrUnconstructibleRecord = fmt.Errorf("descriptor: no zero-argument constructor for record")

// maxDepth is the hard recursion limit from spec.md §3.
const maxDepth = 20

// ErrDepthExceeded is returned by Describe (and by the codec) when a
// descriptor or value graph recurses past maxDepth.
var ErrDepthExceeded = fmt.Errorf("descriptor: recursion depth exceeds %d", maxDepth)

// Describe infers a Descriptor from a Go value's static type, reading the
// `wire` struct tag on record fields:
//
//	type Point struct {
//	    X int32 `wire:"x"`
//	    Y int32 `wire:"y"`
//	    id string `wire:"id,immutable"`
//	}
//
// Fields with no `wire` tag are skipped (not part of the wire shape).
// A slice describes Array(elem); []int8 describes Array(I8). []byte is not
// supported ([]uint8 has no primitive Kind — use []int8 for byte arrays).
// Pointers describe the pointed-to type (nullable at the value-slot
// level); the top-level kind is unaffected by pointerness.
func Describe(v any) (*Descriptor, error) {
	t := reflect.TypeOf(v)
	if t == nil {
		return nil, fmt.Errorf("descriptor: cannot describe nil")
	}
	return describeType(t, 0)
}

func describeType(t reflect.Type, depth int) (*Descriptor, error) {
	if depth > maxDepth {
		return nil, ErrDepthExceeded
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Bool:
		return &Descriptor{Kind: KindBool}, nil
	case reflect.Int8:
		return &Descriptor{Kind: KindI8}, nil
	case reflect.Uint16:
		return &Descriptor{Kind: KindU16Char}, nil
	case reflect.Int16:
		return &Descriptor{Kind: KindI16}, nil
	case reflect.Int32:
		return &Descriptor{Kind: KindI32}, nil
	case reflect.Int64:
		return &Descriptor{Kind: KindI64}, nil
	case reflect.Float32:
		return &Descriptor{Kind: KindF32}, nil
	case reflect.Float64:
		return &Descriptor{Kind: KindF64}, nil
	case reflect.String:
		return &Descriptor{Kind: KindUtf8String}, nil
	case reflect.Slice, reflect.Array:
		elem, err := describeType(t.Elem(), depth+1)
		if err != nil {
			return nil, err
		}
		return &Descriptor{Kind: KindArray, Elem: elem}, nil
	case reflect.Struct:
		return describeStruct(t, depth)
	default:
		return nil, fmt.Errorf("descriptor: unsupported Go kind %s", t.Kind())
	}
}

func describeStruct(t reflect.Type, depth int) (*Descriptor, error) {
	if depth > maxDepth {
		return nil, ErrDepthExceeded
	}
	fields := make([]Field, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag, ok := sf.Tag.Lookup("wire")
		if !ok || tag == "-" {
			continue
		}
		parts := strings.Split(tag, ",")
		name := parts[0]
		if name == "" {
			name = sf.Name
		}
		immutable := false
		for _, opt := range parts[1:] {
			if opt == "immutable" {
				immutable = true
			}
		}
		fd, err := describeType(sf.Type, depth+1)
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{Name: name, Desc: fd, Immutable: immutable})
	}
	return &Descriptor{Kind: KindRecord, Fields: fields, goType: t}, nil
}
