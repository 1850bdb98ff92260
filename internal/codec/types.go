package codec

import (
	"reflect"

	"github.com/marmos91/wirerpc/internal/descriptor"
)

// maxDepth mirrors descriptor.maxDepth; kept local since it's unexported there.
const maxDepth = 20

var stringType = reflect.TypeOf("")

// kindGoType maps a primitive Kind to its Go representation type.
func kindGoType(k descriptor.Kind) reflect.Type {
	switch k {
	case descriptor.KindBool:
		return reflect.TypeOf(bool(false))
	case descriptor.KindI8:
		return reflect.TypeOf(int8(0))
	case descriptor.KindU16Char:
		return reflect.TypeOf(uint16(0))
	case descriptor.KindI16:
		return reflect.TypeOf(int16(0))
	case descriptor.KindI32:
		return reflect.TypeOf(int32(0))
	case descriptor.KindI64:
		return reflect.TypeOf(int64(0))
	case descriptor.KindF32:
		return reflect.TypeOf(float32(0))
	case descriptor.KindF64:
		return reflect.TypeOf(float64(0))
	default:
		return nil
	}
}

// goTypeFor returns the natural Go representation type for a descriptor:
// primitives are flat values, Utf8String is *string, Array is a slice,
// Record is a pointer to its underlying struct type.
func goTypeFor(d *descriptor.Descriptor) (reflect.Type, error) {
	switch {
	case d.Kind.IsPrimitive():
		return kindGoType(d.Kind), nil
	case d.Kind == descriptor.KindUtf8String:
		return reflect.PtrTo(stringType), nil
	case d.Kind == descriptor.KindArray:
		elemType, err := goTypeFor(d.Elem)
		if err != nil {
			return nil, err
		}
		return reflect.SliceOf(elemType), nil
	case d.Kind == descriptor.KindRecord:
		zero, err := d.New() // reflect.New(structType) -> pointer
		if err != nil {
			return nil, newErr(ErrUnconstructibleRecord, "no factory for record descriptor", err)
		}
		return zero.Type(), nil
	default:
		return nil, newErr(ErrUnconstructibleRecord, "cannot resolve go type for kind "+d.Kind.String(), nil)
	}
}
