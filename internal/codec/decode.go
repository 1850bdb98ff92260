package codec

import (
	"encoding/binary"
	"fmt"
	"io"
	"reflect"
	"unicode/utf8"

	"github.com/marmos91/wirerpc/internal/descriptor"
)

// Decode reads one value slot shaped as d from r and returns it using the
// natural Go representation described by goTypeFor(d).
func Decode(r io.Reader, d *descriptor.Descriptor) (any, error) {
	rv, err := decodeSlot(r, d, 0)
	if err != nil {
		return nil, err
	}
	return rv.Interface(), nil
}

func decodeSlot(r io.Reader, d *descriptor.Descriptor, depth int) (reflect.Value, error) {
	if depth > maxDepth {
		return reflect.Value{}, newErr(ErrDepthExceeded, "decode recursion too deep", nil)
	}

	goType, err := goTypeFor(d)
	if err != nil {
		return reflect.Value{}, err
	}

	tag, err := readTag(r)
	if err != nil {
		return reflect.Value{}, err
	}

	if tag == 1 {
		if d.Kind.IsPrimitive() {
			return reflect.Value{}, newErr(ErrNullPrimitive, "null tag on standalone primitive slot", nil)
		}
		return reflect.Zero(goType), nil
	}

	switch {
	case d.Kind.IsPrimitive():
		return decodePrimitiveBody(r, d.Kind, goType)
	case d.Kind == descriptor.KindUtf8String:
		s, err := decodeStringBody(r)
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(stringType)
		ptr.Elem().SetString(s)
		return ptr, nil
	case d.Kind == descriptor.KindArray:
		return decodeArrayBody(r, d, goType, depth)
	case d.Kind == descriptor.KindRecord:
		return decodeRecordBody(r, d, depth)
	default:
		return reflect.Value{}, fmt.Errorf("codec: cannot decode descriptor kind %s", d.Kind)
	}
}

func readTag(r io.Reader) (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, newErr(ErrUnexpectedEnd, "reading null tag", err)
	}
	if buf[0] != 0 && buf[0] != 1 {
		return 0, newErr(ErrMalformedTag, fmt.Sprintf("tag byte %d not in {0,1}", buf[0]), nil)
	}
	return buf[0], nil
}

func decodePrimitiveBody(r io.Reader, k descriptor.Kind, goType reflect.Type) (reflect.Value, error) {
	out := reflect.New(goType).Elem()
	switch k {
	case descriptor.KindBool:
		var buf [1]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return reflect.Value{}, newErr(ErrUnexpectedEnd, "reading bool", err)
		}
		out.SetBool(buf[0] != 0)
	case descriptor.KindI8:
		var buf [1]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return reflect.Value{}, newErr(ErrUnexpectedEnd, "reading i8", err)
		}
		out.SetInt(int64(int8(buf[0])))
	case descriptor.KindU16Char:
		var v uint16
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return reflect.Value{}, newErr(ErrUnexpectedEnd, "reading u16", err)
		}
		out.SetUint(uint64(v))
	case descriptor.KindI16:
		var v int16
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return reflect.Value{}, newErr(ErrUnexpectedEnd, "reading i16", err)
		}
		out.SetInt(int64(v))
	case descriptor.KindI32:
		var v int32
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return reflect.Value{}, newErr(ErrUnexpectedEnd, "reading i32", err)
		}
		out.SetInt(int64(v))
	case descriptor.KindI64:
		var v int64
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return reflect.Value{}, newErr(ErrUnexpectedEnd, "reading i64", err)
		}
		out.SetInt(v)
	case descriptor.KindF32:
		var v float32
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return reflect.Value{}, newErr(ErrUnexpectedEnd, "reading f32", err)
		}
		out.SetFloat(float64(v))
	case descriptor.KindF64:
		var v float64
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return reflect.Value{}, newErr(ErrUnexpectedEnd, "reading f64", err)
		}
		out.SetFloat(v)
	default:
		return reflect.Value{}, fmt.Errorf("codec: not a primitive kind %s", k)
	}
	return out, nil
}

func decodeLength(r io.Reader) (int32, error) {
	var n int32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return 0, newErr(ErrUnexpectedEnd, "reading length", err)
	}
	if n < 0 {
		return 0, newErr(ErrMalformedLength, fmt.Sprintf("negative length %d", n), nil)
	}
	return n, nil
}

func decodeStringBody(r io.Reader) (string, error) {
	n, err := decodeLength(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", newErr(ErrUnexpectedEnd, "reading string bytes", err)
	}
	if !utf8.Valid(buf) {
		return "", newErr(ErrInvalidText, "string bytes are not valid UTF-8", nil)
	}
	return string(buf), nil
}

func decodeArrayBody(r io.Reader, d *descriptor.Descriptor, goType reflect.Type, depth int) (reflect.Value, error) {
	n, err := decodeLength(r)
	if err != nil {
		return reflect.Value{}, err
	}
	slice := reflect.MakeSlice(goType, int(n), int(n))

	if d.Elem.Kind.IsPrimitive() {
		elemGoType := kindGoType(d.Elem.Kind)
		for i := 0; i < int(n); i++ {
			ev, err := decodePrimitiveBody(r, d.Elem.Kind, elemGoType)
			if err != nil {
				return reflect.Value{}, err
			}
			slice.Index(i).Set(ev)
		}
		return slice, nil
	}

	for i := 0; i < int(n); i++ {
		ev, err := decodeSlot(r, d.Elem, depth+1)
		if err != nil {
			return reflect.Value{}, err
		}
		slice.Index(i).Set(ev)
	}
	return slice, nil
}

func decodeRecordBody(r io.Reader, d *descriptor.Descriptor, depth int) (reflect.Value, error) {
	ptr, err := d.New()
	if err != nil {
		return reflect.Value{}, newErr(ErrUnconstructibleRecord, "allocating record", err)
	}
	elem := ptr.Elem()

	for _, f := range d.Fields {
		if f.Immutable {
			continue
		}
		fv, err := decodeSlot(r, f.Desc, depth+1)
		if err != nil {
			return reflect.Value{}, err
		}
		field := elem.FieldByName(exportedName(f.Name, elem))
		if field.IsValid() && field.CanSet() {
			if field.Kind() != reflect.Ptr && fv.Kind() == reflect.Ptr {
				fv = fv.Elem()
			}
			field.Set(fv)
		}
	}
	return ptr, nil
}
