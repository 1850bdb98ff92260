package codec

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/marmos91/wirerpc/internal/descriptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func i32Desc() *descriptor.Descriptor { return &descriptor.Descriptor{Kind: descriptor.KindI32} }
func strDesc() *descriptor.Descriptor { return &descriptor.Descriptor{Kind: descriptor.KindUtf8String} }
func arrayOf(elem *descriptor.Descriptor) *descriptor.Descriptor {
	return &descriptor.Descriptor{Kind: descriptor.KindArray, Elem: elem}
}

type point struct {
	X  int32  `wire:"x"`
	Y  int32  `wire:"y"`
	ID string `wire:"id,immutable"`
}

func pointDesc() *descriptor.Descriptor {
	d, err := descriptor.Describe(point{})
	if err != nil {
		panic(err)
	}
	return d
}

// line nests point by value, not by pointer, exercising the
// decodeRecordBody path where the decoded slot (always a pointer) must be
// dereferenced before it can be assigned into a by-value struct field.
type line struct {
	Start point `wire:"start"`
	End   point `wire:"end"`
}

func lineDesc() *descriptor.Descriptor {
	d, err := descriptor.Describe(line{})
	if err != nil {
		panic(err)
	}
	return d
}

func TestEmptyStringWireShape(t *testing.T) {
	var buf bytes.Buffer
	s := ""
	require.NoError(t, Encode(&buf, strDesc(), &s))
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x00, 0x00}, buf.Bytes())
}

func TestNullStringWireShape(t *testing.T) {
	var buf bytes.Buffer
	var s *string
	require.NoError(t, Encode(&buf, strDesc(), s))
	assert.Equal(t, []byte{0x01}, buf.Bytes())
}

func TestEmptyPrimitiveArrayWireShape(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, arrayOf(i32Desc()), []int32{}))
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x00, 0x00}, buf.Bytes())
}

func TestPrimitiveArrayRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, arrayOf(i32Desc()), []int32{1, 2, 3}))

	got, err := Decode(&buf, arrayOf(i32Desc()))
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 3}, got)
}

func TestStringRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	s := "hi"
	require.NoError(t, Encode(&buf, strDesc(), &s))

	got, err := Decode(&buf, strDesc())
	require.NoError(t, err)
	gotPtr, ok := got.(*string)
	require.True(t, ok)
	assert.Equal(t, "hi", *gotPtr)
}

func TestRecordRoundTripSkipsImmutableField(t *testing.T) {
	d := pointDesc()
	orig := &point{X: 1, Y: 2, ID: "should-not-survive"}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, d, orig))

	got, err := Decode(&buf, d)
	require.NoError(t, err)
	p, ok := got.(*point)
	require.True(t, ok)

	assert.Equal(t, int32(1), p.X)
	assert.Equal(t, int32(2), p.Y)
	assert.Equal(t, "", p.ID, "immutable field must be left at its zero value")
}

func TestNestedByValueRecordFieldRoundTrip(t *testing.T) {
	d := lineDesc()
	orig := &line{Start: point{X: 1, Y: 2}, End: point{X: 3, Y: 4}}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, d, orig))

	got, err := Decode(&buf, d)
	require.NoError(t, err)
	l, ok := got.(*line)
	require.True(t, ok)

	assert.Equal(t, int32(1), l.Start.X)
	assert.Equal(t, int32(2), l.Start.Y)
	assert.Equal(t, int32(3), l.End.X)
	assert.Equal(t, int32(4), l.End.Y)
}

func TestCompositeArrayRoundTrip(t *testing.T) {
	d := pointDesc()
	arr := arrayOf(d)

	pts := []*point{{X: 1, Y: 1}, {X: 2, Y: 2}}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, arr, pts))

	got, err := Decode(&buf, arr)
	require.NoError(t, err)
	decoded, ok := got.([]*point)
	require.True(t, ok)
	require.Len(t, decoded, 2)
	assert.Equal(t, int32(1), decoded[0].X)
	assert.Equal(t, int32(2), decoded[1].X)
}

func TestDecodeMalformedTag(t *testing.T) {
	buf := bytes.NewReader([]byte{0x05})
	_, err := Decode(buf, strDesc())
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ErrMalformedTag, cerr.Kind)
}

func TestDecodeNegativeLength(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x00})
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF}) // -1 as i32
	_, err := Decode(buf, strDesc())
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ErrMalformedLength, cerr.Kind)
}

func TestDecodeUnexpectedEnd(t *testing.T) {
	buf := bytes.NewReader([]byte{0x00}) // tag only, missing i32 body
	_, err := Decode(buf, i32Desc())
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ErrUnexpectedEnd, cerr.Kind)
}

func TestDecodeNullPrimitiveIsError(t *testing.T) {
	buf := bytes.NewReader([]byte{0x01})
	_, err := Decode(buf, i32Desc())
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ErrNullPrimitive, cerr.Kind)
}

func TestDecodeInvalidUTF8(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(0x00)
	length := []byte{0x00, 0x00, 0x00, 0x02}
	buf.Write(length)
	buf.Write([]byte{0xff, 0xfe}) // invalid UTF-8
	_, err := Decode(&buf, strDesc())
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ErrInvalidText, cerr.Kind)
}

// buildNestedArrayValue constructs a one-element-per-level nested slice
// value matching n levels of Array(...Array(I32)...), so recursion depth
// can be exercised without hand-writing a typed literal for each depth.
func buildNestedArrayValue(t *testing.T, d *descriptor.Descriptor) reflect.Value {
	t.Helper()
	goType, err := goTypeFor(d)
	require.NoError(t, err)

	if d.Kind.IsPrimitive() {
		return reflect.Zero(goType)
	}
	inner := buildNestedArrayValue(t, d.Elem)
	slice := reflect.MakeSlice(goType, 1, 1)
	slice.Index(0).Set(inner)
	return slice
}

func TestDepthExceededOnEncode(t *testing.T) {
	d := i32Desc()
	for i := 0; i < 22; i++ {
		d = arrayOf(d)
	}
	v := buildNestedArrayValue(t, d)

	var buf bytes.Buffer
	err := Encode(&buf, d, v.Interface())
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ErrDepthExceeded, cerr.Kind)
}

func TestDepthWithinBoundSucceeds(t *testing.T) {
	d := i32Desc()
	for i := 0; i < 19; i++ {
		d = arrayOf(d)
	}
	v := buildNestedArrayValue(t, d)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, d, v.Interface()))
}
