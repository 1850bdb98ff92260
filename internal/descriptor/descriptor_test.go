package descriptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	X  int32  `wire:"x"`
	Y  int32  `wire:"y"`
	ID string `wire:"id,immutable"`
	hidden string
}

func TestDescribePrimitives(t *testing.T) {
	d, err := Describe(int32(0))
	require.NoError(t, err)
	assert.Equal(t, KindI32, d.Kind)

	d, err = Describe("")
	require.NoError(t, err)
	assert.Equal(t, KindUtf8String, d.Kind)
}

func TestDescribeArray(t *testing.T) {
	d, err := Describe([]int32{})
	require.NoError(t, err)
	assert.Equal(t, KindArray, d.Kind)
	assert.Equal(t, KindI32, d.Elem.Kind)
}

func TestDescribeRecordOrderAndImmutability(t *testing.T) {
	d, err := Describe(point{})
	require.NoError(t, err)
	require.Equal(t, KindRecord, d.Kind)
	require.Len(t, d.Fields, 3)

	assert.Equal(t, "x", d.Fields[0].Name)
	assert.False(t, d.Fields[0].Immutable)
	assert.Equal(t, "y", d.Fields[1].Name)
	assert.Equal(t, "id", d.Fields[2].Name)
	assert.True(t, d.Fields[2].Immutable)
}

type line struct {
	Start point `wire:"start"`
	End   point `wire:"end"`
}

func TestDescribeNestedByValueRecordField(t *testing.T) {
	d, err := Describe(line{})
	require.NoError(t, err)
	require.Len(t, d.Fields, 2)

	assert.Equal(t, KindRecord, d.Fields[0].Desc.Kind)
	assert.Equal(t, "start", d.Fields[0].Name)
	assert.Equal(t, KindRecord, d.Fields[1].Desc.Kind)
	assert.Equal(t, "end", d.Fields[1].Name)
}

func TestDescribeRecordSkipsUntaggedFields(t *testing.T) {
	d, err := Describe(point{})
	require.NoError(t, err)
	for _, f := range d.Fields {
		assert.NotEqual(t, "hidden", f.Name)
	}
}

func TestNewAllocatesZeroValue(t *testing.T) {
	d, err := Describe(point{})
	require.NoError(t, err)

	v, err := d.New()
	require.NoError(t, err)
	assert.True(t, v.IsValid())
	assert.Equal(t, "point", v.Elem().Type().Name())
}

func TestVoidDescriptor(t *testing.T) {
	assert.Equal(t, KindVoid, Void.Kind)
}
