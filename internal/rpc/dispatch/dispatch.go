// Package dispatch implements the request dispatcher from spec.md §4.4: it
// decodes an operation name and its arguments from a byte payload, looks
// the operation up on a host-supplied Registry, invokes it, and packages
// the result as a Response ready for the codec to serialize.
package dispatch

import (
	"bytes"
	"fmt"

	"github.com/marmos91/wirerpc/internal/codec"
	"github.com/marmos91/wirerpc/internal/descriptor"
)

// Callable is a host-registered operation body. args are already decoded
// per the operation's ArgDescriptors, in order.
type Callable func(args []any) (any, error)

// Operation describes one entry a Registry can resolve by name: the
// argument shapes to decode, the return shape to encode, and the function
// to invoke. This is the in-scope half of spec.md §9's "host-collaborator
// contract" — populating real Operations for a concrete service is left to
// the host, normally via the code-generation step spec.md §9 describes.
type Operation struct {
	ArgDescriptors   []*descriptor.Descriptor
	ReturnDescriptor *descriptor.Descriptor
	Call             Callable
}

// Registry resolves an operation name to its Operation. Overloaded
// operations are not supported; Lookup returns the first match.
type Registry interface {
	Lookup(name string) (*Operation, bool)
}

// Table is a Registry backed by a plain map, the common case for a
// statically-known service surface.
type Table map[string]*Operation

func (t Table) Lookup(name string) (*Operation, bool) {
	op, ok := t[name]
	return op, ok
}

// Response carries a dispatched call's result and the descriptor to encode
// it with. When Descriptor is descriptor.Void, Value carries no meaning
// and the server must not write a reply body.
type Response struct {
	Value      any
	Descriptor *descriptor.Descriptor
}

var operationNameDescriptor = &descriptor.Descriptor{Kind: descriptor.KindUtf8String}

// PeekOperationName decodes just the leading operation-name slot of data,
// without looking it up or consuming the rest of the payload. Callers that
// want to label metrics or logs by operation before dispatch completes
// (including on a decode failure) can call this first.
func PeekOperationName(data []byte) (string, error) {
	nameAny, err := codec.Decode(bytes.NewReader(data), operationNameDescriptor)
	if err != nil {
		return "", err
	}
	namePtr, ok := nameAny.(*string)
	if !ok || namePtr == nil {
		return "", newErr(ErrUnknownOperation, "", "operation name slot decoded as null", nil)
	}
	return *namePtr, nil
}

// Dispatch decodes an operation name and its arguments from data, invokes
// the matching Registry entry, and returns the Response to send back.
func Dispatch(registry Registry, data []byte) (*Response, error) {
	r := bytes.NewReader(data)

	nameAny, err := codec.Decode(r, operationNameDescriptor)
	if err != nil {
		return nil, err
	}
	namePtr, ok := nameAny.(*string)
	if !ok || namePtr == nil {
		return nil, newErr(ErrUnknownOperation, "", "operation name slot decoded as null", nil)
	}
	name := *namePtr

	op, found := registry.Lookup(name)
	if !found {
		return nil, newErr(ErrUnknownOperation, name, "no operation registered under this name", nil)
	}

	args := make([]any, len(op.ArgDescriptors))
	for i, d := range op.ArgDescriptors {
		v, err := codec.Decode(r, d)
		if err != nil {
			return nil, fmt.Errorf("dispatch: decoding argument %d of %q: %w", i, name, err)
		}
		args[i] = v
	}

	value, err := op.Call(args)
	if err != nil {
		return nil, newErr(ErrInvocationFailure, name, "target returned an error", err)
	}

	return &Response{Value: value, Descriptor: op.ReturnDescriptor}, nil
}

// EncodeResponse serializes resp's value per its descriptor. Callers must
// skip this entirely when resp.Descriptor is descriptor.Void, per
// spec.md §4.6 ("if the response is non-void").
func EncodeResponse(resp *Response) ([]byte, error) {
	var buf bytes.Buffer
	if err := codec.Encode(&buf, resp.Descriptor, resp.Value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
