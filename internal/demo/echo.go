// Package demo provides a minimal registered service used by tests and by
// cmd/wirerpcd's default configuration to exercise a live server without
// requiring a generated target.
package demo

import (
	"github.com/marmos91/wirerpc/internal/descriptor"
	"github.com/marmos91/wirerpc/internal/rpc/dispatch"
)

var stringDesc = &descriptor.Descriptor{Kind: descriptor.KindUtf8String}

// EchoRegistry exposes one operation, echo(String) -> String, returning
// its argument unchanged.
func EchoRegistry() dispatch.Table {
	return dispatch.Table{
		"echo": &dispatch.Operation{
			ArgDescriptors:   []*descriptor.Descriptor{stringDesc},
			ReturnDescriptor: stringDesc,
			Call: func(args []any) (any, error) {
				return args[0], nil
			},
		},
	}
}
