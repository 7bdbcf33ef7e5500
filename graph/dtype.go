package graph

import (
	"reflect"

	"github.com/zclconf/go-cty/cty"
)

// resourceHandle is the opaque payload behind resource-variable handles.
type resourceHandle struct {
	name string
}

// Resource is the capsule type carried by resource-variable handles. Reads
// of a resource variable produce a value of the variable's element type;
// the handle itself is never materialized.
var Resource = cty.Capsule("resource", reflect.TypeOf(resourceHandle{}))

// DType describes the type of a Value. It pairs the element type with a
// mutability category: Ref marks the legacy reference-variable
// representation, which is mutable in place and therefore rejected inside
// compiled clusters.
type DType struct {
	Type cty.Type
	Ref  bool
}

// Of returns the immutable DType for the given element type.
func Of(t cty.Type) DType {
	return DType{Type: t}
}

// RefOf returns the mutable reference DType for the given element type.
func RefOf(t cty.Type) DType {
	return DType{Type: t, Ref: true}
}

// IsRef reports whether the value category is a mutable reference.
func (d DType) IsRef() bool {
	return d.Ref
}

func (d DType) String() string {
	if d.Ref {
		return d.Type.FriendlyName() + " ref"
	}
	return d.Type.FriendlyName()
}
