package abi

import "golang.org/x/exp/constraints"

// ArgKind identifies the payload of an argument. Arguments mirror the
// descriptor kinds: an argument passed with a descriptor must carry the
// matching kind, except where the ABI allows widening (an enum descriptor
// takes its element's argument, a dynamic placeholder takes any dynamic
// argument).
type ArgKind uint8

const (
	ArgNull ArgKind = iota
	ArgBool
	ArgByte
	ArgInteger
	ArgFloat
	ArgString
	ArgStruct
	ArgArray
	ArgVLA
	// ArgVLAVisitor is a lazily-produced VLA: the producer pushes elements
	// one at a time through an ElemWriter instead of materializing them.
	ArgVLAVisitor
	ArgVariant
	ArgOptional
	// ArgGather carries a base address; the paired gather descriptor tells
	// the engine how to read the value out of memory.
	ArgGather
	// ArgDynamic carries a fully self-describing value.
	ArgDynamic

	numArgKinds
)

var argKindNames = [numArgKinds]string{
	ArgNull:       "null",
	ArgBool:       "bool",
	ArgByte:       "byte",
	ArgInteger:    "integer",
	ArgFloat:      "float",
	ArgString:     "string",
	ArgStruct:     "struct",
	ArgArray:      "array",
	ArgVLA:        "vla",
	ArgVLAVisitor: "vla-visitor",
	ArgVariant:    "variant",
	ArgOptional:   "optional",
	ArgGather:     "gather",
	ArgDynamic:    "dynamic",
}

func (k ArgKind) String() string {
	if int(k) < len(argKindNames) {
		return argKindNames[k]
	}
	return "unknown"
}

// Argument carries one value of an event occurrence. Kind selects which
// payload is meaningful. Integer payloads are the raw bits; signedness and
// size come from the paired descriptor.
type Argument struct {
	Kind ArgKind

	Bool  bool
	Byte  byte
	Bits  uint64 // raw integer payload
	Float float64
	Str   string

	// Children holds struct fields, array elements, VLA elements, or the
	// single present value of an optional.
	Children []Argument

	// VLAVisitor is set for ArgVLAVisitor.
	VLAVisitor *VLAVisitor

	// Variant is set for ArgVariant.
	Variant *VariantArg

	// Mem and Addr locate a gather argument: the base address and the
	// memory it is valid in.
	Mem  Memory
	Addr uint64

	// Dynamic is set for ArgDynamic.
	Dynamic *DynValue
}

// VariantArg pairs the selector value of a variant with the argument of the
// selected option.
type VariantArg struct {
	Selector Argument
	Value    Argument
}

// ElemWriter accepts elements from a lazily-produced VLA. The engine
// installs an implementation before invoking the producer callback; each
// WriteElem decodes the element immediately, without buffering, so the
// producer may be unbounded. A non-nil return tells the producer to stop.
type ElemWriter interface {
	WriteElem(arg Argument) error
}

// VLAVisitor is the producer side of a lazily-iterated VLA argument.
type VLAVisitor struct {
	// Ctx is an opaque producer context handed back to Visit.
	Ctx any
	// Visit pushes the elements, one WriteElem call each.
	Visit func(w ElemWriter, ctx any) error
}

// Arg constructors. They keep call sites close to the declarative form the
// descriptors are built with.

// NullArg returns a null argument.
func NullArg() Argument { return Argument{Kind: ArgNull} }

// BoolArg returns a boolean argument.
func BoolArg(v bool) Argument { return Argument{Kind: ArgBool, Bool: v} }

// ByteArg returns a byte argument.
func ByteArg(v byte) Argument { return Argument{Kind: ArgByte, Byte: v} }

// IntArg returns an integer argument. The conversion to uint64 keeps the
// two's complement bits of negative values; signedness and size come from
// the paired descriptor.
func IntArg[T constraints.Integer](v T) Argument {
	return Argument{Kind: ArgInteger, Bits: uint64(v)}
}

// FloatArg returns a float argument.
func FloatArg(v float64) Argument { return Argument{Kind: ArgFloat, Float: v} }

// StringArg returns a string argument.
func StringArg(v string) Argument { return Argument{Kind: ArgString, Str: v} }

// StructArg returns a struct argument with the given field values, in
// declaration order.
func StructArg(fields ...Argument) Argument {
	return Argument{Kind: ArgStruct, Children: fields}
}

// ArrayArg returns a fixed-length array argument.
func ArrayArg(elems ...Argument) Argument {
	return Argument{Kind: ArgArray, Children: elems}
}

// VLAArg returns a variable-length array argument.
func VLAArg(elems ...Argument) Argument {
	return Argument{Kind: ArgVLA, Children: elems}
}

// VLAVisitorArg returns a lazily-produced VLA argument.
func VLAVisitorArg(ctx any, visit func(w ElemWriter, ctx any) error) Argument {
	return Argument{Kind: ArgVLAVisitor, VLAVisitor: &VLAVisitor{Ctx: ctx, Visit: visit}}
}

// VariantArgOf returns a variant argument carrying the selector value and
// the argument of the selected option.
func VariantArgOf(selector, value Argument) Argument {
	return Argument{Kind: ArgVariant, Variant: &VariantArg{Selector: selector, Value: value}}
}

// SomeArg returns a present optional argument.
func SomeArg(v Argument) Argument {
	return Argument{Kind: ArgOptional, Children: []Argument{v}}
}

// NoneArg returns an absent optional argument.
func NoneArg() Argument { return Argument{Kind: ArgOptional} }

// GatherArg returns a gather argument rooted at the given base address.
func GatherArg(mem Memory, addr uint64) Argument {
	return Argument{Kind: ArgGather, Mem: mem, Addr: addr}
}

// DynamicArg returns a dynamic argument.
func DynamicArg(v DynValue) Argument {
	d := v
	return Argument{Kind: ArgDynamic, Dynamic: &d}
}
