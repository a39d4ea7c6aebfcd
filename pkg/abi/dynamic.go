package abi

import "golang.org/x/exp/constraints"

// DynKind identifies the shape of a self-describing value. Dynamic values
// carry their own compact type tag, so they decode without a separately
// registered descriptor.
type DynKind uint8

const (
	DynNull DynKind = iota
	DynBool
	DynByte
	DynInteger
	DynFloat
	DynString
	DynStruct
	DynVLA
	// DynStructVisitor and DynVLAVisitor expose lazily-produced fields and
	// elements through a push callback, without the producer ever
	// materializing the full sequence.
	DynStructVisitor
	DynVLAVisitor

	numDynKinds
)

var dynKindNames = [numDynKinds]string{
	DynNull:          "null",
	DynBool:          "bool",
	DynByte:          "byte",
	DynInteger:       "integer",
	DynFloat:         "float",
	DynString:        "string",
	DynStruct:        "struct",
	DynVLA:           "vla",
	DynStructVisitor: "struct-visitor",
	DynVLAVisitor:    "vla-visitor",
}

func (k DynKind) String() string {
	if int(k) < len(dynKindNames) {
		return dynKindNames[k]
	}
	return "unknown"
}

// DynValue is a self-describing value: the compact type tag and the value
// in one carrier.
type DynValue struct {
	Kind       DynKind
	Attributes []Attribute

	Bool  bool
	Byte  byte
	Bits  uint64 // raw integer payload
	Float float64
	Str   string

	// Size, Signed and Order describe the integer or float payload.
	Size   uint16
	Signed bool
	Order  ByteOrder

	Fields []DynField // DynStruct
	Elems  []DynValue // DynVLA

	StructVisitor *DynamicStructVisitor
	VLAVisitor    *DynamicVLAVisitor
}

// DynField is one named field of a dynamic struct.
type DynField struct {
	Name  string
	Value DynValue
}

// FieldWriter accepts fields from a lazily-produced dynamic struct. Each
// WriteField decodes the field immediately, without buffering. A non-nil
// return tells the producer to stop.
type FieldWriter interface {
	WriteField(name string, v DynValue) error
}

// DynElemWriter accepts elements from a lazily-produced dynamic VLA.
type DynElemWriter interface {
	WriteElem(v DynValue) error
}

// DynamicStructVisitor is the producer side of a lazily-iterated dynamic
// struct: an opaque context plus a callback pushing one field at a time.
type DynamicStructVisitor struct {
	Ctx   any
	Visit func(w FieldWriter, ctx any) error
}

// DynamicVLAVisitor is the producer side of a lazily-iterated dynamic VLA.
type DynamicVLAVisitor struct {
	Ctx   any
	Visit func(w DynElemWriter, ctx any) error
}

// DynNullV returns a dynamic null.
func DynNullV() DynValue { return DynValue{Kind: DynNull} }

// DynBoolV returns a dynamic boolean.
func DynBoolV(v bool) DynValue {
	return DynValue{Kind: DynBool, Bool: v, Size: 1}
}

// DynByteV returns a dynamic byte.
func DynByteV(v byte) DynValue { return DynValue{Kind: DynByte, Byte: v, Size: 1} }

// DynIntV returns a dynamic integer of the given storage size.
func DynIntV[T constraints.Integer](v T, size uint16, signed bool) DynValue {
	return DynValue{Kind: DynInteger, Bits: uint64(v), Size: size, Signed: signed, Order: HostOrder}
}

// DynU64V returns a dynamic unsigned 64-bit integer.
func DynU64V(v uint64) DynValue { return DynIntV(v, 8, false) }

// DynS64V returns a dynamic signed 64-bit integer.
func DynS64V(v int64) DynValue { return DynIntV(v, 8, true) }

// DynFloatV returns a dynamic 64-bit float.
func DynFloatV(v float64) DynValue {
	return DynValue{Kind: DynFloat, Float: v, Size: 8, Order: HostOrder}
}

// DynStringV returns a dynamic string.
func DynStringV(v string) DynValue { return DynValue{Kind: DynString, Str: v} }

// DynStructV returns an eagerly-built dynamic struct.
func DynStructV(fields ...DynField) DynValue {
	return DynValue{Kind: DynStruct, Fields: fields}
}

// DynF returns one dynamic struct field.
func DynF(name string, v DynValue) DynField { return DynField{Name: name, Value: v} }

// DynVLAV returns an eagerly-built dynamic VLA.
func DynVLAV(elems ...DynValue) DynValue {
	return DynValue{Kind: DynVLA, Elems: elems}
}

// DynStructVisitorV returns a lazily-produced dynamic struct.
func DynStructVisitorV(ctx any, visit func(w FieldWriter, ctx any) error) DynValue {
	return DynValue{Kind: DynStructVisitor, StructVisitor: &DynamicStructVisitor{Ctx: ctx, Visit: visit}}
}

// DynVLAVisitorV returns a lazily-produced dynamic VLA.
func DynVLAVisitorV(ctx any, visit func(w DynElemWriter, ctx any) error) DynValue {
	return DynValue{Kind: DynVLAVisitor, VLAVisitor: &DynamicVLAVisitor{Ctx: ctx, Visit: visit}}
}
