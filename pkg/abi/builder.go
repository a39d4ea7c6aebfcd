package abi

// Builder constructors for descriptor trees. They are the Go rendering of
// the declarative construction layer: instrumentation declares its types
// with nested calls and the result satisfies the ABI invariants directly.
//
//	abi.StructOf(
//		abi.F("vendor", abi.Str()),
//		abi.F("id", abi.U32()),
//	)

// NullT returns a null descriptor.
func NullT() *Type { return &Type{Kind: KindNull} }

// BoolT returns a 1-byte boolean descriptor.
func BoolT() *Type {
	return &Type{Kind: KindBool, Bool: &BoolType{Size: 1, Order: HostOrder}}
}

// ByteT returns a byte descriptor.
func ByteT() *Type { return &Type{Kind: KindByte} }

// IntegerT returns an integer descriptor with explicit size, signedness and
// byte order.
func IntegerT(size uint16, signed bool, order ByteOrder) *Type {
	return &Type{Kind: KindInteger, Integer: &IntegerType{Size: size, Signed: signed, Order: order}}
}

// U8 returns an unsigned 8-bit integer descriptor.
func U8() *Type { return IntegerT(1, false, HostOrder) }

// U16 returns an unsigned 16-bit integer descriptor.
func U16() *Type { return IntegerT(2, false, HostOrder) }

// U32 returns an unsigned 32-bit integer descriptor.
func U32() *Type { return IntegerT(4, false, HostOrder) }

// U64 returns an unsigned 64-bit integer descriptor.
func U64() *Type { return IntegerT(8, false, HostOrder) }

// S8 returns a signed 8-bit integer descriptor.
func S8() *Type { return IntegerT(1, true, HostOrder) }

// S16 returns a signed 16-bit integer descriptor.
func S16() *Type { return IntegerT(2, true, HostOrder) }

// S32 returns a signed 32-bit integer descriptor.
func S32() *Type { return IntegerT(4, true, HostOrder) }

// S64 returns a signed 64-bit integer descriptor.
func S64() *Type { return IntegerT(8, true, HostOrder) }

// F32 returns a 32-bit float descriptor.
func F32() *Type {
	return &Type{Kind: KindFloat, Float: &FloatType{Size: 4, Order: HostOrder}}
}

// F64 returns a 64-bit float descriptor.
func F64() *Type {
	return &Type{Kind: KindFloat, Float: &FloatType{Size: 8, Order: HostOrder}}
}

// Str returns a UTF-8 string descriptor.
func Str() *Type {
	return &Type{Kind: KindString, String: &StringType{UnitSize: 1, Order: HostOrder}}
}

// F returns one struct or event field.
func F(name string, t *Type) Field { return Field{Name: name, Type: t} }

// StructOf returns a struct descriptor with the given ordered fields.
func StructOf(fields ...Field) *Type {
	return &Type{Kind: KindStruct, Struct: &StructType{Fields: fields}}
}

// ArrayOf returns a fixed-length array descriptor.
func ArrayOf(elem *Type, length uint32) *Type {
	return &Type{Kind: KindArray, Array: &ArrayType{Elem: elem, Length: length}}
}

// VLAOf returns a variable-length array descriptor.
func VLAOf(elem *Type) *Type {
	return &Type{Kind: KindVLA, VLA: &VLAType{Elem: elem}}
}

// Case returns one variant option covering the inclusive range [begin, end].
func Case(begin, end int64, t *Type) VariantOption {
	return VariantOption{Begin: begin, End: end, Type: t}
}

// CaseOf returns a variant option covering a single selector value.
func CaseOf(value int64, t *Type) VariantOption { return Case(value, value, t) }

// VariantOf returns a variant descriptor. Options are matched in
// declaration order; the first range containing the selector wins.
func VariantOf(selector *Type, options ...VariantOption) *Type {
	return &Type{Kind: KindVariant, Variant: &VariantType{Selector: selector, Options: options}}
}

// OptionalOf returns an optional descriptor.
func OptionalOf(elem *Type) *Type {
	return &Type{Kind: KindOptional, Optional: &OptionalType{Elem: elem}}
}

// MapRange returns one mapping labelling the inclusive range [begin, end].
func MapRange(begin, end int64, label string) EnumMapping {
	return EnumMapping{Begin: begin, End: end, Label: label}
}

// MapValue returns one mapping labelling a single value (or bit index).
func MapValue(value int64, label string) EnumMapping {
	return MapRange(value, value, label)
}

// Mappings returns a shared label table.
func Mappings(mappings ...EnumMapping) *EnumMappings {
	return &EnumMappings{Mappings: mappings}
}

// EnumOf returns an enum descriptor labelling elem values through m.
func EnumOf(elem *Type, m *EnumMappings) *Type {
	return &Type{Kind: KindEnum, Enum: &EnumType{Elem: elem, Mappings: m}}
}

// BitmapOf returns an enum-bitmap descriptor labelling set bits of elem
// through m.
func BitmapOf(elem *Type, m *EnumMappings) *Type {
	return &Type{Kind: KindEnumBitmap, Bitmap: &EnumBitmapType{Elem: elem, Mappings: m}}
}

// DynamicT returns the placeholder descriptor for a dynamically-typed
// field.
func DynamicT() *Type { return &Type{Kind: KindDynamic} }

// WithAttrs returns a copy of t carrying the given attributes.
func (t *Type) WithAttrs(attrs ...Attribute) *Type {
	c := *t
	c.Attributes = attrs
	return &c
}

// Gather descriptor constructors. The layout places the value relative to
// the position handed down by the containing descriptor.

// GatherIntegerT returns a gather integer descriptor.
func GatherIntegerT(size uint16, signed bool, order ByteOrder, layout GatherLayout) *Type {
	l := layout
	return &Type{
		Kind:    KindGatherInteger,
		Integer: &IntegerType{Size: size, Signed: signed, Order: order},
		Gather:  &l,
	}
}

// GatherU8 returns an unsigned 8-bit gather integer at offset.
func GatherU8(offset uint64) *Type {
	return GatherIntegerT(1, false, HostOrder, GatherLayout{Offset: offset})
}

// GatherU16 returns an unsigned 16-bit gather integer at offset.
func GatherU16(offset uint64) *Type {
	return GatherIntegerT(2, false, HostOrder, GatherLayout{Offset: offset})
}

// GatherU32 returns an unsigned 32-bit gather integer at offset.
func GatherU32(offset uint64) *Type {
	return GatherIntegerT(4, false, HostOrder, GatherLayout{Offset: offset})
}

// GatherU64 returns an unsigned 64-bit gather integer at offset.
func GatherU64(offset uint64) *Type {
	return GatherIntegerT(8, false, HostOrder, GatherLayout{Offset: offset})
}

// GatherS32 returns a signed 32-bit gather integer at offset.
func GatherS32(offset uint64) *Type {
	return GatherIntegerT(4, true, HostOrder, GatherLayout{Offset: offset})
}

// GatherS64 returns a signed 64-bit gather integer at offset.
func GatherS64(offset uint64) *Type {
	return GatherIntegerT(8, true, HostOrder, GatherLayout{Offset: offset})
}

// GatherBoolT returns a gather boolean descriptor.
func GatherBoolT(size uint16, layout GatherLayout) *Type {
	l := layout
	return &Type{
		Kind:   KindGatherBool,
		Bool:   &BoolType{Size: size, Order: HostOrder},
		Gather: &l,
	}
}

// GatherByteT returns a gather byte descriptor.
func GatherByteT(offset uint64) *Type {
	return &Type{Kind: KindGatherByte, Gather: &GatherLayout{Offset: offset}}
}

// GatherFloatT returns a gather float descriptor.
func GatherFloatT(size uint16, order ByteOrder, layout GatherLayout) *Type {
	l := layout
	return &Type{
		Kind:   KindGatherFloat,
		Float:  &FloatType{Size: size, Order: order},
		Gather: &l,
	}
}

// GatherStringT returns a gather string descriptor.
func GatherStringT(layout GatherLayout) *Type {
	l := layout
	return &Type{
		Kind:   KindGatherString,
		String: &StringType{UnitSize: 1, Order: HostOrder},
		Gather: &l,
	}
}

// GatherStructOf returns a gather struct descriptor. size is the total byte
// size of the struct in memory, used by containers to advance past it.
func GatherStructOf(size uint64, layout GatherLayout, fields ...Field) *Type {
	l := layout
	return &Type{
		Kind:   KindGatherStruct,
		Struct: &StructType{Fields: fields, Size: size},
		Gather: &l,
	}
}

// GatherArrayOf returns a gather array descriptor of length contiguous
// elements.
func GatherArrayOf(elem *Type, length uint32, layout GatherLayout) *Type {
	l := layout
	return &Type{
		Kind:   KindGatherArray,
		Array:  &ArrayType{Elem: elem, Length: length},
		Gather: &l,
	}
}

// GatherVLAOf returns a gather VLA descriptor: the runtime length is read
// through the length descriptor, the elements follow it contiguously.
func GatherVLAOf(elem, length *Type, layout GatherLayout) *Type {
	l := layout
	return &Type{
		Kind:   KindGatherVLA,
		VLA:    &VLAType{Elem: elem, Length: length},
		Gather: &l,
	}
}

// GatherEnumOf returns a gather enum descriptor.
func GatherEnumOf(elem *Type, m *EnumMappings) *Type {
	return &Type{Kind: KindGatherEnum, Enum: &EnumType{Elem: elem, Mappings: m}}
}
