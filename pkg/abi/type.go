// Package abi defines the binary-stable type and argument model of the
// instrumentation ABI: type descriptors, argument carriers and event
// descriptions. Descriptors describe a value in one of three
// representations: static (copied to the call site), gather (read out of
// application memory by offset) and dynamic (self-describing at the call
// site).
package abi

// Kind identifies the shape of a type descriptor. The static and gather
// descriptor families share this one enum; a gather kind is the same shape
// as its static sibling but read out of memory through a GatherLayout.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindByte
	KindInteger
	KindFloat
	KindString
	KindStruct
	KindArray
	KindVLA
	KindVariant
	KindOptional
	KindEnum
	KindEnumBitmap
	// KindDynamic is the placeholder for a value whose type is only known
	// at the call site. It pairs with any dynamic argument.
	KindDynamic

	KindGatherBool
	KindGatherByte
	KindGatherInteger
	KindGatherFloat
	KindGatherString
	KindGatherStruct
	KindGatherArray
	KindGatherVLA
	KindGatherEnum

	numKinds
)

var kindNames = [numKinds]string{
	KindNull:          "null",
	KindBool:          "bool",
	KindByte:          "byte",
	KindInteger:       "integer",
	KindFloat:         "float",
	KindString:        "string",
	KindStruct:        "struct",
	KindArray:         "array",
	KindVLA:           "vla",
	KindVariant:       "variant",
	KindOptional:      "optional",
	KindEnum:          "enum",
	KindEnumBitmap:    "enum-bitmap",
	KindDynamic:       "dynamic",
	KindGatherBool:    "gather-bool",
	KindGatherByte:    "gather-byte",
	KindGatherInteger: "gather-integer",
	KindGatherFloat:   "gather-float",
	KindGatherString:  "gather-string",
	KindGatherStruct:  "gather-struct",
	KindGatherArray:   "gather-array",
	KindGatherVLA:     "gather-vla",
	KindGatherEnum:    "gather-enum",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsGather reports whether k belongs to the gather descriptor family.
func (k Kind) IsGather() bool {
	return k >= KindGatherBool && k <= KindGatherEnum
}

// ByteOrder declares the byte order of a multi-byte scalar. HostOrder means
// the order of the machine that produced the value; serialization resolves
// it to a concrete order so a different-endianness reader can still decode.
type ByteOrder uint8

const (
	HostOrder ByteOrder = iota
	LittleEndian
	BigEndian
)

func (o ByteOrder) String() string {
	switch o {
	case HostOrder:
		return "host"
	case LittleEndian:
		return "le"
	case BigEndian:
		return "be"
	}
	return "unknown"
}

// AccessMode tells a gather descriptor how to reach its value relative to
// the base address.
type AccessMode uint8

const (
	// Direct reads the value at base + offset.
	Direct AccessMode = iota
	// ThroughPointer reads a pointer at base + offset and dereferences it
	// once more before reading the value.
	ThroughPointer
)

// PointerSize is the size of an address in the ABI. Addresses are always
// 64-bit on the wire regardless of the host.
const PointerSize = 8

// GatherLayout describes where a gather descriptor finds its value: a byte
// offset from the position handed down by the container, the access mode,
// and for booleans and integers an optional bit field within the storage
// unit.
type GatherLayout struct {
	// Offset is the byte offset from the container's cursor.
	Offset uint64
	Access AccessMode
	// OffsetBits and LenBits select a bit field inside the storage unit.
	// LenBits zero means the full storage width.
	OffsetBits uint16
	LenBits    uint16
}

// Type is a type descriptor. Kind selects which payload pointer is set;
// every node carries an attribute list. A descriptor tree is immutable once
// it has been attached to a registered event description.
type Type struct {
	Kind       Kind
	Attributes []Attribute

	Bool     *BoolType
	Integer  *IntegerType
	Float    *FloatType
	String   *StringType
	Struct   *StructType
	Array    *ArrayType
	VLA      *VLAType
	Variant  *VariantType
	Optional *OptionalType
	Enum     *EnumType
	Bitmap   *EnumBitmapType

	// Gather is set on gather kinds only.
	Gather *GatherLayout
}

// BoolType describes a boolean with a declared storage size.
type BoolType struct {
	Size  uint16 // bytes: 1, 2, 4 or 8
	Order ByteOrder
}

// IntegerType describes an integer scalar.
type IntegerType struct {
	Size   uint16 // bytes: 1, 2, 4 or 8
	Signed bool
	Order  ByteOrder
}

// FloatType describes an IEEE 754 binary float.
type FloatType struct {
	Size  uint16 // bytes: 4 or 8
	Order ByteOrder
}

// StringType describes a zero-terminated string with a fixed code unit
// size.
type StringType struct {
	UnitSize uint16 // bytes per code unit: 1, 2 or 4
	Order    ByteOrder
}

// Field is one named member of a struct or event description.
type Field struct {
	Name string
	Type *Type
}

// StructType describes an ordered field list. Size is the total byte size
// of the struct in memory; it is only meaningful for gather structs, where
// it is the number of bytes a container advances past the struct.
type StructType struct {
	Fields []Field
	Size   uint64
}

// ArrayType describes a fixed-length array.
type ArrayType struct {
	Elem   *Type
	Length uint32
}

// VLAType describes a variable-length array. Length describes how to read
// the runtime length and is used by the gather representation only; static
// and dynamic arguments carry their own length.
type VLAType struct {
	Elem   *Type
	Length *Type
}

// VariantOption is one option of a variant: the descriptor used when the
// selector falls inside the inclusive range [Begin, End].
type VariantOption struct {
	Begin int64
	End   int64
	Type  *Type
}

// VariantType describes a tagged choice. The selector must decode to an
// integer; options are scanned in declaration order and the first
// containing range wins.
type VariantType struct {
	Selector *Type
	Options  []VariantOption
}

// OptionalType describes a value that may be absent.
type OptionalType struct {
	Elem *Type
}

// EnumMapping labels the inclusive value range [Begin, End]. For bitmaps
// the range covers bit indices instead of values.
type EnumMapping struct {
	Begin int64
	End   int64
	Label string
}

// EnumMappings is a label table shared between enum descriptors. It is used
// for human-readable labelling only, never for dispatch.
type EnumMappings struct {
	Mappings []EnumMapping
}

// EnumType describes an integer with an attached label table.
type EnumType struct {
	Elem     *Type
	Mappings *EnumMappings
}

// EnumBitmapType describes a bitmap with labelled bit ranges. Elem may be
// an integer, a byte, or an array or VLA of either; bit indices of the
// elements concatenate.
type EnumBitmapType struct {
	Elem     *Type
	Mappings *EnumMappings
}
