package abi

import (
	"fmt"
	"strconv"
)

// AttrKind identifies the scalar carried by an attribute value.
type AttrKind uint8

const (
	AttrBool AttrKind = iota
	AttrU64
	AttrS64
	AttrFloat
	AttrString
)

// AttrValue is a small tagged scalar used as attribute payload. Attributes
// are typed by the same scalar set as the rest of the ABI but never carry
// compound values.
type AttrValue struct {
	Kind  AttrKind
	Bool  bool
	U64   uint64
	S64   int64
	Float float64
	Str   string
}

func (v AttrValue) String() string {
	switch v.Kind {
	case AttrBool:
		return strconv.FormatBool(v.Bool)
	case AttrU64:
		return strconv.FormatUint(v.U64, 10)
	case AttrS64:
		return strconv.FormatInt(v.S64, 10)
	case AttrFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case AttrString:
		return v.Str
	}
	return fmt.Sprintf("attr(%d)", v.Kind)
}

// Attribute is one key/value metadata entry. Every descriptor node and
// event description owns an attribute list.
type Attribute struct {
	Key   string
	Value AttrValue
}

// BoolAttr returns a boolean attribute.
func BoolAttr(key string, v bool) Attribute {
	return Attribute{Key: key, Value: AttrValue{Kind: AttrBool, Bool: v}}
}

// U64Attr returns an unsigned integer attribute.
func U64Attr(key string, v uint64) Attribute {
	return Attribute{Key: key, Value: AttrValue{Kind: AttrU64, U64: v}}
}

// S64Attr returns a signed integer attribute.
func S64Attr(key string, v int64) Attribute {
	return Attribute{Key: key, Value: AttrValue{Kind: AttrS64, S64: v}}
}

// FloatAttr returns a float attribute.
func FloatAttr(key string, v float64) Attribute {
	return Attribute{Key: key, Value: AttrValue{Kind: AttrFloat, Float: v}}
}

// StringAttr returns a string attribute.
func StringAttr(key, v string) Attribute {
	return Attribute{Key: key, Value: AttrValue{Kind: AttrString, Str: v}}
}
