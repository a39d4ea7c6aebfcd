package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/tracekit/tracepoint/pkg/abi"
)

// DumpCommand writes every event description field by field, with nested
// descriptors indented under their parents.
func DumpCommand(w io.Writer, args []string) error {
	descs, err := loadDescriptions(args)
	if err != nil {
		return err
	}
	for i, desc := range descs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		dumpDescription(w, desc)
	}
	return nil
}

func dumpDescription(w io.Writer, desc *abi.EventDescription) {
	fmt.Fprintf(w, "%s:%s level=%s", desc.Provider, desc.Name, desc.Level)
	if desc.Variadic {
		fmt.Fprintf(w, " variadic")
	}
	fmt.Fprintln(w)
	dumpAttributes(w, 1, desc.Attributes)
	for _, f := range desc.Fields {
		dumpField(w, 1, f.Name, f.Type)
	}
}

func dumpField(w io.Writer, depth int, name string, t *abi.Type) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(w, "%s%s: %s\n", indent, name, typeString(t))
	dumpAttributes(w, depth+1, t.Attributes)

	switch t.Kind {
	case abi.KindStruct, abi.KindGatherStruct:
		for _, f := range t.Struct.Fields {
			dumpField(w, depth+1, f.Name, f.Type)
		}
	case abi.KindArray, abi.KindGatherArray:
		dumpField(w, depth+1, "elem", t.Array.Elem)
	case abi.KindVLA, abi.KindGatherVLA:
		if t.VLA.Length != nil {
			dumpField(w, depth+1, "length", t.VLA.Length)
		}
		dumpField(w, depth+1, "elem", t.VLA.Elem)
	case abi.KindVariant:
		dumpField(w, depth+1, "selector", t.Variant.Selector)
		for _, opt := range t.Variant.Options {
			dumpField(w, depth+1, fmt.Sprintf("case [%d, %d]", opt.Begin, opt.End), opt.Type)
		}
	case abi.KindOptional:
		dumpField(w, depth+1, "elem", t.Optional.Elem)
	case abi.KindEnum, abi.KindGatherEnum:
		dumpField(w, depth+1, "elem", t.Enum.Elem)
		dumpMappings(w, depth+1, t.Enum.Mappings)
	case abi.KindEnumBitmap:
		dumpField(w, depth+1, "elem", t.Bitmap.Elem)
		dumpMappings(w, depth+1, t.Bitmap.Mappings)
	}
}

func dumpAttributes(w io.Writer, depth int, attrs []abi.Attribute) {
	indent := strings.Repeat("  ", depth)
	for _, a := range attrs {
		fmt.Fprintf(w, "%sattr %s = %s\n", indent, a.Key, a.Value)
	}
}

func dumpMappings(w io.Writer, depth int, m *abi.EnumMappings) {
	if m == nil {
		return
	}
	indent := strings.Repeat("  ", depth)
	for _, mapping := range m.Mappings {
		fmt.Fprintf(w, "%slabel [%d, %d] = %s\n", indent, mapping.Begin, mapping.End, mapping.Label)
	}
}

// typeString returns a one-line summary of a descriptor.
func typeString(t *abi.Type) string {
	var s string
	switch t.Kind {
	case abi.KindNull:
		s = "null"
	case abi.KindBool, abi.KindGatherBool:
		s = fmt.Sprintf("bool%d", t.Bool.Size*8)
	case abi.KindByte, abi.KindGatherByte:
		s = "byte"
	case abi.KindInteger, abi.KindGatherInteger:
		s = integerString(t.Integer)
	case abi.KindFloat, abi.KindGatherFloat:
		s = fmt.Sprintf("f%d%s", t.Float.Size*8, orderSuffix(t.Float.Order))
	case abi.KindString, abi.KindGatherString:
		s = "string"
		if t.String.UnitSize > 1 {
			s = fmt.Sprintf("string%d%s", t.String.UnitSize*8, orderSuffix(t.String.Order))
		}
	case abi.KindStruct, abi.KindGatherStruct:
		s = fmt.Sprintf("struct (%d fields)", len(t.Struct.Fields))
	case abi.KindArray, abi.KindGatherArray:
		s = fmt.Sprintf("array[%d]", t.Array.Length)
	case abi.KindVLA, abi.KindGatherVLA:
		s = "vla"
	case abi.KindVariant:
		s = fmt.Sprintf("variant (%d cases)", len(t.Variant.Options))
	case abi.KindOptional:
		s = "optional"
	case abi.KindEnum, abi.KindGatherEnum:
		s = "enum"
	case abi.KindEnumBitmap:
		s = "bitmap"
	case abi.KindDynamic:
		s = "dynamic"
	default:
		s = t.Kind.String()
	}

	if t.Kind.IsGather() {
		s = "gather " + s + layoutString(t.Gather)
	}
	return s
}

func integerString(it *abi.IntegerType) string {
	sign := "u"
	if it.Signed {
		sign = "s"
	}
	return fmt.Sprintf("%s%d%s", sign, it.Size*8, orderSuffix(it.Order))
}

func orderSuffix(o abi.ByteOrder) string {
	switch o {
	case abi.LittleEndian:
		return "le"
	case abi.BigEndian:
		return "be"
	}
	return ""
}

func layoutString(l *abi.GatherLayout) string {
	if l == nil {
		return ""
	}
	s := fmt.Sprintf(" @%d", l.Offset)
	if l.Access == abi.ThroughPointer {
		s = fmt.Sprintf(" @*%d", l.Offset)
	}
	if l.OffsetBits != 0 || l.LenBits != 0 {
		s += fmt.Sprintf(" bits[%d:%d]", l.OffsetBits, l.LenBits)
	}
	return s
}
