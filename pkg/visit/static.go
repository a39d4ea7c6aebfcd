package visit

import (
	"github.com/tracekit/tracepoint/pkg/abi"
)

// Event decodes one event occurrence: the description's fields paired with
// the argument vector built at the call site. The call sequence is
// BeforeEvent, BeforeStaticFields, then one BeforeField/value/AfterField
// group per field, AfterStaticFields, AfterEvent.
//
// A field count mismatch between description and arguments is a fatal
// contract violation.
func Event(desc *abi.EventDescription, args []abi.Argument, v Visitor, opts ...Option) error {
	return event(desc, args, nil, v, opts)
}

// EventVariadic decodes a variadic event occurrence: the declared fields
// plus the self-describing extra fields of this call.
func EventVariadic(desc *abi.EventDescription, args []abi.Argument, extra []abi.DynField, v Visitor, opts ...Option) error {
	if !desc.Variadic {
		fatalf("variadic call of non-variadic event %s:%s", desc.Provider, desc.Name)
	}
	return event(desc, args, extra, v, opts)
}

func event(desc *abi.EventDescription, args []abi.Argument, extra []abi.DynField, v Visitor, opts []Option) error {
	if len(args) != len(desc.Fields) {
		fatalf("event %s:%s has %d fields, got %d arguments",
			desc.Provider, desc.Name, len(desc.Fields), len(args))
	}
	w := newWalker(v, opts)

	w.vis.BeforeEvent(desc)
	w.vis.BeforeStaticFields(len(desc.Fields))
	for i := range desc.Fields {
		f := &desc.Fields[i]
		w.vis.BeforeField(f.Name)
		err := sieve(w.static(f.Type, &args[i]))
		w.vis.AfterField(f.Name)
		if err != nil {
			return err
		}
	}
	w.vis.AfterStaticFields()

	if desc.Variadic {
		w.vis.BeforeVariadicFields(len(extra))
		for i := range extra {
			f := &extra[i]
			w.vis.BeforeField(f.Name)
			err := sieve(w.dynamic(&f.Value))
			w.vis.AfterField(f.Name)
			if err != nil {
				return err
			}
		}
		w.vis.AfterVariadicFields()
	}

	w.vis.AfterEvent(desc)
	return nil
}

// Static decodes a single descriptor/argument pair.
func Static(t *abi.Type, arg *abi.Argument, v Visitor, opts ...Option) error {
	return sieve(newWalker(v, opts).static(t, arg))
}

// static dispatches on the descriptor kind and recurses into children.
func (w *walker) static(t *abi.Type, a *abi.Argument) error {
	if t.Kind.IsGather() {
		// Gather fields of a static event carry their base address in the
		// argument; the walk continues out of memory from there.
		if a.Kind != abi.ArgGather {
			return w.mismatch(t, a)
		}
		_, err := w.gather(t, a.Mem, a.Addr)
		return err
	}

	switch t.Kind {
	case abi.KindNull:
		if a.Kind != abi.ArgNull {
			return w.mismatch(t, a)
		}
		w.vis.Null()

	case abi.KindBool:
		if a.Kind != abi.ArgBool {
			return w.mismatch(t, a)
		}
		w.vis.Bool(a.Bool)

	case abi.KindByte:
		if a.Kind != abi.ArgByte {
			return w.mismatch(t, a)
		}
		w.vis.Byte(a.Byte)

	case abi.KindInteger:
		if a.Kind != abi.ArgInteger {
			return w.mismatch(t, a)
		}
		w.vis.Integer(IntegerValue{Bits: a.Bits, Size: t.Integer.Size, Signed: t.Integer.Signed})

	case abi.KindFloat:
		if a.Kind != abi.ArgFloat {
			return w.mismatch(t, a)
		}
		w.vis.Float(a.Float)

	case abi.KindString:
		if a.Kind != abi.ArgString {
			return w.mismatch(t, a)
		}
		w.vis.Str(a.Str)

	case abi.KindStruct:
		if a.Kind != abi.ArgStruct {
			return w.mismatch(t, a)
		}
		st := t.Struct
		if len(a.Children) != len(st.Fields) {
			fatalf("struct has %d fields, argument has %d", len(st.Fields), len(a.Children))
		}
		w.vis.BeforeStruct(len(st.Fields))
		for i := range st.Fields {
			f := &st.Fields[i]
			w.vis.BeforeField(f.Name)
			err := sieve(w.static(f.Type, &a.Children[i]))
			w.vis.AfterField(f.Name)
			if err != nil {
				return err
			}
		}
		w.vis.AfterStruct()

	case abi.KindArray:
		if a.Kind != abi.ArgArray {
			return w.mismatch(t, a)
		}
		at := t.Array
		if uint32(len(a.Children)) != at.Length {
			fatalf("array has length %d, argument has %d elements", at.Length, len(a.Children))
		}
		w.vis.BeforeArray(len(a.Children))
		if err := w.staticElems(at.Elem, a.Children); err != nil {
			return err
		}
		w.vis.AfterArray()

	case abi.KindVLA:
		switch a.Kind {
		case abi.ArgVLA:
			w.vis.BeforeVLA(len(a.Children))
			if err := w.staticElems(t.VLA.Elem, a.Children); err != nil {
				return err
			}
			w.vis.AfterVLA()
		case abi.ArgVLAVisitor:
			// Lazily-produced elements: the producer pushes through the
			// trampoline and each element is decoded as it arrives,
			// without a staging buffer.
			w.vis.BeforeVLAVisitor()
			tr := &staticElemWriter{w: w, elem: t.VLA.Elem}
			if err := sieve(a.VLAVisitor.Visit(tr, a.VLAVisitor.Ctx)); err != nil {
				return err
			}
			w.vis.AfterVLAVisitor()
		default:
			return w.mismatch(t, a)
		}

	case abi.KindVariant:
		return w.staticVariant(t, a)

	case abi.KindOptional:
		if a.Kind != abi.ArgOptional {
			return w.mismatch(t, a)
		}
		present := len(a.Children) > 0
		w.vis.BeforeOptional(present)
		if present {
			if err := sieve(w.static(t.Optional.Elem, &a.Children[0])); err != nil {
				return err
			}
		}
		w.vis.AfterOptional(present)

	case abi.KindEnum:
		// The argument is the element's: an enum widens to its integer
		// element.
		et := t.Enum
		val, err := w.captureStaticInt(et.Elem, a)
		if err != nil {
			return err
		}
		w.vis.BeforeEnum(labels(et.Mappings, val))
		if err := sieve(w.static(et.Elem, a)); err != nil {
			return err
		}
		w.vis.AfterEnum()

	case abi.KindEnumBitmap:
		bt := t.Bitmap
		words, err := w.captureStaticBits(bt.Elem, a)
		if err != nil {
			return err
		}
		w.vis.BeforeEnumBitmap(bitmapLabels(bt.Mappings, words))
		if err := sieve(w.static(bt.Elem, a)); err != nil {
			return err
		}
		w.vis.AfterEnumBitmap()

	case abi.KindDynamic:
		if a.Kind != abi.ArgDynamic {
			return w.mismatch(t, a)
		}
		return w.dynamic(a.Dynamic)

	default:
		fatalf("unhandled type kind %s", t.Kind)
	}
	return nil
}

// staticElems walks the elements of an array or VLA.
func (w *walker) staticElems(elem *abi.Type, elems []abi.Argument) error {
	for i := range elems {
		w.vis.BeforeElem(i)
		err := sieve(w.static(elem, &elems[i]))
		w.vis.AfterElem(i)
		if err != nil {
			return err
		}
	}
	return nil
}

// staticVariant decodes the selector, scans the options in declaration
// order and recurses into the first containing match. An unmatched selector
// is a contract violation (policy-controlled).
func (w *walker) staticVariant(t *abi.Type, a *abi.Argument) error {
	if a.Kind != abi.ArgVariant {
		return w.mismatch(t, a)
	}
	vt := t.Variant
	sel, err := w.captureStaticInt(vt.Selector, &a.Variant.Selector)
	if err != nil {
		return err
	}
	opt := findOption(vt.Options, sel)
	if opt == nil {
		return w.violatef("variant selector %d matches no option", sel.Int64())
	}
	w.vis.BeforeVariant()
	w.vis.VariantSelector(sel)
	err = sieve(w.static(opt.Type, &a.Variant.Value))
	w.vis.AfterVariant()
	return err
}

// findOption returns the first option whose range contains the selector, or
// nil.
func findOption(options []abi.VariantOption, sel IntegerValue) *abi.VariantOption {
	for i := range options {
		if rangeContains(options[i].Begin, options[i].End, sel) {
			return &options[i]
		}
	}
	return nil
}

// staticElemWriter is the trampoline handed to a VLA producer: each pushed
// element recurses into the static walker immediately.
type staticElemWriter struct {
	w    *walker
	elem *abi.Type
	i    int
}

func (t *staticElemWriter) WriteElem(arg abi.Argument) error {
	t.w.vis.BeforeElem(t.i)
	err := sieve(t.w.static(t.elem, &arg))
	t.w.vis.AfterElem(t.i)
	t.i++
	return err
}
