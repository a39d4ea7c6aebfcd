package visit

import (
	"github.com/tracekit/tracepoint/pkg/abi"
)

// Dynamic decodes a self-describing value: the value carries its own
// compact type tag, so no descriptor is needed.
func Dynamic(v *abi.DynValue, vis Visitor, opts ...Option) error {
	return sieve(newWalker(vis, opts).dynamic(v))
}

// dynamic dispatches on the dynamic kind and recurses structurally the same
// way the static walker does.
func (w *walker) dynamic(v *abi.DynValue) error {
	switch v.Kind {
	case abi.DynNull:
		w.vis.Null()

	case abi.DynBool:
		w.vis.Bool(v.Bool)

	case abi.DynByte:
		w.vis.Byte(v.Byte)

	case abi.DynInteger:
		w.vis.Integer(IntegerValue{Bits: v.Bits, Size: v.Size, Signed: v.Signed})

	case abi.DynFloat:
		w.vis.Float(v.Float)

	case abi.DynString:
		w.vis.Str(v.Str)

	case abi.DynStruct:
		w.vis.BeforeStruct(len(v.Fields))
		for i := range v.Fields {
			f := &v.Fields[i]
			w.vis.BeforeField(f.Name)
			err := sieve(w.dynamic(&f.Value))
			w.vis.AfterField(f.Name)
			if err != nil {
				return err
			}
		}
		w.vis.AfterStruct()

	case abi.DynVLA:
		w.vis.BeforeVLA(len(v.Elems))
		for i := range v.Elems {
			w.vis.BeforeElem(i)
			err := sieve(w.dynamic(&v.Elems[i]))
			w.vis.AfterElem(i)
			if err != nil {
				return err
			}
		}
		w.vis.AfterVLA()

	case abi.DynStructVisitor:
		// Lazily-produced fields: the field count is not known up front,
		// and the producer may be unbounded, so each field decodes as it
		// is pushed.
		w.vis.BeforeStruct(-1)
		tr := &dynFieldWriter{w: w}
		if err := sieve(v.StructVisitor.Visit(tr, v.StructVisitor.Ctx)); err != nil {
			return err
		}
		w.vis.AfterStruct()

	case abi.DynVLAVisitor:
		w.vis.BeforeVLAVisitor()
		tr := &dynElemWriter{w: w}
		if err := sieve(v.VLAVisitor.Visit(tr, v.VLAVisitor.Ctx)); err != nil {
			return err
		}
		w.vis.AfterVLAVisitor()

	default:
		fatalf("unhandled dynamic kind %s", v.Kind)
	}
	return nil
}

// dynFieldWriter is the trampoline handed to a dynamic struct producer.
type dynFieldWriter struct {
	w *walker
}

func (t *dynFieldWriter) WriteField(name string, v abi.DynValue) error {
	t.w.vis.BeforeField(name)
	err := sieve(t.w.dynamic(&v))
	t.w.vis.AfterField(name)
	return err
}

// dynElemWriter is the trampoline handed to a dynamic VLA producer.
type dynElemWriter struct {
	w *walker
	i int
}

func (t *dynElemWriter) WriteElem(v abi.DynValue) error {
	t.w.vis.BeforeElem(t.i)
	err := sieve(t.w.dynamic(&v))
	t.w.vis.AfterElem(t.i)
	t.i++
	return err
}
