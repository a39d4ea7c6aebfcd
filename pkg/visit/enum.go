package visit

import (
	"github.com/tracekit/tracepoint/pkg/abi"
)

// rangeContains reports whether the inclusive range [begin, end] contains
// the decoded integer, respecting its signedness.
func rangeContains(begin, end int64, v IntegerValue) bool {
	if v.Signed {
		s := v.Int64()
		return begin <= s && s <= end
	}
	u := v.Uint64()
	if end < 0 {
		return false
	}
	lo := uint64(0)
	if begin > 0 {
		lo = uint64(begin)
	}
	return lo <= u && u <= uint64(end)
}

// labels returns every label whose range contains v, in table order. An
// empty result is the explicit "no label" marker, never an error.
func labels(m *abi.EnumMappings, v IntegerValue) []string {
	var out []string
	for _, mapping := range m.Mappings {
		if rangeContains(mapping.Begin, mapping.End, v) {
			out = append(out, mapping.Label)
		}
	}
	return out
}

// bitmapLabels tests each bit of the words (concatenated bit-index-wise)
// against each mapping range and returns every label whose range covers a
// set bit.
func bitmapLabels(m *abi.EnumMappings, words []IntegerValue) []string {
	var setBits []int64
	base := int64(0)
	for _, w := range words {
		bits := int64(w.Size) * 8
		for j := int64(0); j < bits; j++ {
			if w.Bits>>uint(j)&1 == 1 {
				setBits = append(setBits, base+j)
			}
		}
		base += bits
	}
	var out []string
	for _, mapping := range m.Mappings {
		for _, bit := range setBits {
			if mapping.Begin <= bit && bit <= mapping.End {
				out = append(out, mapping.Label)
				break
			}
		}
	}
	return out
}

// intCapture collects the integer leaves of a sub-walk. It is how the
// engine extracts a selector or enum value before replaying the walk
// against the real visitor.
type intCapture struct {
	NopVisitor
	words []IntegerValue
}

func (c *intCapture) Integer(v IntegerValue) { c.words = append(c.words, v) }

func (c *intCapture) Byte(b byte) {
	c.words = append(c.words, IntegerValue{Bits: uint64(b), Size: 1})
}

func (c *intCapture) Bool(b bool) {
	var bits uint64
	if b {
		bits = 1
	}
	c.words = append(c.words, IntegerValue{Bits: bits, Size: 1})
}

// one returns the single captured integer.
func (c *intCapture) one() IntegerValue {
	if len(c.words) != 1 {
		fatalf("value does not decode to a single integer")
	}
	return c.words[0]
}

// captureStaticInt decodes the descriptor/argument pair to a single integer
// without driving the caller's visitor. A skipped capture walk propagates
// errSkip so the caller abandons the whole enum/variant subtree.
func (w *walker) captureStaticInt(t *abi.Type, a *abi.Argument) (IntegerValue, error) {
	c := &intCapture{}
	if err := (&walker{vis: c, unknown: w.unknown}).static(t, a); err != nil {
		return IntegerValue{}, err
	}
	return c.one(), nil
}

// captureStaticBits decodes the descriptor/argument pair to its integer
// words, in order.
func (w *walker) captureStaticBits(t *abi.Type, a *abi.Argument) ([]IntegerValue, error) {
	c := &intCapture{}
	if err := (&walker{vis: c, unknown: w.unknown}).static(t, a); err != nil {
		return nil, err
	}
	return c.words, nil
}

// captureGatherInt decodes a gather descriptor to a single integer and the
// bytes it consumed.
func (w *walker) captureGatherInt(t *abi.Type, mem abi.Memory, base uint64) (IntegerValue, uint64, error) {
	c := &intCapture{}
	cw := &walker{vis: &resolveCapture{intCapture: c, resolve: w.vis}, unknown: w.unknown}
	consumed, err := cw.gather(t, mem, base)
	if err != nil {
		return IntegerValue{}, 0, err
	}
	return c.one(), consumed, nil
}

// resolveCapture is an intCapture that still delegates address resolution
// to the caller's visitor, so capture walks of foreign address spaces read
// the same memory the replay will.
type resolveCapture struct {
	*intCapture
	resolve Visitor
}

func (c *resolveCapture) ResolveAddress(addr uint64) uint64 {
	return c.resolve.ResolveAddress(addr)
}
