package visit

import (
	"errors"
	"fmt"

	"github.com/tracekit/tracepoint/pkg/abi"
)

// UnknownPolicy decides what the engine does when it meets a value its
// description cannot place: a variant selector matching no declared option,
// or a descriptor/argument tag mismatch. Both indicate the description and
// the call site were generated inconsistently.
type UnknownPolicy uint8

const (
	// Fatal panics with a *ContractError. This is the default: broken
	// instrumentation surfaces immediately.
	Fatal UnknownPolicy = iota
	// Skip abandons the mismatched subtree and continues with its
	// siblings.
	Skip
)

// ContractError describes a violated ABI contract. It is the panic value of
// every fatal programmer error raised by the engine.
type ContractError struct {
	Msg string
}

func (e *ContractError) Error() string { return "abi contract: " + e.Msg }

// errSkip marks a subtree abandoned under the Skip policy. It never escapes
// the engine entry points.
var errSkip = errors.New("skip")

// Option configures a walk.
type Option func(*walker)

// WithUnknownPolicy selects the unknown-handling policy for the walk.
func WithUnknownPolicy(p UnknownPolicy) Option {
	return func(w *walker) { w.unknown = p }
}

// walker carries the visitor and policy of one walk. The three dispatch
// routines (static, gather, dynamic) hang off it.
type walker struct {
	vis     Visitor
	unknown UnknownPolicy
}

func newWalker(v Visitor, opts []Option) *walker {
	w := &walker{vis: v}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// fatalf raises a contract violation that the policy cannot soften:
// structural mistakes that make further decoding impossible.
func fatalf(format string, args ...any) {
	panic(&ContractError{Msg: fmt.Sprintf(format, args...)})
}

// violatef raises a policy-controlled contract violation.
func (w *walker) violatef(format string, args ...any) error {
	if w.unknown == Skip {
		return errSkip
	}
	fatalf(format, args...)
	return nil
}

// mismatch reports a descriptor/argument tag mismatch.
func (w *walker) mismatch(t *abi.Type, a *abi.Argument) error {
	return w.violatef("type %s paired with %s argument", t.Kind, a.Kind)
}

// sieve drops errSkip so containers continue with the next sibling, and
// passes real errors through.
func sieve(err error) error {
	if err == errSkip {
		return nil
	}
	return err
}
