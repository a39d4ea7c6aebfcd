package abi

// ABIVersion is the version stamped into new event descriptions. Existing
// record shapes never change size across versions; new fields are only
// added behind new tagged cases.
const ABIVersion = 1

// Level is the log level of an event description. The values follow the
// syslog severities.
type Level uint8

const (
	LevelEmerg Level = iota
	LevelAlert
	LevelCrit
	LevelError
	LevelWarning
	LevelNotice
	LevelInfo
	LevelDebug
)

var levelNames = [...]string{
	LevelEmerg:   "emerg",
	LevelAlert:   "alert",
	LevelCrit:    "crit",
	LevelError:   "error",
	LevelWarning: "warning",
	LevelNotice:  "notice",
	LevelInfo:    "info",
	LevelDebug:   "debug",
}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "unknown"
}

// EventDescription describes one event: where it comes from, what it is
// called, and the descriptors of its fields. Descriptions are immutable
// once constructed and live for the whole time their instrumentation is
// loaded.
//
// Version and StructSize are the ABI markers: a reader built against an
// older ABI skips fields beyond the StructSize it knows, so descriptions
// can grow without breaking old readers.
type EventDescription struct {
	Version    uint32
	StructSize uint32

	Provider string
	Name     string
	Level    Level

	Fields     []Field
	Attributes []Attribute

	// Variadic events accept additional self-describing fields after the
	// declared ones.
	Variadic bool
}

// DescStructSize is the serialized size of the fixed portion of an event
// description record.
const DescStructSize = 24

// EventOption configures optional parts of an event description.
type EventOption func(*EventDescription)

// WithAttributes attaches attributes to the description.
func WithAttributes(attrs ...Attribute) EventOption {
	return func(d *EventDescription) { d.Attributes = attrs }
}

// WithVariadic marks the description variadic.
func WithVariadic() EventOption {
	return func(d *EventDescription) { d.Variadic = true }
}

// NewEventDescription returns a description for provider:name with the
// given fields.
func NewEventDescription(provider, name string, level Level, fields []Field, opts ...EventOption) *EventDescription {
	d := &EventDescription{
		Version:    ABIVersion,
		StructSize: DescStructSize,
		Provider:   provider,
		Name:       name,
		Level:      level,
		Fields:     fields,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}
