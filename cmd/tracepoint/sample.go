package main

import (
	"fmt"
	"io"
	"os"

	"github.com/tracekit/tracepoint/pkg/abi"
	"github.com/tracekit/tracepoint/pkg/wire"
)

// The built-in sample provider. It exercises each descriptor family, so
// list/dump/demo have something to show without a stream file.

// statusLabels maps HTTP status codes to their classes.
var statusLabels = abi.Mappings(
	abi.MapRange(200, 299, "ok"),
	abi.MapRange(300, 399, "redirect"),
	abi.MapRange(400, 499, "client-error"),
	abi.MapRange(500, 599, "server-error"),
)

// permLabels maps permission bit indices.
var permLabels = abi.Mappings(
	abi.MapValue(0, "read"),
	abi.MapValue(1, "write"),
	abi.MapValue(2, "exec"),
)

// taskStructSize is the in-memory size of the sample task struct read by
// the thread_switch event: u32 pid, s32 prio, char comm[8].
const taskStructSize = 16

func requestDesc() *abi.EventDescription {
	return abi.NewEventDescription("demo", "request", abi.LevelInfo, []abi.Field{
		abi.F("method", abi.Str()),
		abi.F("status", abi.EnumOf(abi.U32(), statusLabels)),
		abi.F("bytes", abi.U64()),
		abi.F("perms", abi.BitmapOf(abi.U8(), permLabels)),
	}, abi.WithAttributes(abi.StringAttr("subsystem", "http")))
}

func threadSwitchDesc() *abi.EventDescription {
	task := abi.GatherStructOf(taskStructSize, abi.GatherLayout{},
		abi.F("pid", abi.GatherU32(0)),
		abi.F("prio", abi.GatherS32(4)),
		abi.F("comm", abi.GatherStringT(abi.GatherLayout{Offset: 8})),
	)
	return abi.NewEventDescription("demo", "thread_switch", abi.LevelDebug, []abi.Field{
		abi.F("task", task),
	})
}

func annotationDesc() *abi.EventDescription {
	return abi.NewEventDescription("demo", "annotation", abi.LevelNotice, []abi.Field{
		abi.F("key", abi.Str()),
		abi.F("value", abi.DynamicT()),
	})
}

func metricsDesc() *abi.EventDescription {
	return abi.NewEventDescription("demo", "metrics", abi.LevelInfo, []abi.Field{
		abi.F("load", abi.F64()),
	}, abi.WithVariadic())
}

func sampleDescriptions() []*abi.EventDescription {
	return []*abi.EventDescription{
		requestDesc(),
		threadSwitchDesc(),
		annotationDesc(),
		metricsDesc(),
	}
}

// loadDescriptions reads event descriptions from the stream file named by
// args, or returns the sample provider's when no file is given.
func loadDescriptions(args []string) ([]*abi.EventDescription, error) {
	switch len(args) {
	case 0:
		return sampleDescriptions(), nil
	case 1:
	default:
		return nil, fmt.Errorf("expected at most 1 argument, got %d", len(args))
	}

	file, err := os.Open(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	var descs []*abi.EventDescription
	dec := wire.NewDecoder(file)
	for {
		desc, err := dec.Decode()
		if err == io.EOF {
			return descs, nil
		} else if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", args[0], err)
		}
		descs = append(descs, desc)
	}
}
