package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/tracekit/tracepoint/pkg/wire"
)

// ExportCommand writes the sample provider's event descriptions as a
// stream file, so list and dump have something to decode.
func ExportCommand(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("expected 1 argument, got %d", len(args))
	}

	file, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	defer file.Close()

	bw := bufio.NewWriter(file)
	enc := wire.NewEncoder(bw)
	for _, desc := range sampleDescriptions() {
		if err := enc.Encode(desc); err != nil {
			return fmt.Errorf("failed to encode %s:%s: %w", desc.Provider, desc.Name, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return file.Close()
}
