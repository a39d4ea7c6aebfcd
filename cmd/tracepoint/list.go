package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/tracekit/tracepoint/pkg/abi"
)

// ListCommand writes a table of the event descriptions in a stream file,
// or of the sample provider when no file is given.
func ListCommand(w io.Writer, args []string) error {
	descs, err := loadDescriptions(args)
	if err != nil {
		return err
	}

	var rows [][]string
	for _, desc := range descs {
		variadic := ""
		if desc.Variadic {
			variadic = "yes"
		}
		rows = append(rows, []string{
			desc.Provider,
			desc.Name,
			desc.Level.String(),
			fieldSummary(desc),
			variadic,
		})
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Provider", "Event", "Level", "Fields", "Variadic"})
	table.AppendBulk(rows)
	table.SetFooter([]string{"", "", "", "Total", fmt.Sprintf("%d", len(descs))})
	table.Render()
	return nil
}

// fieldSummary renders an event's field list as one line.
func fieldSummary(desc *abi.EventDescription) string {
	parts := make([]string, 0, len(desc.Fields))
	for _, f := range desc.Fields {
		parts = append(parts, f.Name+" "+typeString(f.Type))
	}
	s := strings.Join(parts, ", ")
	if desc.Variadic {
		s += ", ..."
	}
	return s
}
