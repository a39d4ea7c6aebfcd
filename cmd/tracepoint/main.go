package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/peterbourgon/ff/v3"
)

// main is the entry point for the tracepoint command line tool.
func main() {
	if err := realMain(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// realMain is a helper function for main that returns an error.
func realMain(args []string) error {
	fs := flag.NewFlagSet("tracepoint", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tracepoint [flags] <command> [args]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  - list [stream.tpd]: List event descriptions in a table.\n")
		fmt.Fprintf(os.Stderr, "  - dump [stream.tpd]: Dump event descriptions field by field.\n")
		fmt.Fprintf(os.Stderr, "  - export <stream.tpd>: Write the sample provider as a stream file.\n")
		fmt.Fprintf(os.Stderr, "  - demo: Register the sample provider and emit sample events.\n\n")
		fmt.Fprintf(os.Stderr, "Without a stream file, list and dump use the built-in sample provider.\n\n")
		fmt.Fprintf(os.Stderr, "Flags (also settable via TRACEPOINT_* env vars):\n")
		fs.PrintDefaults()
	}

	var (
		configF  = fs.String("config", "", "path to a yaml config file")
		verboseF = fs.Bool("verbose", false, "enable debug logging")
	)

	// Flags may also come from the environment, e.g. TRACEPOINT_VERBOSE=true.
	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix("TRACEPOINT")); err != nil {
		return err
	}

	cfg, err := loadConfig(*configF)
	if err != nil {
		return err
	}
	if *verboseF {
		cfg.Log.Level = "debug"
	}

	switch cmd := fs.Arg(0); cmd {
	case "list":
		return ListCommand(os.Stdout, fs.Args()[1:])
	case "dump":
		return DumpCommand(os.Stdout, fs.Args()[1:])
	case "export":
		return ExportCommand(fs.Args()[1:])
	case "demo":
		log, err := cfg.Logger()
		if err != nil {
			return err
		}
		defer log.Sync()
		return DemoCommand(log)
	case "":
		fs.Usage()
		return errors.New("missing command")
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}
