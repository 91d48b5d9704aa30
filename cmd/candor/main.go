// Copyright 2012, Fedor Indutny.

// The candor command compiles and runs a Candor source file, or
// drops into a line-at-a-time REPL when given no file — spec.md
// §6.3's CLI surface. Subcommand dispatch follows the teacher's own
// cmd/viewcore/main.go shape (a root command with flag-parsed global
// options), rebuilt on github.com/spf13/cobra since this binary has
// only the one implicit mode rather than viewcore's many named
// subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/indutny/candor/internal/embed"
)

func main() {
	var traceOnError bool

	root := &cobra.Command{
		Use:          "candor [file]",
		Short:        "compile and run a Candor script",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runFile(args[0], traceOnError)
			}
			return runRepl()
		},
	}
	root.Flags().BoolVar(&traceOnError, "trace", false, "print a stack trace on an uncaught runtime error")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runFile implements `candor <file>`: compile the file, call the
// compiled top-level function with the global object that exports
// assert/print/getValue, exit with the integer value of its result.
func runFile(path string, traceOnError bool) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	iso := embed.NewIsolate()
	global, err := installGlobals(iso)
	if err != nil {
		return err
	}

	prog, err := iso.Compile(path, string(src))
	if err != nil {
		// Exit code 1 on compile error, per spec.md §6.3.
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	result, err := prog.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if traceOnError {
			printStackTrace(iso)
		}
		os.Exit(1)
	}
	_ = global

	os.Exit(exitCode(result))
	return nil
}

// exitCode truncates a Value's numeric result to the host's
// exit-code width; a non-numeric result exits 0.
func exitCode(v embed.Value) int {
	n, ok := v.AsNumber()
	if !ok {
		return 0
	}
	return int(int32(int64(n)))
}

func printStackTrace(iso *embed.Isolate) {
	trace, err := iso.StackTrace()
	if err != nil {
		return
	}
	n := trace.Length()
	for i := int64(0); i < n; i++ {
		frame, ok := trace.GetIndex(i)
		if !ok {
			continue
		}
		fmt.Fprintln(os.Stderr, "\tat", frame.ToString())
	}
}
