// Copyright 2012, Fedor Indutny.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/indutny/candor/internal/embed"
)

// runRepl implements bare `candor`: reads lines, wraps the
// accumulated buffer into a synthetic top-level function (exactly
// what Isolate.Compile already treats any source text as), continues
// buffering on a syntax error, and evaluates and prints non-nil
// results — spec.md §6.3.
//
// This does not distinguish "syntax error because the buffer is
// genuinely malformed" from "syntax error because the statement isn't
// finished yet"; both re-prompt for another line. A real incremental
// parser could tell them apart by how far it got before failing; this
// one treats every compile failure as "not finished yet" until the
// buffer either compiles or the user gives up (Ctrl-D/Ctrl-C).
func runRepl() error {
	rl, err := readline.New("candor> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	iso := embed.NewIsolate()
	if _, err := installGlobals(iso); err != nil {
		return err
	}

	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if buf.Len() == 0 {
				continue
			}
			buf.Reset()
			rl.SetPrompt("candor> ")
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(line)

		prog, cerr := iso.Compile("repl", buf.String())
		if cerr != nil {
			rl.SetPrompt("...... ")
			continue
		}
		rl.SetPrompt("candor> ")
		buf.Reset()

		result, rerr := prog.Run()
		if rerr != nil {
			fmt.Fprintln(os.Stderr, rerr)
			continue
		}
		if !result.IsNil() {
			fmt.Println(result.ToString())
		}
	}
}
