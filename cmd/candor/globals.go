// Copyright 2012, Fedor Indutny.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/indutny/candor/internal/embed"
)

// installGlobals exports the three native bindings spec.md §6.3
// requires every top-level run to see on the global object: assert,
// print, getValue.
func installGlobals(iso *embed.Isolate) (embed.Value, error) {
	global, err := iso.Global()
	if err != nil {
		return embed.Value{}, err
	}

	print_, err := iso.FunctionFromBinding(builtinPrint)
	if err != nil {
		return embed.Value{}, err
	}
	if err := global.Set("print", print_); err != nil {
		return embed.Value{}, err
	}

	assert, err := iso.FunctionFromBinding(builtinAssert)
	if err != nil {
		return embed.Value{}, err
	}
	if err := global.Set("assert", assert); err != nil {
		return embed.Value{}, err
	}

	getValue, err := iso.FunctionFromBinding(builtinGetValue(iso))
	if err != nil {
		return embed.Value{}, err
	}
	if err := global.Set("getValue", getValue); err != nil {
		return embed.Value{}, err
	}

	return global, nil
}

// builtinPrint writes every argument's ToString form, space-separated,
// to stdout.
func builtinPrint(args []embed.Value) (embed.Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.ToString()
	}
	fmt.Println(strings.Join(parts, " "))
	if len(args) == 0 {
		return embed.Value{}, nil
	}
	return args[0], nil
}

// builtinAssert fails the current call with an error (propagated up
// through the interpreter as a Go error, aborting the run) when its
// first argument is falsy. The optional second argument is the
// failure message.
func builtinAssert(args []embed.Value) (embed.Value, error) {
	if len(args) == 0 || !args[0].ToBoolean() {
		msg := "assertion failed"
		if len(args) > 1 {
			msg = args[1].ToString()
		}
		return embed.Value{}, fmt.Errorf("candor: %s", msg)
	}
	return args[0], nil
}

// builtinGetValue looks a name up in the host process's environment,
// the CLI's stand-in for a config/fixture value source — scripts that
// need a value only the embedder can supply (per spec.md §6.1's
// native-callback boundary) call getValue("NAME") rather than reading
// an environment variable format the language itself has no syntax
// for.
func builtinGetValue(iso *embed.Isolate) embed.Binding {
	return func(args []embed.Value) (embed.Value, error) {
		if len(args) == 0 {
			return iso.Nil(), nil
		}
		name, ok := args[0].AsString()
		if !ok {
			return iso.Nil(), nil
		}
		v, ok := os.LookupEnv(name)
		if !ok {
			return iso.Nil(), nil
		}
		return iso.String(v)
	}
}
