// Copyright 2012, Fedor Indutny.

package main

import (
	"fmt"
	"os"

	"github.com/indutny/candor/internal/embed"
	"github.com/indutny/candor/internal/heap"
)

// writeGraph dumps every live object and its outgoing pointer edges
// as a Graphviz digraph, grounded on the teacher's own objgraph
// command (cmd/viewcore/objref.go), which walks a core-file object
// graph into a similar node/edge tree; this one walks the managed
// heap directly instead of a core dump.
func writeGraph(iso *embed.Isolate, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintln(f, "digraph heap {")
	fmt.Fprintln(f, `  node [shape=box, fontsize=10];`)

	hp := iso.Heap()
	hp.Walk(func(a heap.Address, tag heap.Tag, size int64) {
		fmt.Fprintf(f, "  %q [label=%q];\n", nodeName(a), fmt.Sprintf("%s\\n%d bytes", tag, size))
		for _, e := range hp.Edges(a) {
			if !e.To.IsPointer() {
				continue
			}
			fmt.Fprintf(f, "  %q -> %q [label=%q];\n", nodeName(a), nodeName(e.To.Addr()), e.Label)
		}
	})

	fmt.Fprintln(f, "}")
	return nil
}

func nodeName(a heap.Address) string {
	return fmt.Sprintf("obj_%x", uintptr(a))
}
