// Copyright 2012, Fedor Indutny.

// The candorobj command is a small diagnostics tool [EXPANSION]: it
// runs a Candor script to completion and then reports on the
// resulting heap — occupancy, a histogram of live objects by tag,
// and (with -graph) a Graphviz object graph — the same job the
// teacher's cmd/viewcore does for a process's core dump, aimed at
// this runtime's own managed heap instead of an inferior process's
// memory image.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/indutny/candor/internal/embed"
	"github.com/indutny/candor/internal/heap"
)

func main() {
	graphPath := flag.String("graph", "", "write a Graphviz object graph to this file")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		usage()
		os.Exit(2)
	}

	src, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	iso := embed.NewIsolate()
	prog, err := iso.Compile(args[0], string(src))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if _, err := prog.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "runtime error:", err)
	}

	printOverview(iso)
	printHistogram(iso)

	if *graphPath != "" {
		if err := writeGraph(iso, *graphPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "object graph written to %s\n", *graphPath)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage:

	candorobj [-graph out.dot] <file>

Runs a Candor script to completion, then prints heap occupancy and a
histogram of live objects by tag. With -graph, also writes a Graphviz
.dot object graph of the final heap state.`)
	flag.PrintDefaults()
}

func printOverview(iso *embed.Isolate) {
	fmt.Println(iso.Heap().String())
}

func printHistogram(iso *embed.Isolate) {
	counts := map[heap.Tag]int{}
	bytes := map[heap.Tag]int64{}
	iso.Heap().Walk(func(a heap.Address, tag heap.Tag, size int64) {
		counts[tag]++
		bytes[tag] += size
	})

	tags := make([]heap.Tag, 0, len(counts))
	for t := range counts {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return bytes[tags[i]] > bytes[tags[j]] })

	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "TAG\tCOUNT\tBYTES")
	for _, t := range tags {
		fmt.Fprintf(w, "%s\t%d\t%d\n", t, counts[t], bytes[t])
	}
	w.Flush()
}
