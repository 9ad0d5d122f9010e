package main

import (
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize/english"

	"groundstation/pkg/transport"
)

func runPorts(args []string, stdout io.Writer, stderr io.Writer, enumerate transport.EnumerateFunc) int {
	fs := flag.NewFlagSet("ports", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ports, err := enumerate()
	if err != nil {
		fmt.Fprintln(stderr, "failed to enumerate serial ports:", err)
		return 1
	}

	locator := transport.NewLocator(enumerate)
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PORT\tUSB ID\tSERIAL\tPRODUCT\t")
	matches := 0
	for _, p := range ports {
		id := "-"
		if p.IsUSB {
			id = fmt.Sprintf("%04x:%04x", p.VID, p.PID)
		}
		mark := ""
		if locator.Matches(p) {
			mark = "<- vehicle"
			matches++
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.Name, id, dash(p.SerialNumber), dash(p.Product), mark)
	}
	_ = tw.Flush()

	fmt.Fprintf(stdout, "%s, %s\n", english.Plural(len(ports), "port", ""), english.Plural(matches, "vehicle", ""))
	return 0
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
