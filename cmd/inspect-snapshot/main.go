// inspect-snapshot reads one venue's active_instruments.snapshot.json and
// pretty-prints it. It is an operability tool, not part of the data plane:
// it never writes anything, so it is always safe to run against a live
// OUTPUT_DIR.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/rickgao/marketdata-harvester/internal/model"
	"github.com/rickgao/marketdata-harvester/internal/snapshot"
)

func main() {
	root := flag.String("root", os.Getenv("OUTPUT_DIR"), "harvester output root (defaults to $OUTPUT_DIR)")
	venueName := flag.String("venue", "", "venue name to inspect (required)")
	asJSON := flag.Bool("json", false, "print the raw ActiveSet as JSON instead of a table")
	flag.Parse()

	if *root == "" {
		fmt.Fprintln(os.Stderr, "inspect-snapshot: -root or $OUTPUT_DIR is required")
		os.Exit(1)
	}
	if *venueName == "" {
		fmt.Fprintln(os.Stderr, "inspect-snapshot: -venue is required")
		os.Exit(1)
	}

	set, err := snapshot.Read(*root, *venueName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "inspect-snapshot: %v\n", err)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(set); err != nil {
			fmt.Fprintf(os.Stderr, "inspect-snapshot: encode: %v\n", err)
			os.Exit(1)
		}
		return
	}

	printTable(set)
}

func printTable(set model.ActiveSet) {
	fmt.Printf("venue=%s asof_ms=%d seq=%d count=%d\n\n", set.Venue, set.AsOfMs, set.Seq, set.Count)

	keys := make([]string, 0, len(set.Instruments))
	for k := range set.Instruments {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("%-40s %-20s %-14s %s\n", "instrument_key", "market_id", "expiration_ms", "title")
	for _, k := range keys {
		inst := set.Instruments[k]
		fmt.Printf("%-40s %-20s %-14d %s\n", k, inst.MarketID, inst.ExpirationMs, inst.Title)
	}
}
