// Command replaydump prints a captured replay bundle as JSON, or lists the
// bundles found under a directory.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"parkarena/broker/internal/replay"
)

func main() {
	path := flag.String("path", "", "replay bundle directory or manifest.json")
	list := flag.Bool("list", false, "list the bundles under -dir instead of dumping one")
	root := flag.String("dir", ".", "directory scanned by -list")
	flag.Parse()

	var err error
	if *list {
		err = listBundles(os.Stdout, *root)
	} else {
		if *path == "" {
			fmt.Fprintln(os.Stderr, "path flag is required")
			os.Exit(1)
		}
		err = dumpBundle(os.Stdout, *path)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
}

func dumpBundle(w io.Writer, path string) error {
	bundle, err := replay.LoadBundle(path)
	if err != nil {
		return err
	}
	//1.- Indent the output so it can be read directly or piped into jq.
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(bundle)
}

func listBundles(w io.Writer, root string) error {
	entries, err := replay.Catalog(root)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		fmt.Fprintf(w, "%s (schema %d)\n", entry.HeaderPath, entry.Header.SchemaVersion)
		fmt.Fprintf(w, "  seed: %d\n", entry.Header.Seed)
		if len(entry.Header.Arena) > 0 {
			keys := make([]string, 0, len(entry.Header.Arena))
			for key := range entry.Header.Arena {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			fmt.Fprintln(w, "  arena:")
			for _, key := range keys {
				fmt.Fprintf(w, "    %s: %.3f\n", key, entry.Header.Arena[key])
			}
		}
		if entry.ManifestPath != "" {
			fmt.Fprintf(w, "  manifest: %s\n", entry.ManifestPath)
		}
	}
	return nil
}
