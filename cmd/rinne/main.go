// Command rinne is the CLI entry point wiring init, save, restore, pick,
// export, import, recompose, tidy, verify, history, note, space and
// cache-meta-gc onto the core packages.
package main

import (
	"fmt"
	"os"
)

var commands = map[string]func(args []string) error{
	"init":          runInit,
	"save":          runSave,
	"restore":       runRestore,
	"pick":          runPick,
	"export":        runExport,
	"import":        runImport,
	"recompose":     runRecompose,
	"tidy":          runTidy,
	"verify":        runVerify,
	"history":       runHistory,
	"note":          runNote,
	"space":         runSpace,
	"cache-meta-gc": runCacheMetaGC,
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	name := os.Args[1]
	if name == "-h" || name == "--help" {
		printUsage()
		return
	}

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "rinne: unknown command %q\n\n", name)
		printUsage()
		os.Exit(2)
	}

	if err := cmd(os.Args[2:]); err != nil {
		fail(name, err)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: rinne <command> [flags]

Commands:
  init            create the repository skeleton and default space
  save            capture the working tree into a new snapshot
  restore         materialise a snapshot (whole tree) into a destination
  pick            materialise one file or sub-path from a snapshot
  export          materialise several selectors from a snapshot
  import          save an external directory as if it were the working tree
  recompose       build a new snapshot by merging existing ones (leftmost wins)
  tidy            delete snapshots by selector, optionally followed by gc
  verify          cross-check snapshot meta against its payload or manifest
  history         list snapshots in a space
  note            print or rewrite a snapshot's note.md
  space           list, create, or switch the current space
  cache-meta-gc   garbage-collect stale FileMetaCache rows

Run 'rinne <command> -h' for flags specific to a command.
`)
}
