// henkan - Japanese kana-kanji conversion sessions in the terminal
//
//	henkan repl               Type romaji and convert interactively
//	henkan config show        Print the effective configuration
//	henkan config init        Write a default configuration file
//	henkan stats              Show persisted usage counters
//	henkan stats snapshots    List stored configuration snapshots
package main

import (
	"os"
)

// version is set by the linker.
var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
