package main

import (
	"fmt"
	"os"
)

func main() {
	root := newRootCommand(getPlatform(), os.Stdout)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
