package main

import (
	"os"

	"thedump/cmd/dumpctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
