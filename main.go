package main

import (
	"fmt"
	"os"

	"mychat/cmd"
)

const Version = "v0.01.00"

func main() {
	cmd.Version = Version
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
