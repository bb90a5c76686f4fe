package main

import (
	"os"

	"github.com/socialnet/socket/cmd/socketd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
