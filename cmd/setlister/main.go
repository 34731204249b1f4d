package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/setlister/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "setlister: %v\n", err)
		os.Exit(1)
	}
}
