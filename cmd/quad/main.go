package main

import (
	"fmt"
	"os"

	"quad/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "quad:", err)
		os.Exit(1)
	}
}
