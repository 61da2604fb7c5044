package main

import (
	"os"

	"github.com/hejijunhao/droidlog/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
