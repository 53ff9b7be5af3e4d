// Package main is recipectl, the administrative CLI for the recipe API.
package main

import (
	"fmt"
	"os"

	"github.com/recipebox/recipebox/internal/auth"
)

func main() {
	if err := newRootCmd(openStore, auth.DefaultParams).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
