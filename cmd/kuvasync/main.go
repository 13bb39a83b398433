// Package main provides the entry point for the kuvasync gallery mirror CLI.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
