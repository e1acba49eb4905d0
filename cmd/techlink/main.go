// Package main is the single-binary entrypoint for TechLink.
package main

import "github.com/techlink-io/techlink/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
