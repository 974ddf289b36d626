// Package main provides the entry point for the gatesync CLI tool.
package main

import "github.com/agentstation/gatesync/cmd/gatesync/cmd"

// Version information populated by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd.Execute(version, commit, date)
}
