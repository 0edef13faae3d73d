// Package main implements the go-control-tree CLI (gct).
// It builds control trees for Go functions and CFG documents, scans whole
// source trees for irreducible control flow, and keeps reports in a local
// store.
package main

import (
	"os"

	"github.com/l3aro/go-control-tree/cmd/gct/commands"
)

var (
	version   = "dev"
	buildTime = ""
)

func main() {
	commands.Version = version
	commands.BuildTime = buildTime

	commands.RootCmd.Version = version
	commands.RootCmd.SetVersionTemplate(`gct version {{.Version}}
`)

	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
