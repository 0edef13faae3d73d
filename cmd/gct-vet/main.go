// Command gct-vet reports irreducible control flow in Go packages.
//
// Usage:
//
//	gct-vet ./...
//
// Or as a vet tool:
//
//	go vet -vettool=$(which gct-vet) ./...
package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"github.com/l3aro/go-control-tree/pkg/lint"
)

func main() {
	singlechecker.Main(lint.Analyzer)
}
