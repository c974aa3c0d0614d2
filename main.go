// Command supergraph composes federated GraphQL subgraphs into a supergraph schema
// and recomposes it while the subgraphs change.
package main

import (
	"context"
	"os"

	"github.com/wundergraph/graphql-go-tools/supergraph/cmd"
)

func main() {
	if err := cmd.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
