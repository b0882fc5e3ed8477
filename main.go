// codenode builds a graph of the files in a workspace and the relations
// between them: imports, exported declarations, wikilinks, markdown links
// and referenced URLs.
package main

import (
	"fmt"
	"os"

	"github.com/Benny93/codenode/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
