// Command poolctl runs and inspects connpool connection pools described
// by a YAML configuration file.
package main

import (
	"fmt"
	"os"

	"github.com/catherinevee/connpool/cmd/poolctl/commands"
)

func main() {
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
