// Command navicue validates lesson catalogs, composes render recipes and
// runs lessons end to end.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/navicue/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
