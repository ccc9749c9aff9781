// Command resultsets fans parameterized SQLite queries out across a worker
// pool and collects the results.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/resultsets/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(cli.GetExitCode(err))
}
