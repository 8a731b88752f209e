// Command bugzapp runs web QA suites, files bug reports and serves the
// submission queue.
package main

import (
	"os"

	"github.com/roach88/bugzapp/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
