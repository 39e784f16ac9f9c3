// Command jobstore runs and inspects a job store.
package main

import "github.com/xraph/jobstore/internal/cli"

func main() {
	cli.Execute()
}
