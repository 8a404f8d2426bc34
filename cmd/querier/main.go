// Querier turns client query parameters into whitelisted, parameterized SQL.
//
// Usage:
//
//	# Check resource declarations
//	querier validate ./resources
//
//	# Show the SQL a query compiles to
//	querier sql ./resources/people.yaml 'filter[age][>]=30&sort[name]=asc'
//
//	# Run a query against a database
//	querier exec ./resources/people.yaml 'page[size]=10' --db ./people.db
//
//	# Run query scenarios
//	querier test ./scenarios
//
//	# Serve every declaration in a directory over HTTP
//	querier serve --db ./people.db --resources ./resources
package main

import (
	"fmt"
	"os"

	"github.com/roach88/querier/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
