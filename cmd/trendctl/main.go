// Command trendctl inspects trend sources from the command line: it lists
// trends with their unit labels, prints windowed series, checks trend
// configuration directories and imports hourly annual files into
// energy-model databases.
package main

import "github.com/HatiCode/trendlens/cmd/trendctl/cli"

func main() {
	cli.Execute()
}
