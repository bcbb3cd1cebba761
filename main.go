// Package main is the entry point for the social graph relay (sgr).
// It hands over to the command tree in internal/cli; `sgr serve` starts the
// relay API server.
package main

import "socialgraph.relay/sgr/internal/cli"

func main() {
	cli.Execute()
}
