/*
Package main is the entry point for the autoflags CLI.

autoflags recommends SuperClaude flags for a request and adapts them to
each user from feedback on earlier recommendations.

Usage:

	autoflags [command]

Available Commands:

	recommend   Recommend flags for a request
	feedback    Report the outcome of a recommendation
	report      Show the personalization report
	learning    Manage learned patterns and preferences
	rules       Inspect the static rule table
	config      Create or show the configuration file
	serve       Run the MCP server (stdio transport)
	http        Run the REST API with Prometheus metrics
	benchmark   Measure recommendation latency
	version     Show version information

Examples:

	# Recommend flags for a request in the current project
	autoflags recommend "review the payment module for security issues"

	# Run as MCP server
	autoflags serve
*/
package main

import (
	"fmt"
	"os"

	"github.com/Soochol/superclaude-auto-flags/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
