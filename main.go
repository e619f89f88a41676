// Package main is the entry point of the telemetry command line tool.
package main

import "github.com/liuxd6825/telemetry/cmd"

func main() {
	cmd.Execute()
}
