// ventai-tools: the VentAI capability runtime.
//
// An MCP server over stdio that the ventgate gateway starts as a child
// process. It can also be attached to any MCP client directly.
//
// Usage:
//
//	ventai-tools            # serve MCP over stdio
//	ventai-tools version    # print version
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"ventgate/internal/toolkit"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve":
		case "--version", "-v", "version":
			fmt.Printf("%s v%s\n", toolkit.Name, toolkit.Version)
			os.Exit(0)
		case "--help", "-h", "help":
			printUsage()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
			printUsage()
			os.Exit(1)
		}
	}

	// stdout belongs to the MCP transport; diagnostics go to stderr.
	if err := server.ServeStdio(toolkit.New(toolkit.Options{})); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `ventai-tools %s: VentAI capability runtime (MCP over stdio)

Usage:
  ventai-tools [serve]   Serve MCP over stdio
  ventai-tools version   Print version
`, toolkit.Version)
}
