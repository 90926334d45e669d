package main

import "github.com/foomo/linkgraph-mcp/cmd"

func main() {
	cmd.Execute()
}
