package main

import "go.zipstore/internal/cli"

func main() {
	cli.Execute()
}
