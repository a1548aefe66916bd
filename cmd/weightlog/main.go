// Package main provides the weightlog CLI.
package main

import "github.com/mesh-intelligence/weightlog/internal/cli"

func main() {
	cli.Execute()
}
