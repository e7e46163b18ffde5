package main

import "index-returns/internal/cli"

func main() {
	cli.Execute()
}
