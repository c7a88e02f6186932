package main

import "github.com/ppiankov/guardchain/internal/cli"

func main() {
	cli.Execute()
}
