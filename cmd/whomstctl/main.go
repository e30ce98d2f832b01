package main

import (
	"whomst/internal/cli"
	"whomst/internal/cli/commands"
)

func main() {
	cli.LoadEnvFile()
	commands.Execute()
}
