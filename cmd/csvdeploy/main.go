package main

import (
	"os"

	"github.com/ecairns22/csvdeploy/cmd/csvdeploy/commands"
)

func main() {
	os.Exit(commands.Execute(commands.Root()))
}
