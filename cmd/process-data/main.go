package main

import (
	"os"

	"github.com/ecairns22/csvdeploy/cmd/csvdeploy/commands"
)

func main() {
	cmd := commands.Load()
	cmd.Use = "process-data"
	os.Exit(commands.Execute(cmd))
}
