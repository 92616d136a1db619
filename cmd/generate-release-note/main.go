package main

import (
	"os"

	"github.com/ecairns22/csvdeploy/cmd/csvdeploy/commands"
)

func main() {
	cmd := commands.ReleaseNote()
	cmd.Use = "generate-release-note"
	os.Exit(commands.Execute(cmd))
}
