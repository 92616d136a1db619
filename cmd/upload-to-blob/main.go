package main

import (
	"os"

	"github.com/ecairns22/csvdeploy/cmd/csvdeploy/commands"
)

func main() {
	cmd := commands.Upload()
	cmd.Use = "upload-to-blob"
	os.Exit(commands.Execute(cmd))
}
