package main

import (
	"os"

	"github.com/ecairns22/csvdeploy/cmd/csvdeploy/commands"
)

func main() {
	cmd := commands.HealthCheck()
	cmd.Use = "smoke-test"
	os.Exit(commands.Execute(cmd))
}
