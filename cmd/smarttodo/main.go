package main

import (
	"os"

	"smarttodo/internal/cli"
)

var version = "dev"

func main() {
	os.Exit(cli.Execute(version))
}
