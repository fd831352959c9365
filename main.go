package main

import (
	"github.com/axellelanca/sitepulse/cmd"
	_ "github.com/axellelanca/sitepulse/cmd/cli"
	_ "github.com/axellelanca/sitepulse/cmd/server"
)

func main() {
	cmd.Execute()
}
