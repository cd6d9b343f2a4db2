package main

import (
	"github.com/oceanprotocol/ocean-node/cmd"
	"github.com/oceanprotocol/ocean-node/config"
)

func main() {
	// ensure configuration initialized at first.
	config.Init()

	cmd.Execute()
}
