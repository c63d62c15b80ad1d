package main

import (
	"github.com/ssargent/verdandi/cmd/verdandi/cmd"
	"github.com/ssargent/verdandi/pkg/di"
)

func main() {
	container := di.NewContainer()
	cmd.SetContainer(container)
	cmd.Execute()
}
