package main

import (
	"github.com/biofloc/wqmodel/pkg/cli"
)

func main() {
	cli.Execute()
}
