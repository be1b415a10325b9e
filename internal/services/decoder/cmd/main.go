package main

import (
	"github.com/LeonardoBeccarini/model4916_decoder/internal/cli"
)

var version string // set by the build

func main() {
	cli.Execute(newRootCommand())
}
