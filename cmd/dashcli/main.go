package main

//go-build: CGO_ENABLED=0

import (
	"github.com/duetlab/dash.go/pkg/cli/sh"

	_ "github.com/duetlab/dash.go/pkg/cli/cmds/all"
)

func main() {
	sh.Main()
}
