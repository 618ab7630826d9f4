package main

import (
	"github.com/robotalks/xbee.go/pkg/cli/sh"
	"github.com/robotalks/xbee.go/pkg/l1/env"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupSerialFlags()
}

func main() {
	sh.Main()
}
