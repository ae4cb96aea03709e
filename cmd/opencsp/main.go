// Package main is the opencsp command.
package main

import (
	"log"
	"os"

	"github.com/opencsp/opencsp-go/cli"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
