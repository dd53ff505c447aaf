package main

import (
	"github.com/mledur/quill/cmd/cli"
)

func main() {
	cli.Execute()
}
