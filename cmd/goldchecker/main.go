package main

import (
	_ "time/tzdata"

	"goldchecker/internal/cli"
)

func main() {
	cli.Execute()
}
