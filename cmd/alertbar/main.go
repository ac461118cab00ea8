package main

import "github.com/happyprime/alertbar/internal/cli"

func main() {
	cli.Execute()
}
