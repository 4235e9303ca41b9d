package main

import "github.com/withgalaxy/devbridge/pkg/cli"

func main() {
	cli.Execute()
}
