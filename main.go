package main

import "library_lending/cli"

func main() {
	cli.Execute()
}
