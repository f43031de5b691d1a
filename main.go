package main

import "github.com/icco/melodyplay/cmd"

func main() {
	cmd.Execute()
}
