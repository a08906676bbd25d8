package main

import "github.com/cppla/novelhub/cmd"

func main() {
	cmd.Execute()
}
