package main

import "github.com/notargets/remesh/cmd"

func main() {
	cmd.Execute()
}
