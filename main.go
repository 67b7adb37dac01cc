package main

import "comterm/cmd"

func main() {
	cmd.Execute()
}
