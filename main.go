package main

import "actionrunner/cmd"

func main() {
	cmd.Run()
}
