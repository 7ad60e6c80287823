package main

import "blinklift/cmd"

func main() {
	cmd.Execute()
}
