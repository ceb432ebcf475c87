package main

import "storylm/cmd"

func main() {
	cmd.Execute()
}
