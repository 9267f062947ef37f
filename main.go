package main

import "anonrelay/cmd"

func main() {
	cmd.Execute()
}
