package main

import "github.com/marshallshelly/pebble-catalog/cmd/pebble-catalog/commands"

func main() {
	commands.Execute()
}
