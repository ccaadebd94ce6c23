package main

import "catalog-service/cmd/catalogctl/commands"

func main() {
	commands.Execute()
}
