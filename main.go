package main

import "github.com/zeptofine/blrs-cli/cmd"

func main() {
	cmd.Execute()
}
