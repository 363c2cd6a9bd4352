package main

import "github.com/KaramelBytes/co2lens-cli/cmd"

func main() {
	cmd.Execute()
}
