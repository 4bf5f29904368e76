package main

import "github.com/gridrush/engine/cmd"

func main() {
	cmd.Execute()
}
