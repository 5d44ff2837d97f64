package main

import "github.com/caracaldl/caracal/cmd"

func main() {
	cmd.Execute()
}
