package main

import "github.com/tanq16/mtd/cmd"

func main() {
	cmd.Execute()
}
