package main

import "github.com/naka-gawa/pr-habits/cmd"

func main() {
	cmd.Execute()
}
