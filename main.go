package main

import "github.com/brogergvhs/lectord/cmd"

func main() {
	cmd.Execute()
}
