package main

import "github.com/OpenTraceLab/dcctrace/cmd/dcctrace/cmd"

func main() {
	cmd.Execute()
}
