package main

import "github.com/agentpkg/pindeps/pkg/cmd"

func main() {
	cmd.Execute()
}
